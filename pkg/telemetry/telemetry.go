// Package telemetry is an opt-in diagnostics feed: a websocket hub an
// external dashboard can connect to, fed periodic JSON frames
// describing sound snapshots and mixer graph topology. Nothing here is
// on the render path; a Reporter runs on its
// own goroutine, polling the control-side surfaces an AudioManager
// already publishes.
package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/manager"
	"github.com/kira-audio/kira/pkg/mixer"
	"github.com/kira-audio/kira/pkg/renderer"
)

// TrackInfo is one track's reported topology: its key (rendered as a
// string since arena.Key isn't itself JSON-friendly across a wire
// boundary), routes, and volume.
type TrackInfo struct {
	Key       string             `json:"key"`
	VolumeDb  float64            `json:"volume_db"`
	Paused    bool               `json:"paused"`
	RouteKeys []string           `json:"route_keys"`
	RouteDb   map[string]float64 `json:"route_db"`
}

// Frame is one telemetry snapshot broadcast to every connected client.
// SampleTimeMs is the cost of gathering this Frame itself (walking the
// graph topology and reading the snapshot buffers), not renderer block
// processing time, which this control-side reporter has no way to
// observe directly.
type Frame struct {
	Timestamp    time.Time                `json:"timestamp"`
	SampleTimeMs float64                  `json:"sample_time_ms"`
	SampleRate   float64                  `json:"sample_rate"`
	Sounds       []renderer.SoundSnapshot `json:"sounds"`
	Tracks       []TrackInfo              `json:"tracks"`
}

// Hub accepts websocket connections from dashboards and fanouts Frames
// to all of them, grounded on the teacher's federation.FederationHub
// upgrade/broadcast shape.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty Hub. CheckOrigin always allows, matching the
// teacher's dashboard-facing federation hub, since this feed is meant
// for local/LAN tooling rather than public exposure.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection until it closes or errors.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("telemetry: upgrade failed")
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.readUntilClose(conn)
}

// readUntilClose blocks on reads solely to notice when the client
// disconnects (dashboards never send anything back); gorilla requires
// draining incoming control frames for the connection to stay healthy.
func (h *Hub) readUntilClose(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast marshals frame to JSON and writes it to every connected
// client, dropping (and closing) any connection that errors.
func (h *Hub) Broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logrus.WithError(err).Error("telemetry: marshal frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ClientCount reports how many dashboards are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Reporter periodically samples an AudioManager and broadcasts a Frame
// through a Hub, on its own goroutine, at Interval. It never blocks
// the caller and never touches renderer-thread state directly beyond
// what AudioManager already exposes as control-side reads.
type Reporter struct {
	mgr      *manager.AudioManager
	hub      *Hub
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewReporter builds a Reporter. interval defaults to one second if
// left zero.
func NewReporter(mgr *manager.AudioManager, hub *Hub, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{mgr: mgr, hub: hub, interval: interval, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start runs the reporting loop until Stop is called.
func (r *Reporter) Start() {
	go r.loop()
}

// Stop halts the reporting loop and waits for it to exit.
func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reporter) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.hub.Broadcast(r.sample())
		}
	}
}

func (r *Reporter) sample() Frame {
	start := time.Now()

	var tracks []TrackInfo
	r.mgr.EachTrack(func(key arena.Key, t *mixer.Track) {
		info := TrackInfo{
			Key:      key.String(),
			VolumeDb: float64(t.Volume().Value()),
			Paused:   t.PausedSubtree(),
			RouteDb:  make(map[string]float64),
		}
		for dst, db := range t.Routes() {
			ks := dst.String()
			info.RouteKeys = append(info.RouteKeys, ks)
			info.RouteDb[ks] = float64(db)
		}
		tracks = append(tracks, info)
	})

	return Frame{
		Timestamp:    start,
		SampleTimeMs: time.Since(start).Seconds() * 1000,
		SampleRate:   r.mgr.SampleRate(),
		Sounds:       r.mgr.Snapshots(),
		Tracks:       tracks,
	}
}
