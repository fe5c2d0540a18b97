// Package manager implements component 6's control-side surface:
// AudioManager, the handle types it returns, and the resolution
// machinery that correlates renderer.CreatedResource acks back to the
// handle that is waiting on a generational key. None of this runs on
// the renderer thread; every method here either pushes a Command/
// SoundRequest across a ring or reads a result published across one.
package manager

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/backend"
	"github.com/kira-audio/kira/pkg/kerr"
	"github.com/kira-audio/kira/pkg/mixer"
	"github.com/kira-audio/kira/pkg/renderer"
	"github.com/kira-audio/kira/pkg/sound"
)

// Capacities names how many of each resource kind the renderer's
// arenas are sized for, per spec.md §6's AudioManager construction.
type Capacities struct {
	Sounds           int
	SubTracks        int
	Clocks           int
	Modulators       int
	SpatialListeners int
}

// Settings configures AudioManager construction. InternalBufferSize
// is the command/result ring capacity, defaulting to 128 per spec.
type Settings struct {
	Capacities          Capacities
	InternalBufferSize  int
	SampleRate          float64
	MainTrackBuilder    mixer.TrackBuilder
	BackendSettings     backend.Settings
	MaxCommandsPerBlock int
}

// AudioManager is the control-side handle factory: it owns a Renderer
// and a Backend, and every public method either enqueues work for the
// renderer thread or reads back what it most recently published. No
// CLI flags, no environment variables, no persisted state, per
// spec.md §6.
type AudioManager struct {
	r       *renderer.Renderer
	backend backend.Backend

	mainKey arena.Key

	nextRequest atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*resolution
}

// New constructs an AudioManager, its Renderer, and wires the given
// Backend to drive it. The track arena is sized for SubTracks plus
// SpatialListeners plus one slot for the implicit MAIN track.
func New(settings Settings, be backend.Backend) (*AudioManager, error) {
	bufSize := settings.InternalBufferSize
	if bufSize <= 0 {
		bufSize = 128
	}
	maxPerBlock := settings.MaxCommandsPerBlock
	if maxPerBlock <= 0 {
		maxPerBlock = bufSize
	}

	rate, blockSize, err := be.Setup(settings.BackendSettings)
	if err != nil {
		return nil, kerr.Wrap(kerr.DeviceLost, "backend setup", err)
	}
	if rate <= 0 {
		rate = settings.SampleRate
	}

	r := renderer.New(renderer.Settings{
		SampleRate:          rate,
		BlockSize:           blockSize,
		TrackCapacity:       settings.Capacities.SubTracks + settings.Capacities.SpatialListeners + 1,
		SoundCapacity:       settings.Capacities.Sounds,
		ClockCapacity:       settings.Capacities.Clocks,
		ModulatorCapacity:   settings.Capacities.Modulators,
		CommandQueueSize:    bufSize,
		MaxCommandsPerBlock: maxPerBlock,
		MainTrackBuilder:    settings.MainTrackBuilder,
	})

	m := &AudioManager{
		r:       r,
		backend: be,
		mainKey: r.Graph().MainKey(),
		pending: make(map[uint64]*resolution),
	}

	if err := be.Start(r.Render, r.OnSampleRateChanged); err != nil {
		return nil, kerr.Wrap(kerr.DeviceLost, "backend start", err)
	}

	logrus.WithFields(logrus.Fields{
		"sample_rate": rate,
		"block_size":  blockSize,
	}).Info("audio manager started")

	return m, nil
}

// MainTrack returns a handle to the implicit, always-present MAIN
// track, resolved synchronously since its key never changes.
func (m *AudioManager) MainTrack() *TrackHandle {
	res := newResolution()
	res.resolve(m.mainKey, nil)
	return &TrackHandle{mgr: m, res: res}
}

func (m *AudioManager) newRequestID() uint64 {
	return m.nextRequest.Add(1)
}

func (m *AudioManager) registerPending() (uint64, *resolution) {
	id := m.newRequestID()
	res := newResolution()
	m.mu.Lock()
	m.pending[id] = res
	m.mu.Unlock()
	return id, res
}

func (m *AudioManager) forgetPending(id uint64) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// Poll drains every ring the renderer publishes to the control side
// and resolves the handles waiting on them. The caller is responsible
// for calling Poll periodically (once per game frame is typical); the
// renderer never blocks waiting for it.
func (m *AudioManager) Poll() {
	m.r.Results().Drain(-1, func(res renderer.CreatedResource) {
		m.mu.Lock()
		p, ok := m.pending[res.RequestID]
		delete(m.pending, res.RequestID)
		m.mu.Unlock()
		if !ok {
			return
		}
		p.resolve(res.Key, res.Err)
		if res.Err != nil {
			logrus.WithError(res.Err).WithField("request_id", res.RequestID).Warn("resource creation rejected")
		}
	})
	m.r.RetiredSounds().Drain(-1, func(s sound.Sound) {
		logrus.WithField("state", s.State()).Debug("sound retired")
	})
}

// Shutdown stops the backend. It does not tear down renderer resources;
// the renderer and its arenas are simply abandoned along with the
// Backend's device.
func (m *AudioManager) Shutdown() error {
	return m.backend.Stop()
}

// SampleRate reports the rate the renderer currently runs at, for
// callers (graphspec, effect construction) that need it to size
// sample-rate-dependent state.
func (m *AudioManager) SampleRate() float64 {
	return m.r.SampleRate()
}

// Snapshots exposes the renderer's most recently published per-sound
// state, for callers that want to scan every live sound rather than
// poll handles one at a time.
func (m *AudioManager) Snapshots() []renderer.SoundSnapshot {
	return m.r.Snapshots()
}

// EachTrack walks every live track in the mixer graph, for callers
// (graphspec, telemetry) that need the whole topology rather than one
// track at a time. Like Graph itself, this is a renderer-thread-owned
// structure being read from the control side; callers must not retain
// *mixer.Track pointers past the call.
func (m *AudioManager) EachTrack(fn func(key arena.Key, t *mixer.Track)) {
	m.r.Graph().EachTrack(fn)
}

// resolution is the shared cell a pending request's handle reads from
// once AudioManager.Poll observes its ack.
type resolution struct {
	mu   sync.Mutex
	key  arena.Key
	err  error
	done bool
}

func newResolution() *resolution { return &resolution{} }

func (r *resolution) resolve(key arena.Key, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key, r.err, r.done = key, err, true
}

func (r *resolution) get() (arena.Key, error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key, r.err, r.done
}
