package mixer

import (
	"math"

	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/effect"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/scheduler"
	"github.com/kira-audio/kira/pkg/sound"
)

// BlockInfo carries everything the graph needs to advance one block:
// the renderer's running position and the resolvers a Parameter needs
// to advance its tweens and links.
type BlockInfo struct {
	NowSample    int64
	SampleRate   float64
	BlockSeconds float64
	Clocks       scheduler.ClockLookup
	Sources      parameter.Source
}

// Value implements parameter.Source, exposing the most recently
// computed listener distance for the spatial track named by id. This
// lets an effect parameter link to Value::FromListenerDistance (e.g.
// a filter's cutoff closing as a sound moves underwater).
func (g *Graph) Value(id arena.Key) (float64, bool) {
	d, ok := g.lastDistance[id]
	return d, ok
}

// ensureOrder rebuilds the post-order track traversal if the topology
// changed since the last block. Rebuilding only happens on topology
// mutation (track/route add or remove), which are infrequent,
// control-originated events; the per-block hot path reads the cached
// order without allocating.
func (g *Graph) ensureOrder() {
	if !g.orderDirty {
		return
	}
	inDegree := make(map[arena.Key]int)
	g.tracks.Each(func(key arena.Key, _ **Track) {
		inDegree[key] = 0
	})
	g.tracks.Each(func(_ arena.Key, t **Track) {
		for dest := range (*t).outEdges() {
			inDegree[dest]++
		}
	})

	var ready []arena.Key
	g.tracks.Each(func(key arena.Key, _ **Track) {
		if inDegree[key] == 0 {
			ready = append(ready, key)
		}
	})

	order := make([]arena.Key, 0, g.tracks.Len())
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		order = append(order, key)
		t := g.Track(key)
		if t == nil {
			continue
		}
		for dest := range t.outEdges() {
			inDegree[dest]--
			if inDegree[dest] == 0 {
				ready = append(ready, dest)
			}
		}
	}
	g.order = order
	g.orderDirty = false
}

// Process runs one post-order pass over the graph and writes the MAIN
// track's resulting buffer into out, which must be block-sized.
func (g *Graph) Process(out []frame.Frame, info BlockInfo) {
	g.ensureOrder()

	for _, key := range g.order {
		t := g.Track(key)
		if t == nil {
			continue
		}
		g.processTrack(t, info)
	}

	main := g.Track(g.mainKey)
	if main != nil {
		copy(out, main.buffer)
	}
}

func (g *Graph) processTrack(t *Track, info BlockInfo) {
	frame.Clear(t.buffer)

	// Step 3: sum children's (and routed predecessors') already
	// processed outputs, scaled by route weight.
	g.tracks.Each(func(srcKey arena.Key, src **Track) {
		source := *src
		if source == t {
			return
		}
		weight, ok := source.routeWeightTo(t.key, info)
		if !ok {
			return
		}
		frame.MixBuffer(t.buffer, source.buffer, weight)
	})

	// Step 4: this track's own sounds, frozen while paused.
	if !t.pausedSubtree {
		soundInfo := sound.BlockInfo{
			NowSample:    info.NowSample,
			SampleRate:   info.SampleRate,
			BlockSeconds: info.BlockSeconds,
			Clocks:       info.Clocks,
			Sources:      info.Sources,
		}
		for key := range t.sounds {
			s := g.sounds.Get(key)
			if s == nil {
				continue
			}
			(*s).OnStartProcessing()
			frame.Clear(t.aux)
			(*s).Process(t.aux, soundInfo)
			frame.MixBuffer(t.buffer, t.aux, 1)
		}
	}

	// Step 5: effect chain, in order.
	effInfo := effect.BlockInfo{
		NowSample:    info.NowSample,
		SampleRate:   info.SampleRate,
		BlockSeconds: info.BlockSeconds,
		Clocks:       info.Clocks,
		Sources:      info.Sources,
	}
	for _, e := range t.effects {
		e.Process(t.buffer, effInfo)
	}

	// Step 6: track volume.
	t.volume.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	n := len(t.buffer)
	for i := range t.buffer {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		amp := t.volume.InterpolatedValue(frac).Amplitude()
		t.buffer[i] = t.buffer[i].Scale(amp)
	}

	// Step 7: spatial attenuation and panning.
	if t.spatial != nil {
		g.applySpatial(t)
	}
}

// routeWeightTo returns the linear gain t contributes to dest this
// block, and whether t actually feeds dest at all.
func (t *Track) routeWeightTo(dest arena.Key, info BlockInfo) (float64, bool) {
	if p, ok := t.routes[dest]; ok {
		p.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
		return p.Value().Amplitude(), true
	}
	if t.hasParent && t.parent == dest {
		return 1, true
	}
	return 0, false
}

func (g *Graph) applySpatial(t *Track) {
	listener := g.Track(t.spatial.ListenerRef)
	if listener == nil {
		return
	}
	dx := t.position[0] - listener.position[0]
	dy := t.position[1] - listener.position[1]
	dz := t.position[2] - listener.position[2]
	distance := math.Sqrt(dx*dx + dy*dy + dz*dz)
	g.lastDistance[t.key] = distance

	gain := t.spatial.Attenuation.Gain(distance)
	pan := azimuthPan(listener.forward, dx, dy, dz, distance)

	strength := t.spatial.SpatializationStrength
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	gain = 1 + (gain-1)*strength
	pan *= strength

	left, right := frame.Panning(pan).Gains()
	for i := range t.buffer {
		mono := t.buffer[i].Mono() * gain
		t.buffer[i] = frame.Frame{L: float32(mono * left * math.Sqrt2), R: float32(mono * right * math.Sqrt2)}
	}
}

// azimuthPan projects the emitter offset onto the listener's forward
// and right axes (right = forward × world-up) and maps the resulting
// angle to a [-1, 1] pan position.
func azimuthPan(forward Position, dx, dy, dz, distance float64) float64 {
	if distance == 0 {
		return 0
	}
	fx, fy, fz := normalize(forward)
	// world up is (0, 1, 0); right = forward × up.
	rx := fz
	ry := 0.0
	rz := -fx
	rLen := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if rLen == 0 {
		rx, ry, rz = 1, 0, 0
	} else {
		rx, ry, rz = rx/rLen, ry/rLen, rz/rLen
	}

	forwardComp := dx*fx + dy*fy + dz*fz
	rightComp := dx*rx + dy*ry + dz*rz

	angle := math.Atan2(rightComp, math.Abs(forwardComp)+1e-9)
	pan := angle / (math.Pi / 2)
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	return pan
}

func normalize(p Position) (x, y, z float64) {
	len := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	if len == 0 {
		return 0, 0, -1
	}
	return p[0] / len, p[1] / len, p[2] / len
}
