// Package mixer implements component J: the hierarchical track graph
// that every sound and effect chain ultimately routes through.
package mixer

import (
	"math"

	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/effect"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/kerr"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/sound"
)

// Position is a point or direction in 3-space.
type Position [3]float64

// CurveKind selects a spatial attenuation shape.
type CurveKind int

const (
	// CurveInverse is amp = referenceDistance / max(d, referenceDistance).
	CurveInverse CurveKind = iota
	// CurveLinear ramps from 1 at referenceDistance to 0 at maxDistance.
	CurveLinear
	// CurveExponential is amp = (referenceDistance/max(d,referenceDistance))^rolloff.
	CurveExponential
)

// DistanceCurve maps a listener distance to a linear gain.
type DistanceCurve struct {
	Kind              CurveKind
	ReferenceDistance float64
	MaxDistance       float64
	Rolloff           float64
}

// Gain evaluates the curve at distance d.
func (c DistanceCurve) Gain(d float64) float64 {
	ref := c.ReferenceDistance
	if ref <= 0 {
		ref = 1
	}
	if d < ref {
		d = ref
	}
	switch c.Kind {
	case CurveLinear:
		max := c.MaxDistance
		if max <= ref {
			return 1
		}
		if d >= max {
			return 0
		}
		return 1 - (d-ref)/(max-ref)
	case CurveExponential:
		rolloff := c.Rolloff
		if rolloff <= 0 {
			rolloff = 1
		}
		return math.Pow(ref/d, rolloff)
	default: // CurveInverse
		return ref / d
	}
}

// SpatialProps attaches 3D positioning to a track. ListenerRef names
// another track whose Position/Forward define the listening point and
// orientation; that track need not itself be spatial.
type SpatialProps struct {
	ListenerRef             arena.Key
	SpatializationStrength  float64
	Attenuation             DistanceCurve
}

// TrackBuilder configures a new track at construction.
type TrackBuilder struct {
	Volume                     frame.Decibels
	Spatial                    *SpatialProps
	Position                   Position
	Forward                    Position
	PersistUntilSoundsFinished bool
}

// Track is one node of the mixer graph: sounds feed into it, routes
// carry its processed output to other tracks.
type Track struct {
	key      arena.Key
	parent   arena.Key
	hasParent bool
	children []arena.Key

	routes map[arena.Key]*parameter.Parameter[frame.Decibels]
	volume *parameter.Parameter[frame.Decibels]
	effects []effect.Effect
	sounds map[arena.Key]struct{}

	spatial  *SpatialProps
	position Position
	forward  Position

	pausedSubtree              bool
	persistUntilSoundsFinished bool

	buffer []frame.Frame
	aux    []frame.Frame
}

// Key returns the track's generational handle.
func (t *Track) Key() arena.Key { return t.key }

// Volume exposes the track's gain parameter for tweening/linking.
func (t *Track) Volume() *parameter.Parameter[frame.Decibels] { return t.volume }

// AddEffect appends e to the track's effect chain, processed in order
// after sounds are summed and before the volume stage.
func (t *Track) AddEffect(e effect.Effect) { t.effects = append(t.effects, e) }

// EachEffect calls fn for every effect in this track's chain, in
// processing order. Used by the renderer to forward engine-wide events
// (sample rate changes) to every effect without exposing the chain's
// backing slice.
func (t *Track) EachEffect(fn func(effect.Effect)) {
	for _, e := range t.effects {
		fn(e)
	}
}

// SetPosition updates the track's world position, used both as an
// emitter position (when spatial) and as a listener position (when
// referenced by another track's SpatialProps.ListenerRef).
func (t *Track) SetPosition(p Position) { t.position = p }

// SetForward updates the track's facing direction, used only when
// the track is referenced as a listener.
func (t *Track) SetForward(f Position) { t.forward = f }

// PausedSubtree reports whether this track's own sounds are currently
// frozen (does not report on descendants individually).
func (t *Track) PausedSubtree() bool { return t.pausedSubtree }

// Output returns the track's buffer from the most recently completed
// block: the fully processed signal available to parents and routes.
func (t *Track) Output() []frame.Frame { return t.buffer }

// Graph owns every track and every sound, and orders their per-block
// processing.
type Graph struct {
	tracks *arena.Arena[*Track]
	sounds *arena.Arena[sound.Sound]

	blockSize int
	mainKey   arena.Key

	order      []arena.Key
	orderDirty bool

	lastDistance map[arena.Key]float64
}

// NewGraph creates a Graph with room for trackCapacity tracks and
// soundCapacity sounds, and an implicit MAIN track with no parent.
func NewGraph(trackCapacity, soundCapacity, blockSize int, mainBuilder TrackBuilder) *Graph {
	g := &Graph{
		tracks:       arena.New[*Track](trackCapacity),
		sounds:       arena.New[sound.Sound](soundCapacity),
		blockSize:    blockSize,
		lastDistance: make(map[arena.Key]float64),
	}
	main := newTrack(blockSize, mainBuilder)
	key, err := g.tracks.Insert(main)
	if err != nil {
		// trackCapacity is caller-chosen and must be >= 1; a zero
		// capacity arena cannot host even the implicit main track.
		panic("mixer: trackCapacity must be at least 1")
	}
	main.key = key
	g.mainKey = key
	g.orderDirty = true
	return g
}

// MainKey returns the implicit root track's key.
func (g *Graph) MainKey() arena.Key { return g.mainKey }

func newTrack(blockSize int, b TrackBuilder) *Track {
	vol := b.Volume
	t := &Track{
		routes:                     make(map[arena.Key]*parameter.Parameter[frame.Decibels]),
		volume:                     parameter.New(vol),
		sounds:                     make(map[arena.Key]struct{}),
		spatial:                    b.Spatial,
		position:                   b.Position,
		forward:                    b.Forward,
		persistUntilSoundsFinished: b.PersistUntilSoundsFinished,
		buffer:                     make([]frame.Frame, blockSize),
		aux:                        make([]frame.Frame, blockSize),
	}
	return t
}

// Track resolves key to its Track, or nil if it does not resolve.
func (g *Graph) Track(key arena.Key) *Track {
	t := g.tracks.Get(key)
	if t == nil {
		return nil
	}
	return *t
}

// AddSubTrack inserts a new track as a child of parent.
func (g *Graph) AddSubTrack(parent arena.Key, b TrackBuilder) (arena.Key, error) {
	parentTrack := g.Track(parent)
	if parentTrack == nil {
		return arena.Key{}, kerr.New(kerr.InvalidConfiguration, "mixer: parent track does not resolve")
	}
	t := newTrack(g.blockSize, b)
	key, err := g.tracks.Insert(t)
	if err != nil {
		return arena.Key{}, kerr.Wrap(kerr.CapacityExceeded, "mixer: track arena full", err)
	}
	t.key = key
	t.parent = parent
	t.hasParent = true
	parentTrack.children = append(parentTrack.children, key)
	g.orderDirty = true
	return key, nil
}

// RemoveTrack removes key and detaches it from its parent and from
// any routes referencing it. The MAIN track cannot be removed.
func (g *Graph) RemoveTrack(key arena.Key) error {
	if key == g.mainKey {
		return kerr.New(kerr.InvalidConfiguration, "mixer: cannot remove the main track")
	}
	t := g.Track(key)
	if t == nil {
		return kerr.New(kerr.InvalidConfiguration, "mixer: track does not resolve")
	}
	if t.hasParent {
		if parent := g.Track(t.parent); parent != nil {
			parent.children = removeKey(parent.children, key)
		}
	}
	g.tracks.Each(func(_ arena.Key, other **Track) {
		delete((*other).routes, key)
	})
	g.tracks.Remove(key)
	delete(g.lastDistance, key)
	g.orderDirty = true
	return nil
}

func removeKey(keys []arena.Key, k arena.Key) []arena.Key {
	out := keys[:0]
	for _, existing := range keys {
		if existing != k {
			out = append(out, existing)
		}
	}
	return out
}

// AddRoute adds a weighted contribution from the from track into the
// to track's pre-effect input, rejecting the route if it would close
// a cycle in the combined parent/route graph.
func (g *Graph) AddRoute(from, to arena.Key, weightDb frame.Decibels) error {
	fromTrack := g.Track(from)
	toTrack := g.Track(to)
	if fromTrack == nil || toTrack == nil {
		return kerr.New(kerr.InvalidConfiguration, "mixer: route endpoint does not resolve")
	}
	if from == to {
		return kerr.New(kerr.InvalidConfiguration, "mixer: route cannot target its own source")
	}
	if g.reaches(to, from) {
		return kerr.New(kerr.InvalidConfiguration, "mixer: route would introduce a cycle")
	}
	fromTrack.routes[to] = parameter.New(weightDb)
	g.orderDirty = true
	return nil
}

// RemoveRoute removes an explicit route, if present.
func (g *Graph) RemoveRoute(from, to arena.Key) bool {
	fromTrack := g.Track(from)
	if fromTrack == nil {
		return false
	}
	if _, ok := fromTrack.routes[to]; !ok {
		return false
	}
	delete(fromTrack.routes, to)
	g.orderDirty = true
	return true
}

// reaches reports whether start can reach target by following the
// combined parent-implicit-route and explicit-route edges.
func (g *Graph) reaches(start, target arena.Key) bool {
	visited := map[arena.Key]bool{start: true}
	stack := []arena.Key{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		t := g.Track(cur)
		if t == nil {
			continue
		}
		for dest := range t.outEdges() {
			if !visited[dest] {
				visited[dest] = true
				stack = append(stack, dest)
			}
		}
	}
	return false
}

// outEdges returns every destination this track feeds into: its
// explicit routes, plus an implicit unity-gain route to its parent
// when no explicit route to the parent already exists.
func (t *Track) outEdges() map[arena.Key]struct{} {
	edges := make(map[arena.Key]struct{}, len(t.routes)+1)
	for dest := range t.routes {
		edges[dest] = struct{}{}
	}
	if t.hasParent {
		edges[t.parent] = struct{}{}
	}
	return edges
}

// AddSound attaches s to track, returning its key within the sound
// arena.
func (g *Graph) AddSound(track arena.Key, s sound.Sound) (arena.Key, error) {
	t := g.Track(track)
	if t == nil {
		return arena.Key{}, kerr.New(kerr.InvalidConfiguration, "mixer: track does not resolve")
	}
	key, err := g.sounds.Insert(s)
	if err != nil {
		return arena.Key{}, kerr.Wrap(kerr.CapacityExceeded, "mixer: sound arena full", err)
	}
	t.sounds[key] = struct{}{}
	return key, nil
}

// Sound resolves key to its sound without detaching it from its
// track, for lifecycle commands (pause/resume/stop) that must not
// disturb the sound's arena key.
func (g *Graph) Sound(key arena.Key) (sound.Sound, bool) {
	s := g.sounds.Get(key)
	if s == nil {
		return nil, false
	}
	return *s, true
}

// EachSound calls fn for every live sound across every track, keyed by
// its generational key, for control-side snapshot publishing.
func (g *Graph) EachSound(fn func(key arena.Key, s sound.Sound)) {
	g.sounds.Each(func(k arena.Key, s *sound.Sound) {
		fn(k, *s)
	})
}

// EachTrack calls fn for every live track in the graph, for control-
// side topology reporting (e.g. a telemetry dashboard). Order is
// arena-internal and not meaningful.
func (g *Graph) EachTrack(fn func(key arena.Key, t *Track)) {
	g.tracks.Each(func(k arena.Key, t **Track) {
		fn(k, *t)
	})
}

// Routes returns the destination keys and weights of every route
// leaving this track.
func (t *Track) Routes() map[arena.Key]frame.Decibels {
	out := make(map[arena.Key]frame.Decibels, len(t.routes))
	for k, p := range t.routes {
		out[k] = p.Value()
	}
	return out
}

// RemoveSound detaches and returns the sound named by key.
func (g *Graph) RemoveSound(track, key arena.Key) (sound.Sound, bool) {
	t := g.Track(track)
	if t == nil {
		return nil, false
	}
	s, ok := g.sounds.Remove(key)
	if !ok {
		return nil, false
	}
	delete(t.sounds, key)
	return s, true
}

// ReapFinished removes every sound reporting Finished() across the
// whole graph and returns the removed instances for the caller to
// ship to an outbox for control-side destruction.
func (g *Graph) ReapFinished() []sound.Sound {
	var finished []sound.Sound
	g.tracks.Each(func(_ arena.Key, t **Track) {
		track := *t
		for key := range track.sounds {
			s := g.sounds.Get(key)
			if s == nil || !(*s).Finished() {
				continue
			}
			finished = append(finished, *s)
			delete(track.sounds, key)
			g.sounds.Remove(key)
		}
	})
	return finished
}

type pausable interface {
	Pause(tween parameter.Tween)
	Resume(tween parameter.Tween)
	Stop(tween parameter.Tween)
}

// SetPausedSubtree cascades paused onto key and every descendant
// track, and starts a pause or resume fade on every sound owned
// anywhere in the subtree. A paused track skips its sounds entirely,
// so pausing silences the subtree from the next block on without the
// pause fade being heard; on resume the sounds fade back in.
func (g *Graph) SetPausedSubtree(key arena.Key, paused bool, tween parameter.Tween) error {
	t := g.Track(key)
	if t == nil {
		return kerr.New(kerr.InvalidConfiguration, "mixer: track does not resolve")
	}
	g.walkSubtree(t, func(track *Track) {
		track.pausedSubtree = paused
		for soundKey := range track.sounds {
			s := g.sounds.Get(soundKey)
			if s == nil {
				continue
			}
			p, ok := (*s).(pausable)
			if !ok {
				continue
			}
			if paused {
				p.Pause(tween)
			} else {
				p.Resume(tween)
			}
		}
	})
	return nil
}

func (g *Graph) walkSubtree(t *Track, fn func(*Track)) {
	fn(t)
	for _, childKey := range t.children {
		if child := g.Track(childKey); child != nil {
			g.walkSubtree(child, fn)
		}
	}
}
