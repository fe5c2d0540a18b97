// Package renderer implements component K: the single entry point the
// audio device callback drives once per block, generalizing the
// sequential phase-by-phase update loop idiom (drain, accept, advance,
// process, reap) into the engine's hard-realtime contract.
package renderer

import (
	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/clock"
	"github.com/kira-audio/kira/pkg/effect"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/mixer"
	"github.com/kira-audio/kira/pkg/modulator"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/ring"
	"github.com/kira-audio/kira/pkg/sound"
)

// Settings configures a Renderer's fixed capacities, chosen once at
// construction; none of them can grow afterward.
type Settings struct {
	SampleRate          float64
	BlockSize           int
	TrackCapacity       int
	SoundCapacity       int
	ClockCapacity       int
	ModulatorCapacity   int
	CommandQueueSize    int
	MaxCommandsPerBlock int
	MainTrackBuilder    mixer.TrackBuilder
}

// Renderer owns every realtime-side resource and drives one block of
// audio per Render call. It is only ever touched from the single
// thread hosting the device callback.
type Renderer struct {
	graph *mixer.Graph
	clocks *clock.Registry
	mods  *modulator.Registry

	sampleRate float64
	blockSize  int
	nowSample  int64

	maxCommandsPerBlock int
	commands            *ring.SPSC[Command]
	newSounds           *ring.SPSC[SoundRequest]
	results             *ring.SPSC[CreatedResource]
	retiredSounds       *ring.SPSC[sound.Sound]

	snapshots    *ring.TripleBuffer[[]SoundSnapshot]
	snapshotBufs [3][]SoundSnapshot
	snapshotIdx  int
}

// New creates a Renderer with every arena and ring pre-sized from
// settings; none of them grows afterward. Render still allocates:
// processGraph builds a new parameter.MultiSource every block, and
// blocks that reap finished sounds, add a track, or rebuild the
// traversal order after a routing change allocate as well.
func New(settings Settings) *Renderer {
	r := &Renderer{
		graph:               mixer.NewGraph(settings.TrackCapacity, settings.SoundCapacity, settings.BlockSize, settings.MainTrackBuilder),
		clocks:              clock.NewRegistry(settings.ClockCapacity),
		mods:                modulator.NewRegistry(settings.ModulatorCapacity),
		sampleRate:          settings.SampleRate,
		blockSize:           settings.BlockSize,
		maxCommandsPerBlock: settings.MaxCommandsPerBlock,
		commands:            ring.New[Command](settings.CommandQueueSize),
		newSounds:           ring.New[SoundRequest](settings.CommandQueueSize),
		results:             ring.New[CreatedResource](settings.CommandQueueSize),
		retiredSounds:       ring.New[sound.Sound](settings.SoundCapacity),
		snapshots:           ring.NewTripleBuffer[[]SoundSnapshot](nil),
	}
	for i := range r.snapshotBufs {
		r.snapshotBufs[i] = make([]SoundSnapshot, 0, settings.SoundCapacity)
	}
	return r
}

// Commands returns the control-to-renderer command ring.
func (r *Renderer) Commands() *ring.SPSC[Command] { return r.commands }

// NewSounds returns the ring used to move freshly constructed sounds
// into the renderer without it allocating them.
func (r *Renderer) NewSounds() *ring.SPSC[SoundRequest] { return r.newSounds }

// Results returns the ring the renderer uses to acknowledge resource
// creation with the generational key it assigned.
func (r *Renderer) Results() *ring.SPSC[CreatedResource] { return r.results }

// RetiredSounds returns the ring carrying sounds the renderer detached
// because they finished, for destruction on the control side.
func (r *Renderer) RetiredSounds() *ring.SPSC[sound.Sound] { return r.retiredSounds }

// Graph exposes the mixer graph for direct, renderer-thread-only
// inspection (e.g. by tests and the manager's snapshot path).
func (r *Renderer) Graph() *mixer.Graph { return r.graph }

// Clocks exposes the clock registry; see Graph's caveat.
func (r *Renderer) Clocks() *clock.Registry { return r.clocks }

// Modulators exposes the modulator registry; see Graph's caveat.
func (r *Renderer) Modulators() *modulator.Registry { return r.mods }

// SampleRate reports the rate Render's block-seconds math currently
// uses, updated by OnSampleRateChanged.
func (r *Renderer) SampleRate() float64 { return r.sampleRate }

// Render drives exactly one block: drain commands, accept new
// resources, advance clocks/modulators/the sample clock, process the
// graph into out, then reap finished sounds. out must be blockSize
// frames.
func (r *Renderer) Render(out []frame.Frame) {
	r.drainCommands()
	r.advance()
	r.processGraph(out)
	r.publishSnapshots()
	r.reapFinished()
}

func (r *Renderer) drainCommands() {
	r.commands.Drain(r.maxCommandsPerBlock, r.applyCommand)
	r.newSounds.Drain(r.maxCommandsPerBlock, r.applyNewSound)
}

func (r *Renderer) applyNewSound(req SoundRequest) {
	key, err := r.graph.AddSound(req.Track, req.Sound)
	r.ack(req.RequestID, key, err)
}

func (r *Renderer) applyCommand(cmd Command) {
	switch cmd.Kind {
	case CmdSetTrackVolume:
		if t := r.graph.Track(cmd.Target); t != nil {
			t.Volume().Set(cmd.VolumeDb, cmd.Tween)
		}
	case CmdAddRoute:
		err := r.graph.AddRoute(cmd.Target, cmd.Second, cmd.WeightDb)
		r.ack(cmd.RequestID, arena.Key{}, err)
	case CmdRemoveRoute:
		r.graph.RemoveRoute(cmd.Target, cmd.Second)
	case CmdPauseSubtree:
		r.graph.SetPausedSubtree(cmd.Target, true, cmd.Tween)
	case CmdResumeSubtree:
		r.graph.SetPausedSubtree(cmd.Target, false, cmd.Tween)
	case CmdRemoveTrack:
		r.graph.RemoveTrack(cmd.Target)
	case CmdAddTrack:
		key, err := r.graph.AddSubTrack(cmd.Target, cmd.TrackBuilder)
		r.ack(cmd.RequestID, key, err)
	case CmdAddClock:
		key, err := r.clocks.Add(cmd.ClockSpeed)
		r.ack(cmd.RequestID, key, err)
	case CmdStartClock:
		r.clocks.Start(cmd.Target)
	case CmdPauseClock:
		r.clocks.Pause(cmd.Target)
	case CmdStopClock:
		r.clocks.Stop(cmd.Target)
	case CmdSetClockSpeed:
		r.clocks.SetSpeed(cmd.Target, cmd.ClockSpeed, cmd.Tween)
	case CmdRemoveClock:
		r.clocks.Remove(cmd.Target)
	case CmdAddModulator:
		key, err := r.mods.Add(cmd.ModulatorBuild)
		r.ack(cmd.RequestID, key, err)
	case CmdRemoveModulator:
		r.mods.Remove(cmd.Target)
	case CmdAddEffect:
		if t := r.graph.Track(cmd.Target); t != nil {
			t.AddEffect(cmd.Effect)
		}
	case CmdStopSound, CmdPauseSound, CmdResumeSound:
		r.applySoundLifecycle(cmd)
	}
}

// soundController is the shape both sound.Static and sound.Streaming
// satisfy for pause/resume/stop; lifecycle commands look the sound up
// by key through the graph's sound arena.
type soundController interface {
	Pause(tween parameter.Tween)
	Resume(tween parameter.Tween)
	Stop(tween parameter.Tween)
}

func (r *Renderer) applySoundLifecycle(cmd Command) {
	s, ok := r.graph.Sound(cmd.Second)
	if !ok {
		return
	}
	ctrl, ok := s.(soundController)
	if !ok {
		return
	}
	switch cmd.Kind {
	case CmdStopSound:
		ctrl.Stop(cmd.Tween)
	case CmdPauseSound:
		ctrl.Pause(cmd.Tween)
	case CmdResumeSound:
		ctrl.Resume(cmd.Tween)
	}
}

func (r *Renderer) ack(requestID uint64, key arena.Key, err error) {
	if requestID == 0 {
		return
	}
	r.results.TryPush(CreatedResource{RequestID: requestID, Key: key, Err: err})
}

func (r *Renderer) advance() {
	blockSeconds := float64(r.blockSize) / r.sampleRate
	r.clocks.Advance(r.nowSample, r.sampleRate, blockSeconds)
	r.mods.Advance(blockSeconds)
	r.nowSample += int64(r.blockSize)
}

func (r *Renderer) processGraph(out []frame.Frame) {
	blockSeconds := float64(r.blockSize) / r.sampleRate
	sources := parameter.MultiSource{r.mods, r.graph}
	r.graph.Process(out, mixer.BlockInfo{
		NowSample:    r.nowSample,
		SampleRate:   r.sampleRate,
		BlockSeconds: blockSeconds,
		Clocks:       r.clocks,
		Sources:      sources,
	})
}

func (r *Renderer) reapFinished() {
	for _, s := range r.graph.ReapFinished() {
		if r.retiredSounds.TryPush(s) != nil {
			// Outbox saturated: drop rather than block the renderer
			// thread. The sound is already detached from the graph;
			// the worst case is a delayed GC of its backing memory.
			continue
		}
	}
}

// OnSampleRateChanged forwards a backend-driven sample-rate change to
// every effect's own recomputation hook, and updates the rate the
// renderer itself uses to size its block-seconds math. Sounds need no
// equivalent push: they read the current sample rate out of BlockInfo
// every block, so a Static sound's resample ratio already tracks
// newRate on the very next Process call.
func (r *Renderer) OnSampleRateChanged(newRate float64) {
	r.sampleRate = newRate
	r.graph.EachTrack(func(_ arena.Key, t *mixer.Track) {
		t.EachEffect(func(e effect.Effect) {
			e.OnSampleRateChanged(newRate)
		})
	})
}
