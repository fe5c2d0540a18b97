package manager

import (
	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/clock"
	"github.com/kira-audio/kira/pkg/effect"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/kerr"
	"github.com/kira-audio/kira/pkg/mixer"
	"github.com/kira-audio/kira/pkg/modulator"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/renderer"
	"github.com/kira-audio/kira/pkg/sound"
)

// PendingResult is returned by operations whose only possible failure
// is discovered asynchronously once the renderer evaluates the
// command (a cyclic route, an exhausted arena). Done reports whether
// the renderer has processed the command yet; Err is only meaningful
// once Done is true.
type PendingResult struct {
	res *resolution
}

func (p *PendingResult) Done() bool { _, _, done := p.res.get(); return done }
func (p *PendingResult) Err() error { _, err, _ := p.res.get(); return err }

func push(mgr *AudioManager, id uint64, cmd renderer.Command) error {
	if err := mgr.r.Commands().TryPush(cmd); err != nil {
		mgr.forgetPending(id)
		return kerr.Wrap(kerr.CommandQueueFull, "enqueue command", err)
	}
	return nil
}

// TrackHandle names a mixer track created through AddSubTrack (or the
// implicit MAIN track from MainTrack). Its Key only becomes valid
// once Done reports true.
type TrackHandle struct {
	mgr *AudioManager
	res *resolution
}

func (t *TrackHandle) Done() bool       { _, _, done := t.res.get(); return done }
func (t *TrackHandle) Err() error       { _, err, _ := t.res.get(); return err }
func (t *TrackHandle) Key() (arena.Key, bool) {
	k, _, done := t.res.get()
	return k, done
}

// SetVolume tweens the track's volume. A no-op, per spec's infallible-
// setter design, if the track hasn't resolved yet or no longer exists.
func (t *TrackHandle) SetVolume(db frame.Decibels, tween parameter.Tween) {
	k, done := t.Key()
	if !done {
		return
	}
	t.mgr.r.Commands().TryPush(renderer.Command{
		Kind: renderer.CmdSetTrackVolume, Target: k, VolumeDb: db, Tween: tween,
	})
}

// AddEffect appends e to the track's effect chain, processed in the
// order added. Infallible and fire-and-forget, like SetVolume; a no-op
// if the track hasn't resolved yet.
func (t *TrackHandle) AddEffect(e effect.Effect) {
	k, done := t.Key()
	if !done {
		return
	}
	t.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdAddEffect, Target: k, Effect: e})
}

// AddRoute adds a weighted route from this track to to. Rejected
// asynchronously if it would create a cycle; the result is observed
// through the returned PendingResult once AudioManager.Poll runs.
func (t *TrackHandle) AddRoute(to *TrackHandle, weightDb frame.Decibels) (*PendingResult, error) {
	fromKey, fromDone := t.Key()
	toKey, toDone := to.Key()
	if !fromDone || !toDone {
		return nil, kerr.New(kerr.InvalidConfiguration, "track handle not yet resolved")
	}
	id, res := t.mgr.registerPending()
	cmd := renderer.Command{Kind: renderer.CmdAddRoute, RequestID: id, Target: fromKey, Second: toKey, WeightDb: weightDb}
	if err := push(t.mgr, id, cmd); err != nil {
		return nil, err
	}
	return &PendingResult{res: res}, nil
}

// RemoveRoute removes a previously added route, if any. Infallible.
func (t *TrackHandle) RemoveRoute(to *TrackHandle) {
	fromKey, fromDone := t.Key()
	toKey, toDone := to.Key()
	if !fromDone || !toDone {
		return
	}
	t.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdRemoveRoute, Target: fromKey, Second: toKey})
}

// PauseSubtree/ResumeSubtree cascade a pause state across this track
// and every descendant, per spec.md §4.J. Pausing silences the subtree
// at once; resuming fades its sounds back in over tween.
func (t *TrackHandle) PauseSubtree(tween parameter.Tween) {
	t.setPausedSubtree(true, tween)
}

func (t *TrackHandle) ResumeSubtree(tween parameter.Tween) {
	t.setPausedSubtree(false, tween)
}

func (t *TrackHandle) setPausedSubtree(paused bool, tween parameter.Tween) {
	k, done := t.Key()
	if !done {
		return
	}
	kind := renderer.CmdResumeSubtree
	if paused {
		kind = renderer.CmdPauseSubtree
	}
	t.mgr.r.Commands().TryPush(renderer.Command{Kind: kind, Target: k, Tween: tween})
}

// Remove tears down this track. The MAIN track cannot be removed; the
// renderer silently rejects that command.
func (t *TrackHandle) Remove() {
	k, done := t.Key()
	if !done {
		return
	}
	t.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdRemoveTrack, Target: k})
}

// ListenerHandle names a track created through AddListener: an
// ordinary track carrying a position/orientation that other tracks'
// SpatialProps.ListenerRef can point to. Spec.md §6 names it as its
// own handle type even though it shares a TrackHandle's machinery.
type ListenerHandle struct {
	*TrackHandle
}

// SoundHandle names a sound created through Play. Streaming is non-nil
// only for sounds built from StreamingSoundData, and is how an external
// decoder thread keeps feeding frames into a sound that has already
// been handed across the ring to the renderer.
type SoundHandle struct {
	mgr       *AudioManager
	res       *resolution
	streaming *sound.Streaming
}

func (h *SoundHandle) Done() bool { _, _, done := h.res.get(); return done }
func (h *SoundHandle) Err() error { _, err, _ := h.res.get(); return err }
func (h *SoundHandle) Key() (arena.Key, bool) {
	k, _, done := h.res.get()
	return k, done
}

// Feed pushes one decoded frame into a streaming sound's decode ring.
// A no-op returning false for a sound built from StaticSoundData.
func (h *SoundHandle) Feed(f frame.Frame) bool {
	if h.streaming == nil {
		return false
	}
	return h.streaming.Feed(f)
}

// SignalDecodeError marks a streaming sound's decoder as fatally
// failed; the sound transitions to Stopped on its next Process. A
// no-op for a sound built from StaticSoundData.
func (h *SoundHandle) SignalDecodeError() {
	if h.streaming != nil {
		h.streaming.SignalDecodeError()
	}
}

func (h *SoundHandle) sendLifecycle(kind renderer.CommandKind, tween parameter.Tween) {
	k, done := h.Key()
	if !done {
		return
	}
	h.mgr.r.Commands().TryPush(renderer.Command{Kind: kind, Second: k, Tween: tween})
}

func (h *SoundHandle) Pause(tween parameter.Tween)  { h.sendLifecycle(renderer.CmdPauseSound, tween) }
func (h *SoundHandle) Resume(tween parameter.Tween) { h.sendLifecycle(renderer.CmdResumeSound, tween) }
func (h *SoundHandle) Stop(tween parameter.Tween)   { h.sendLifecycle(renderer.CmdStopSound, tween) }

// State and Position read the most recently published snapshot for
// this sound; State reports StateStopped and Position reports 0 if no
// snapshot has been observed yet (handle not yet resolved, or its
// sound has already been reaped and retired).
func (h *SoundHandle) State() sound.PlaybackState {
	snap, ok := h.snapshot()
	if !ok {
		return sound.StateStopped
	}
	return snap.State
}

func (h *SoundHandle) Position() float64 {
	snap, ok := h.snapshot()
	if !ok {
		return 0
	}
	return snap.Position
}

func (h *SoundHandle) snapshot() (renderer.SoundSnapshot, bool) {
	k, done := h.Key()
	if !done {
		return renderer.SoundSnapshot{}, false
	}
	for _, s := range h.mgr.Snapshots() {
		if s.Key == k {
			return s, true
		}
	}
	return renderer.SoundSnapshot{}, false
}

// ClockHandle names a clock created through AddClock.
type ClockHandle struct {
	mgr *AudioManager
	res *resolution
}

func (c *ClockHandle) Done() bool { _, _, done := c.res.get(); return done }
func (c *ClockHandle) Err() error { _, err, _ := c.res.get(); return err }
func (c *ClockHandle) Key() (arena.Key, bool) {
	k, _, done := c.res.get()
	return k, done
}

func (c *ClockHandle) Start() {
	k, done := c.Key()
	if !done {
		return
	}
	c.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdStartClock, Target: k})
}

// Pause halts tick advancement without resetting position.
func (c *ClockHandle) Pause() {
	k, done := c.Key()
	if !done {
		return
	}
	c.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdPauseClock, Target: k})
}

// Stop halts tick advancement and resets fraction to 0, preserving
// ticks.
func (c *ClockHandle) Stop() {
	k, done := c.Key()
	if !done {
		return
	}
	c.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdStopClock, Target: k})
}

func (c *ClockHandle) SetSpeed(target clock.Speed, tween parameter.Tween) {
	k, done := c.Key()
	if !done {
		return
	}
	c.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdSetClockSpeed, Target: k, ClockSpeed: target, Tween: tween})
}

func (c *ClockHandle) Remove() {
	k, done := c.Key()
	if !done {
		return
	}
	c.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdRemoveClock, Target: k})
}

// Time returns the clock's most recently published tick/fraction,
// fed from the renderer's own triple-buffered clock snapshots.
func (c *ClockHandle) Time() (clock.Snapshot, bool) {
	k, done := c.Key()
	if !done {
		return clock.Snapshot{}, false
	}
	cl := c.mgr.r.Clocks().Get(k)
	if cl == nil {
		return clock.Snapshot{}, false
	}
	return cl.Snapshot(), true
}

// ModulatorHandle names a modulator created through AddModulator.
type ModulatorHandle struct {
	mgr *AudioManager
	res *resolution
}

func (m *ModulatorHandle) Done() bool { _, _, done := m.res.get(); return done }
func (m *ModulatorHandle) Err() error { _, err, _ := m.res.get(); return err }
func (m *ModulatorHandle) Key() (arena.Key, bool) {
	k, _, done := m.res.get()
	return k, done
}

func (m *ModulatorHandle) Remove() {
	k, done := m.Key()
	if !done {
		return
	}
	m.mgr.r.Commands().TryPush(renderer.Command{Kind: renderer.CmdRemoveModulator, Target: k})
}

// Value reads the modulator's most recently computed output, or
// (0, false) if the handle hasn't resolved yet.
func (m *ModulatorHandle) Value() (float64, bool) {
	k, done := m.Key()
	if !done {
		return 0, false
	}
	return m.mgr.r.Modulators().Value(k)
}

// Play constructs a realtime Sound from data and hands it to the
// renderer to be mixed into track. Returns a handle whose Key
// resolves once AudioManager.Poll observes the renderer's ack.
func (m *AudioManager) Play(track *TrackHandle, data SoundData) (*SoundHandle, error) {
	trackKey, done := track.Key()
	if !done {
		return nil, kerr.New(kerr.InvalidConfiguration, "track handle not yet resolved")
	}
	s, err := data.intoSound(m.backendSampleRate())
	if err != nil {
		return nil, kerr.Wrap(kerr.InvalidConfiguration, "into_sound", err)
	}
	id, res := m.registerPending()
	if err := m.r.NewSounds().TryPush(renderer.SoundRequest{RequestID: id, Track: trackKey, Sound: s}); err != nil {
		m.forgetPending(id)
		return nil, kerr.Wrap(kerr.CommandQueueFull, "play", err)
	}
	streaming, _ := s.(*sound.Streaming)
	return &SoundHandle{mgr: m, res: res, streaming: streaming}, nil
}

func (m *AudioManager) backendSampleRate() float64 {
	return m.r.SampleRate()
}

// AddSubTrack creates a new mixer track as a child of parent.
func (m *AudioManager) AddSubTrack(parent *TrackHandle, builder mixer.TrackBuilder) (*TrackHandle, error) {
	parentKey, done := parent.Key()
	if !done {
		return nil, kerr.New(kerr.InvalidConfiguration, "parent track handle not yet resolved")
	}
	id, res := m.registerPending()
	cmd := renderer.Command{Kind: renderer.CmdAddTrack, RequestID: id, Target: parentKey, TrackBuilder: builder}
	if err := push(m, id, cmd); err != nil {
		return nil, err
	}
	return &TrackHandle{mgr: m, res: res}, nil
}

// AddClock creates a new, stopped clock at the given initial speed.
func (m *AudioManager) AddClock(initial clock.Speed) (*ClockHandle, error) {
	id, res := m.registerPending()
	cmd := renderer.Command{Kind: renderer.CmdAddClock, RequestID: id, ClockSpeed: initial}
	if err := push(m, id, cmd); err != nil {
		return nil, err
	}
	return &ClockHandle{mgr: m, res: res}, nil
}

// AddModulator creates a new modulator from builder.
func (m *AudioManager) AddModulator(builder modulator.Builder) (*ModulatorHandle, error) {
	id, res := m.registerPending()
	cmd := renderer.Command{Kind: renderer.CmdAddModulator, RequestID: id, ModulatorBuild: builder}
	if err := push(m, id, cmd); err != nil {
		return nil, err
	}
	return &ModulatorHandle{mgr: m, res: res}, nil
}

// AddListener creates a new track at pos/forward meant to be
// referenced by other tracks' SpatialProps.ListenerRef.
func (m *AudioManager) AddListener(pos, forward mixer.Position) (*ListenerHandle, error) {
	track, err := m.AddSubTrack(m.MainTrack(), mixer.TrackBuilder{Position: pos, Forward: forward})
	if err != nil {
		return nil, err
	}
	return &ListenerHandle{TrackHandle: track}, nil
}
