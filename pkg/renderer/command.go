package renderer

import (
	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/clock"
	"github.com/kira-audio/kira/pkg/effect"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/mixer"
	"github.com/kira-audio/kira/pkg/modulator"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/sound"
)

// CommandKind discriminates the POD command record's payload.
type CommandKind int

const (
	CmdSetTrackVolume CommandKind = iota
	CmdAddRoute
	CmdRemoveRoute
	CmdPauseSubtree
	CmdResumeSubtree
	CmdStopSound
	CmdPauseSound
	CmdResumeSound
	CmdStartClock
	CmdPauseClock
	CmdStopClock
	CmdSetClockSpeed
	CmdRemoveClock
	CmdRemoveModulator
	CmdRemoveTrack
	CmdAddTrack
	CmdAddClock
	CmdAddModulator
	CmdAddEffect
)

// Command is the fixed POD record the control side pushes across the
// command ring. Every field is valid for at least one Kind; unused
// fields are simply ignored. Most fields are plain values (Tween's
// StartTime may reference an arena.Key for a ClockTime wait, but that's
// still a plain value); Effect and TrackBuilder.Spatial carry pointers
// to values built on the control side.
type Command struct {
	Kind CommandKind

	RequestID uint64
	Target    arena.Key // track, clock, or modulator depending on Kind
	Second    arena.Key // route destination, or the sound for sound lifecycle Kinds

	VolumeDb       frame.Decibels
	WeightDb       frame.Decibels
	ClockSpeed     clock.Speed
	Tween          parameter.Tween
	TrackBuilder   mixer.TrackBuilder
	ModulatorBuild modulator.Builder
	Effect         effect.Effect
}

// SoundRequest moves a fully constructed Sound across the ring to the
// track that will own it, so the renderer thread never allocates one.
type SoundRequest struct {
	RequestID uint64
	Track     arena.Key
	Sound     sound.Sound
}

// CreatedResource acknowledges a resource-creation command, carrying
// the generational key the control side couldn't know until the
// renderer actually performed the insertion.
type CreatedResource struct {
	RequestID uint64
	Key       arena.Key
	Err       error
}
