// Package sound implements component H: the polymorphic per-frame
// audio source contract and its two built-in implementations, Static
// and Streaming.
package sound

import (
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/scheduler"
)

// BlockInfo carries everything a Sound needs to process one block:
// the renderer's running position, the resolvers a Parameter needs to
// advance its tweens and links, and the block's duration.
type BlockInfo struct {
	NowSample    int64
	SampleRate   float64
	BlockSeconds float64
	Clocks       scheduler.ClockLookup
	Sources      parameter.Source
}

// PlaybackState is a sound's lifecycle stage.
type PlaybackState int

const (
	StatePlaying PlaybackState = iota
	StateWaitingToResume
	StatePausing
	StatePaused
	StateResuming
	StateStopping
	StateStopped
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "Playing"
	case StateWaitingToResume:
		return "WaitingToResume"
	case StatePausing:
		return "Pausing"
	case StatePaused:
		return "Paused"
	case StateResuming:
		return "Resuming"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Sound is any value the renderer can mix into a track: it produces
// frames into a caller-owned buffer, reports its lifecycle stage, and
// is notified once per block before processing so streaming sources
// can top up their decode ring.
type Sound interface {
	Process(out []frame.Frame, info BlockInfo)
	State() PlaybackState
	OnStartProcessing()
	Finished() bool
}

// Region is a half-open range of source sample-frame indices,
// [Start, End).
type Region struct {
	Start, End float64
}

// Len returns the region's width in frames.
func (r Region) Len() float64 { return r.End - r.Start }

// Contains reports whether idx falls within [Start, End).
func (r Region) Contains(idx float64) bool { return idx >= r.Start && idx < r.End }
