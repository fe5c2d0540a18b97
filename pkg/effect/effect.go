// Package effect implements component I: per-block, in-place buffer
// transforms with their own tweenable parameters.
package effect

import (
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/scheduler"
)

// BlockInfo carries what an Effect needs to advance its parameters for
// one block.
type BlockInfo struct {
	NowSample    int64
	SampleRate   float64
	BlockSeconds float64
	Clocks       scheduler.ClockLookup
	Sources      parameter.Source
}

// Effect transforms a buffer of frames in place, once per block.
type Effect interface {
	Process(buf []frame.Frame, info BlockInfo)
	OnSampleRateChanged(newRate float64)
}

// Scalar is a plain tweenable float64, used by effect parameters that
// don't warrant their own domain type: cutoff, resonance, mix, drive,
// ratio, and similar knobs.
type Scalar float64

func (s Scalar) Lerp(target Scalar, t float64) Scalar {
	return s + (target-s)*Scalar(t)
}
