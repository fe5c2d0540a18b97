package effect

import (
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// PanningControl applies an equal-power stereo balance to a buffer.
type PanningControl struct {
	Panning *parameter.Parameter[frame.Panning]
}

// NewPanningControl creates a PanningControl at the given initial pan
// position.
func NewPanningControl(panning frame.Panning) *PanningControl {
	return &PanningControl{Panning: parameter.New(panning)}
}

func (p *PanningControl) OnSampleRateChanged(float64) {}

func (p *PanningControl) Process(buf []frame.Frame, info BlockInfo) {
	p.Panning.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	n := len(buf)
	for i := range buf {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		left, right := p.Panning.InterpolatedValue(frac).Gains()
		buf[i] = frame.Frame{L: buf[i].L * float32(left), R: buf[i].R * float32(right)}
	}
}

var _ Effect = (*PanningControl)(nil)
