package effect

import (
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// Delay is a per-channel circular-buffer echo. DelayTimeSeconds is
// fixed at construction: the ring-buffer design doesn't admit safe
// reallocation on the realtime thread, so changing it requires a new
// Delay instance.
type Delay struct {
	Feedback *parameter.Parameter[Scalar]
	Mix      *parameter.Parameter[Scalar]

	bufL, bufR []float32
	pos        int
}

// NewDelay creates a Delay with a fixed delay line sized from
// delayTimeSeconds at sampleRate.
func NewDelay(sampleRate, delayTimeSeconds, feedback, mix float64) *Delay {
	n := int(delayTimeSeconds * sampleRate)
	if n < 1 {
		n = 1
	}
	return &Delay{
		Feedback: parameter.New(Scalar(feedback)),
		Mix:      parameter.New(Scalar(mix)),
		bufL:     make([]float32, n),
		bufR:     make([]float32, n),
	}
}

func (d *Delay) OnSampleRateChanged(float64) {}

func (d *Delay) Process(buf []frame.Frame, info BlockInfo) {
	d.Feedback.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	d.Mix.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)

	fb := float32(d.Feedback.Value())
	mix := float32(d.Mix.Value())
	n := len(d.bufL)

	for i := range buf {
		delayedL := d.bufL[d.pos]
		delayedR := d.bufR[d.pos]

		d.bufL[d.pos] = buf[i].L + delayedL*fb
		d.bufR[d.pos] = buf[i].R + delayedR*fb

		buf[i].L = buf[i].L*(1-mix) + delayedL*mix
		buf[i].R = buf[i].R*(1-mix) + delayedR*mix

		d.pos++
		if d.pos >= n {
			d.pos = 0
		}
	}
}

var _ Effect = (*Delay)(nil)
