package effect

import (
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// combTunings are the classic Freeverb comb delay lengths in samples
// at 44100 Hz; NewReverb scales them to the actual sample rate.
var combTunings = [4]float64{1116, 1188, 1277, 1356}

const allpassTuning = 556

type comb struct {
	buf     []float32
	pos     int
	damped  float32
}

func newComb(n int) *comb {
	if n < 1 {
		n = 1
	}
	return &comb{buf: make([]float32, n)}
}

func (c *comb) process(in, feedback, damping float32) float32 {
	out := c.buf[c.pos]
	c.damped = out*(1-damping) + c.damped*damping
	c.buf[c.pos] = in + c.damped*feedback
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

type allpass struct {
	buf []float32
	pos int
}

func newAllpass(n int) *allpass {
	if n < 1 {
		n = 1
	}
	return &allpass{buf: make([]float32, n)}
}

func (a *allpass) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*0.5
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

// Reverb is a Freeverb-style multi-comb, single-allpass reverberator
// run independently per channel, generalized from a single delay-line
// comb-filter reverb into a bank of four combs plus an allpass for a
// smoother tail.
type Reverb struct {
	Damping      *parameter.Parameter[Scalar]
	StereoWidth  *parameter.Parameter[Scalar]
	Feedback     *parameter.Parameter[Scalar]
	Mix          *parameter.Parameter[Scalar]

	combsL, combsR [4]*comb
	allpassL, allpassR *allpass
}

// NewReverb creates a Reverb tuned for sampleRate.
func NewReverb(sampleRate, damping, stereoWidth, feedback, mix float64) *Reverb {
	scale := sampleRate / 44100
	r := &Reverb{
		Damping:     parameter.New(Scalar(damping)),
		StereoWidth: parameter.New(Scalar(stereoWidth)),
		Feedback:    parameter.New(Scalar(feedback)),
		Mix:         parameter.New(Scalar(mix)),
		allpassL:    newAllpass(int(allpassTuning * scale)),
		allpassR:    newAllpass(int((allpassTuning + 23) * scale)),
	}
	for i, t := range combTunings {
		r.combsL[i] = newComb(int(t * scale))
		r.combsR[i] = newComb(int((t + 23) * scale)) // stereo decorrelation offset
	}
	return r
}

func (r *Reverb) OnSampleRateChanged(float64) {}

func (r *Reverb) Process(buf []frame.Frame, info BlockInfo) {
	r.Damping.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	r.StereoWidth.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	r.Feedback.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	r.Mix.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)

	damping := float32(r.Damping.Value())
	feedback := float32(r.Feedback.Value())
	width := float32(r.StereoWidth.Value())
	mix := float32(r.Mix.Value())

	for i := range buf {
		inL, inR := buf[i].L, buf[i].R

		var wetL, wetR float32
		for c := 0; c < 4; c++ {
			wetL += r.combsL[c].process(inL, feedback, damping)
			wetR += r.combsR[c].process(inR, feedback, damping)
		}
		wetL = r.allpassL.process(wetL)
		wetR = r.allpassR.process(wetR)

		// Blend the two channels' wet signal by stereoWidth: 0 collapses
		// to identical mono reverb, 1 keeps them fully decorrelated.
		monoWet := (wetL + wetR) / 2
		wetL = monoWet + (wetL-monoWet)*width
		wetR = monoWet + (wetR-monoWet)*width

		buf[i].L = inL*(1-mix) + wetL*mix
		buf[i].R = inR*(1-mix) + wetR*mix
	}
}

var _ Effect = (*Reverb)(nil)
