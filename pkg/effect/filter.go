package effect

import (
	"math"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// FilterMode selects which tap of the state-variable filter is output.
type FilterMode int

const (
	Low FilterMode = iota
	High
	Band
	Notch
)

// Filter is a Chamberlin state-variable filter with a dry/wet mix.
type Filter struct {
	Mode      *parameter.Parameter[modeValue]
	CutoffHz  *parameter.Parameter[Scalar]
	Resonance *parameter.Parameter[Scalar]
	Mix       *parameter.Parameter[Scalar]

	sampleRate  float64
	lowL, bandL float64
	lowR, bandR float64
}

// modeValue wraps FilterMode so it satisfies parameter.Tweenable; mode
// switches are not meant to be audibly interpolated, so Lerp snaps to
// target at t>=1 and holds source otherwise.
type modeValue FilterMode

func (m modeValue) Lerp(target modeValue, t float64) modeValue {
	if t >= 1 {
		return target
	}
	return m
}

// NewFilter creates a Filter at the given initial settings.
func NewFilter(sampleRate float64, mode FilterMode, cutoffHz, resonance, mix float64) *Filter {
	return &Filter{
		Mode:       parameter.New(modeValue(mode)),
		CutoffHz:   parameter.New(Scalar(cutoffHz)),
		Resonance:  parameter.New(Scalar(resonance)),
		Mix:        parameter.New(Scalar(mix)),
		sampleRate: sampleRate,
	}
}

func (f *Filter) OnSampleRateChanged(newRate float64) { f.sampleRate = newRate }

// SampleRate reports the rate this filter's coefficients are currently
// computed against.
func (f *Filter) SampleRate() float64 { return f.sampleRate }

func (f *Filter) Process(buf []frame.Frame, info BlockInfo) {
	f.Mode.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	f.CutoffHz.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	f.Resonance.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	f.Mix.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)

	cutoff := float64(f.CutoffHz.Value())
	if cutoff > f.sampleRate*0.49 {
		cutoff = f.sampleRate * 0.49
	}
	fCoef := 2 * math.Sin(math.Pi*cutoff/f.sampleRate)
	q := 1 / math.Max(0.5, float64(f.Resonance.Value()))
	mix := float64(f.Mix.Value())
	mode := FilterMode(f.Mode.Value())

	for i := range buf {
		buf[i].L = float32(f.step(&f.lowL, &f.bandL, float64(buf[i].L), fCoef, q, mix, mode))
		buf[i].R = float32(f.step(&f.lowR, &f.bandR, float64(buf[i].R), fCoef, q, mix, mode))
	}
}

func (f *Filter) step(low, band *float64, in, fCoef, q, mix float64, mode FilterMode) float64 {
	high := in - *low - q**band
	*band += fCoef * high
	*low += fCoef * (*band)
	notch := high + *low

	var wet float64
	switch mode {
	case Low:
		wet = *low
	case High:
		wet = high
	case Band:
		wet = *band
	default:
		wet = notch
	}
	return in*(1-mix) + wet*mix
}

var _ Effect = (*Filter)(nil)
