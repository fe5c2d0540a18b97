package effect

import (
	"math"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// EQKind selects a single-band biquad's shape.
type EQKind int

const (
	Bell EQKind = iota
	LowShelf
	HighShelf
)

// biquadCoeffs are the standard Audio EQ Cookbook coefficients.
type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

// EQ is a single-band biquad filter. Coefficients are recomputed only
// when frequency, gain, or Q actually change, since the cookbook
// formulas involve several transcendental calls per recomputation.
type EQ struct {
	Kind      EQKind
	Frequency *parameter.Parameter[Scalar]
	GainDb    *parameter.Parameter[Scalar]
	Q         *parameter.Parameter[Scalar]

	sampleRate float64
	coeffs     biquadCoeffs
	lastFreq, lastGain, lastQ float64
	initialized bool

	x1L, x2L, y1L, y2L float64
	x1R, x2R, y1R, y2R float64
}

// NewEQ creates an EQ band at the given initial settings.
func NewEQ(sampleRate float64, kind EQKind, frequency, gainDb, q float64) *EQ {
	e := &EQ{
		Kind:       kind,
		Frequency:  parameter.New(Scalar(frequency)),
		GainDb:     parameter.New(Scalar(gainDb)),
		Q:          parameter.New(Scalar(q)),
		sampleRate: sampleRate,
	}
	e.recompute(frequency, gainDb, q)
	return e
}

func (e *EQ) OnSampleRateChanged(newRate float64) {
	e.sampleRate = newRate
	e.initialized = false
}

// SampleRate reports the rate this band's coefficients are currently
// computed against.
func (e *EQ) SampleRate() float64 { return e.sampleRate }

func (e *EQ) recompute(freq, gainDb, q float64) {
	if q <= 0 {
		q = 0.707
	}
	if freq <= 0 {
		freq = 1
	}
	a := math.Pow(10, gainDb/40)
	w0 := 2 * math.Pi * freq / e.sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64
	switch e.Kind {
	case LowShelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cosW0 + sq)
		b1 = 2 * a * ((a - 1) - (a+1)*cosW0)
		b2 = a * ((a + 1) - (a-1)*cosW0 - sq)
		a0 = (a + 1) + (a-1)*cosW0 + sq
		a1 = -2 * ((a - 1) + (a+1)*cosW0)
		a2 = (a + 1) + (a-1)*cosW0 - sq
	case HighShelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cosW0 + sq)
		b1 = -2 * a * ((a - 1) + (a+1)*cosW0)
		b2 = a * ((a + 1) + (a-1)*cosW0 - sq)
		a0 = (a + 1) - (a-1)*cosW0 + sq
		a1 = 2 * ((a - 1) - (a+1)*cosW0)
		a2 = (a + 1) - (a-1)*cosW0 - sq
	default: // Bell
		b0 = 1 + alpha*a
		b1 = -2 * cosW0
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cosW0
		a2 = 1 - alpha/a
	}

	e.coeffs = biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
	e.lastFreq, e.lastGain, e.lastQ = freq, gainDb, q
	e.initialized = true
}

func (e *EQ) Process(buf []frame.Frame, info BlockInfo) {
	e.Frequency.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	e.GainDb.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	e.Q.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)

	freq := float64(e.Frequency.Value())
	gain := float64(e.GainDb.Value())
	q := float64(e.Q.Value())
	if !e.initialized || freq != e.lastFreq || gain != e.lastGain || q != e.lastQ {
		e.recompute(freq, gain, q)
	}

	c := e.coeffs
	for i := range buf {
		buf[i].L = float32(e.biquad(c, float64(buf[i].L), &e.x1L, &e.x2L, &e.y1L, &e.y2L))
		buf[i].R = float32(e.biquad(c, float64(buf[i].R), &e.x1R, &e.x2R, &e.y1R, &e.y2R))
	}
}

// biquad applies one direct-form-I biquad step and updates the state
// registers in place via the caller-supplied pointers.
func (e *EQ) biquad(c biquadCoeffs, x float64, x1, x2, y1, y2 *float64) float64 {
	y := c.b0*x + c.b1*(*x1) + c.b2*(*x2) - c.a1*(*y1) - c.a2*(*y2)
	*x2 = *x1
	*x1 = x
	*y2 = *y1
	*y1 = y
	return y
}

var _ Effect = (*EQ)(nil)
