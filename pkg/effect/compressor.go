package effect

import (
	"math"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// Compressor is a feed-forward RMS-envelope compressor.
type Compressor struct {
	ThresholdDb    *parameter.Parameter[Scalar]
	Ratio          *parameter.Parameter[Scalar]
	AttackSeconds  *parameter.Parameter[Scalar]
	ReleaseSeconds *parameter.Parameter[Scalar]
	MakeupDb       *parameter.Parameter[Scalar]
	Mix            *parameter.Parameter[Scalar]

	envelope float64
}

// NewCompressor creates a Compressor at the given initial settings.
func NewCompressor(thresholdDb, ratio, attackSeconds, releaseSeconds, makeupDb, mix float64) *Compressor {
	return &Compressor{
		ThresholdDb:    parameter.New(Scalar(thresholdDb)),
		Ratio:          parameter.New(Scalar(ratio)),
		AttackSeconds:  parameter.New(Scalar(attackSeconds)),
		ReleaseSeconds: parameter.New(Scalar(releaseSeconds)),
		MakeupDb:       parameter.New(Scalar(makeupDb)),
		Mix:            parameter.New(Scalar(mix)),
	}
}

func (c *Compressor) OnSampleRateChanged(float64) {}

func (c *Compressor) Process(buf []frame.Frame, info BlockInfo) {
	c.ThresholdDb.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	c.Ratio.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	c.AttackSeconds.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	c.ReleaseSeconds.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	c.MakeupDb.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	c.Mix.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)

	thresholdAmp := frame.Decibels(c.ThresholdDb.Value()).Amplitude()
	ratio := math.Max(1, float64(c.Ratio.Value()))
	makeup := frame.Decibels(c.MakeupDb.Value()).Amplitude()
	mix := float64(c.Mix.Value())

	attackCoef := timeConstant(float64(c.AttackSeconds.Value()), info.SampleRate)
	releaseCoef := timeConstant(float64(c.ReleaseSeconds.Value()), info.SampleRate)

	for i := range buf {
		rms := math.Sqrt((float64(buf[i].L)*float64(buf[i].L) + float64(buf[i].R)*float64(buf[i].R)) / 2)
		if rms > c.envelope {
			c.envelope = attackCoef*c.envelope + (1-attackCoef)*rms
		} else {
			c.envelope = releaseCoef*c.envelope + (1-releaseCoef)*rms
		}

		gain := 1.0
		if c.envelope > thresholdAmp && c.envelope > 0 {
			over := c.envelope / thresholdAmp
			compressed := math.Pow(over, 1/ratio-1)
			gain = compressed
		}
		gain *= makeup

		wetL := float64(buf[i].L) * gain
		wetR := float64(buf[i].R) * gain
		buf[i].L = float32(float64(buf[i].L)*(1-mix) + wetL*mix)
		buf[i].R = float32(float64(buf[i].R)*(1-mix) + wetR*mix)
	}
}

// timeConstant converts a time in seconds to a per-sample one-pole
// smoothing coefficient.
func timeConstant(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * sampleRate))
}

var _ Effect = (*Compressor)(nil)
