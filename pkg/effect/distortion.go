package effect

import (
	"math"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// DistortionKind selects the waveshaping curve.
type DistortionKind int

const (
	HardClip DistortionKind = iota
	SoftClip
)

// Distortion is a memoryless waveshaper with a drive control and
// dry/wet mix.
type Distortion struct {
	Kind    DistortionKind
	DriveDb *parameter.Parameter[Scalar]
	Mix     *parameter.Parameter[Scalar]
}

// NewDistortion creates a Distortion effect.
func NewDistortion(kind DistortionKind, driveDb, mix float64) *Distortion {
	return &Distortion{
		Kind:    kind,
		DriveDb: parameter.New(Scalar(driveDb)),
		Mix:     parameter.New(Scalar(mix)),
	}
}

func (d *Distortion) OnSampleRateChanged(float64) {}

func (d *Distortion) Process(buf []frame.Frame, info BlockInfo) {
	d.DriveDb.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	d.Mix.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)

	drive := frame.Decibels(d.DriveDb.Value()).Amplitude()
	mix := float64(d.Mix.Value())

	shape := hardClip
	if d.Kind == SoftClip {
		shape = softClip
	}

	for i := range buf {
		wetL := shape(float64(buf[i].L) * drive)
		wetR := shape(float64(buf[i].R) * drive)
		buf[i].L = float32(float64(buf[i].L)*(1-mix) + wetL*mix)
		buf[i].R = float32(float64(buf[i].R)*(1-mix) + wetR*mix)
	}
}

func hardClip(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func softClip(x float64) float64 {
	return math.Tanh(x)
}

var _ Effect = (*Distortion)(nil)
