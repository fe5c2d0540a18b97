package effect

import (
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
)

// VolumeControl applies a single decibel gain to a buffer.
type VolumeControl struct {
	VolumeDb *parameter.Parameter[frame.Decibels]
}

// NewVolumeControl creates a VolumeControl at the given initial gain.
func NewVolumeControl(volumeDb frame.Decibels) *VolumeControl {
	return &VolumeControl{VolumeDb: parameter.New(volumeDb)}
}

func (v *VolumeControl) OnSampleRateChanged(float64) {}

func (v *VolumeControl) Process(buf []frame.Frame, info BlockInfo) {
	v.VolumeDb.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	n := len(buf)
	for i := range buf {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		amp := v.VolumeDb.InterpolatedValue(frac).Amplitude()
		buf[i] = buf[i].Scale(amp)
	}
}

var _ Effect = (*VolumeControl)(nil)
