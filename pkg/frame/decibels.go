package frame

import "math"

// Decibels is a linear scalar expressed in dB; 0.0 is unity gain.
type Decibels float64

// Unity is 0 dB, i.e. no change in level.
const Unity Decibels = 0

// NegativeInfinity represents silence. Any dB value at or below this
// constant converts to an amplitude of exactly zero.
const NegativeInfinity Decibels = math.MaxFloat64 * -1

// Amplitude converts a dB value to a linear amplitude factor:
// amp = 10^(dB/20). -∞ dB yields exactly 0.
func (d Decibels) Amplitude() float64 {
	if math.IsInf(float64(d), -1) || d <= NegativeInfinity {
		return 0
	}
	return math.Pow(10, float64(d)/20)
}

// FromAmplitude converts a linear amplitude factor to dB. An amplitude
// of 0 or less converts to NegativeInfinity.
func FromAmplitude(amp float64) Decibels {
	if amp <= 0 {
		return NegativeInfinity
	}
	return Decibels(20 * math.Log10(amp))
}

// Lerp implements parameter.Tweenable for Decibels by interpolating in
// amplitude space so that fades sound linear rather than the dB value
// itself being linear (which would click at the very start of a fade
// from silence).
func (d Decibels) Lerp(target Decibels, t float64) Decibels {
	a0 := d.Amplitude()
	a1 := target.Amplitude()
	return FromAmplitude(a0 + (a1-a0)*t)
}

// PlaybackRate is a positive multiplier on playhead advance; 1.0 is
// native speed.
type PlaybackRate float64

// NativeRate is the default, unmodified playback rate.
const NativeRate PlaybackRate = 1

// Semitones converts a pitch offset in semitones to a PlaybackRate via
// rate = 2^(s/12).
type Semitones float64

// Rate converts semitones to a PlaybackRate.
func (s Semitones) Rate() PlaybackRate {
	return PlaybackRate(math.Pow(2, float64(s)/12))
}

// Lerp implements parameter.Tweenable for PlaybackRate.
func (r PlaybackRate) Lerp(target PlaybackRate, t float64) PlaybackRate {
	return r + (target-r)*PlaybackRate(t)
}

// Panning is a stereo pan position in [-1, 1].
type Panning float64

// Center is the neutral, unpanned position.
const Center Panning = 0

// Clamp returns p clamped to [-1, 1].
func (p Panning) Clamp() Panning {
	if p < -1 {
		return -1
	}
	if p > 1 {
		return 1
	}
	return p
}

// Lerp implements parameter.Tweenable for Panning.
func (p Panning) Lerp(target Panning, t float64) Panning {
	return (p + (target-p)*Panning(t)).Clamp()
}

// Gains returns the equal-power left/right multipliers for this pan
// position, shared by mono-to-stereo panning (Panned) and stereo
// balance controls (a static sound's own Panning parameter).
func (p Panning) Gains() (left, right float64) {
	angle := (float64(p.Clamp()) + 1) * (math.Pi / 4)
	return math.Cos(angle), math.Sin(angle)
}
