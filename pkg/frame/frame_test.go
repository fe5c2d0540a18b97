package frame

import (
	"math"
	"testing"
)

func TestPanned(t *testing.T) {
	tests := []struct {
		name string
		pan  float64
	}{
		{"full left", -1},
		{"center", 0},
		{"full right", 1},
		{"clamped beyond range", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Panned(1.0, tt.pan)
			power := float64(f.L)*float64(f.L) + float64(f.R)*float64(f.R)
			if math.Abs(power-1.0) > 1e-6 {
				t.Errorf("equal-power panning violated: L=%f R=%f power=%f", f.L, f.R, power)
			}
		})
	}
}

func TestPannedCenterIsBalanced(t *testing.T) {
	f := Panned(1.0, 0)
	if math.Abs(float64(f.L-f.R)) > 1e-6 {
		t.Errorf("centered pan should balance L and R, got L=%f R=%f", f.L, f.R)
	}
}

func TestDecibelsAmplitude(t *testing.T) {
	tests := []struct {
		name string
		db   Decibels
		want float64
	}{
		{"unity", 0, 1.0},
		{"negative infinity", NegativeInfinity, 0.0},
		{"minus six db", -6, 0.501187},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.db.Amplitude()
			if math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestFromAmplitudeRoundTrip(t *testing.T) {
	for _, amp := range []float64{1.0, 0.5, 0.1, 2.0} {
		db := FromAmplitude(amp)
		back := db.Amplitude()
		if math.Abs(back-amp) > 1e-9 {
			t.Errorf("round trip for amp=%f: got %f", amp, back)
		}
	}
}

func TestSemitonesRate(t *testing.T) {
	tests := []struct {
		semis Semitones
		want  PlaybackRate
	}{
		{0, 1.0},
		{12, 2.0},
		{-12, 0.5},
	}
	for _, tt := range tests {
		got := tt.semis.Rate()
		if math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("semitones %f: got rate %f, want %f", tt.semis, got, tt.want)
		}
	}
}

func TestEasingEndpoints(t *testing.T) {
	fns := []Function{Linear, Power2, Power3, Power4}
	dirs := []Direction{In, Out, InOut}
	for _, fn := range fns {
		for _, dir := range dirs {
			e := Easing{Function: fn, Direction: dir}
			if got := e.Apply(0); got != 0 {
				t.Errorf("fn=%d dir=%d: Apply(0)=%f, want 0", fn, dir, got)
			}
			if got := e.Apply(1); got != 1 {
				t.Errorf("fn=%d dir=%d: Apply(1)=%f, want 1", fn, dir, got)
			}
		}
	}
}

func TestEasingMonotone(t *testing.T) {
	fns := []Function{Linear, Power2, Power3, Power4}
	dirs := []Direction{In, Out, InOut}
	for _, fn := range fns {
		for _, dir := range dirs {
			e := Easing{Function: fn, Direction: dir}
			prev := -1.0
			for i := 0; i <= 100; i++ {
				t := float64(i) / 100
				v := e.Apply(t)
				if v < prev-1e-9 {
					panic("non-monotone easing")
				}
				prev = v
			}
		}
	}
}

func TestMixBuffer(t *testing.T) {
	dst := []Frame{{1, 1}, {2, 2}}
	src := []Frame{{1, 1}, {1, 1}}
	MixBuffer(dst, src, 0.5)
	if dst[0] != (Frame{1.5, 1.5}) {
		t.Errorf("got %+v, want {1.5 1.5}", dst[0])
	}
	if dst[1] != (Frame{2.5, 2.5}) {
		t.Errorf("got %+v, want {2.5 2.5}", dst[1])
	}
}
