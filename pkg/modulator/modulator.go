// Package modulator implements component F: a global stream of values
// (LFO or tweener) sampled once per processing block, usable as a
// parameter.Link driver.
package modulator

import (
	"math"
	"time"

	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/ring"
)

// Kind discriminates the two modulator shapes.
type Kind int

const (
	KindLFO Kind = iota
	KindTweener
)

// Waveform selects an LFO's periodic shape.
type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
	Saw
)

func (w Waveform) sample(phase float64) float64 {
	switch w {
	case Triangle:
		return 2*math.Abs(2*(phase-math.Floor(phase+0.5))) - 1
	case Square:
		if math.Sin(2*math.Pi*phase) >= 0 {
			return 1
		}
		return -1
	case Saw:
		return 2*phase - 1
	default: // Sine
		return math.Sin(2 * math.Pi * phase)
	}
}

// LFOSettings configures a periodic oscillator whose output is always
// in [-1, 1].
type LFOSettings struct {
	Waveform    Waveform
	FrequencyHz float64
	Phase       float64 // initial phase offset in [0, 1)
}

// TweenerSettings configures a one-shot or looping ramp between two
// values.
type TweenerSettings struct {
	From, To float64
	Duration time.Duration
	Easing   frame.Easing
	Loop     bool // ping-pongs between From and To instead of holding at To
}

// Builder describes a modulator to create; exactly one of LFO or
// Tweener is meaningful, selected by Kind.
type Builder struct {
	Kind    Kind
	LFO     LFOSettings
	Tweener TweenerSettings
}

type modulatorState struct {
	builder Builder
	phase   float64 // LFO: cycle position in [0,1); Tweener: elapsed/duration, direction-adjusted
	forward bool     // Tweener ping-pong direction
	value   float64
	pub     *ring.TripleBuffer[float64]
}

func newModulator(b Builder) *modulatorState {
	m := &modulatorState{builder: b, forward: true, pub: ring.NewTripleBuffer(0.0)}
	if b.Kind == KindLFO {
		m.phase = b.LFO.Phase
	}
	m.value = m.compute(0)
	m.pub.Write(m.value)
	return m
}

func (m *modulatorState) compute(blockSeconds float64) float64 {
	switch m.builder.Kind {
	case KindLFO:
		freq := m.builder.LFO.FrequencyHz
		m.phase += freq * blockSeconds
		m.phase -= math.Floor(m.phase)
		return m.builder.LFO.Waveform.sample(m.phase)

	case KindTweener:
		t := m.builder.Tweener
		durSec := t.Duration.Seconds()
		step := 0.0
		if durSec > 0 {
			step = blockSeconds / durSec
		}
		if m.forward {
			m.phase += step
		} else {
			m.phase -= step
		}
		if m.phase >= 1 {
			m.phase = 1
			if t.Loop {
				m.forward = false
			}
		}
		if m.phase <= 0 {
			m.phase = 0
			if t.Loop && !m.forward {
				m.forward = true
			}
		}
		eased := t.Easing.Apply(m.phase)
		return t.From + (t.To-t.From)*eased
	}
	return 0
}

// advance steps the modulator by one block and republishes its value.
func (m *modulatorState) advance(blockSeconds float64) {
	m.value = m.compute(blockSeconds)
	m.pub.Write(m.value)
}

// Value returns the modulator's most recently published output, safe
// to read from the control thread.
func (m *modulatorState) Value() float64 { return m.pub.Read() }

// Registry owns every modulator resource and implements
// parameter.Source so Parameter.Advance can read modulator output
// without importing this package.
type Registry struct {
	mods *arena.Arena[*modulatorState]
}

// NewRegistry creates a Registry with room for capacity modulators.
func NewRegistry(capacity int) *Registry {
	return &Registry{mods: arena.New[*modulatorState](capacity)}
}

// Add creates a new modulator from b.
func (r *Registry) Add(b Builder) (arena.Key, error) {
	return r.mods.Insert(newModulator(b))
}

// Remove destroys a modulator. Parameters linked to it stop updating
// but retain their last value.
func (r *Registry) Remove(key arena.Key) bool {
	_, ok := r.mods.Remove(key)
	return ok
}

// Advance steps every modulator by one block. Call once per rendered
// block before advancing any parameter.Parameter linked to a
// modulator.
func (r *Registry) Advance(blockSeconds float64) {
	r.mods.Each(func(_ arena.Key, pm **modulatorState) {
		(*pm).advance(blockSeconds)
	})
}

// Value implements parameter.Source: it resolves a modulator Key to
// its current output.
func (r *Registry) Value(id arena.Key) (float64, bool) {
	m := r.mods.Get(id)
	if m == nil {
		return 0, false
	}
	return (*m).Value(), true
}

// ControlValue reads a modulator's last published output from the
// control thread, for ModulatorHandle.
func (r *Registry) ControlValue(id arena.Key) (float64, bool) {
	return r.Value(id)
}
