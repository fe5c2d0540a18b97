// Package parameter implements the tween engine (spec.md §4.D): a value
// that can be set immediately, tweened over a duration with easing, or
// linked to a modulator (or listener-distance) input, optionally
// starting at a scheduled StartTime.
package parameter

import (
	"time"

	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/scheduler"
)

// DefaultDuration is used whenever a Tween is given a zero or negative
// duration. spec.md requires a non-zero default short enough to be
// perceptually instantaneous but long enough to avoid clicks.
const DefaultDuration = 10 * time.Millisecond

// Tweenable is the constraint every Parameter value type must satisfy:
// it can linearly interpolate toward a target of the same type.
type Tweenable[T any] interface {
	Lerp(target T, t float64) T
}

// Tween describes a scheduled interpolation: when it starts, how long
// it takes, and its easing shape.
type Tween struct {
	StartTime scheduler.StartTime
	Duration  time.Duration
	Easing    frame.Easing
}

// DefaultTween starts immediately, lasts DefaultDuration, and eases
// linearly.
func DefaultTween() Tween {
	return Tween{StartTime: scheduler.Immediate(), Duration: DefaultDuration, Easing: frame.Default}
}

// Link ties a Parameter's value to an external source (a modulator, or
// a track's listener distance), remapped from [InputMin,InputMax] into
// [OutputMin,OutputMax] through Easing. A Link overrides any in-flight
// tween for as long as it is attached.
type Link[T Tweenable[T]] struct {
	SourceID           arena.Key
	InputMin, InputMax float64
	OutputMin, OutputMax T
	Easing             frame.Easing
}

// Source resolves a link's SourceID to its current raw value. Both
// pkg/modulator's registry and pkg/mixer's per-track listener-distance
// cache implement this so Parameter.Advance never needs to import
// either package.
type Source interface {
	Value(id arena.Key) (float64, bool)
}

// MultiSource combines several Sources into one, trying each in order
// and returning the first that resolves id. Used by the renderer to
// present modulators and the mixer's listener-distance cache as a
// single Source to every Parameter.Advance call.
type MultiSource []Source

func (m MultiSource) Value(id arena.Key) (float64, bool) {
	for _, s := range m {
		if s == nil {
			continue
		}
		if v, ok := s.Value(id); ok {
			return v, true
		}
	}
	return 0, false
}

type activeTween struct {
	pending  *scheduler.Pending
	duration time.Duration
	easing   frame.Easing
	elapsed  time.Duration
	started  bool
}

// Parameter is a tweenable control-plane value read once per block by
// the renderer.
type Parameter[T Tweenable[T]] struct {
	current  T
	previous T
	target   T
	source   T
	tween    *activeTween
	link     *Link[T]
}

// New creates a Parameter holding initial as its current value.
func New[T Tweenable[T]](initial T) *Parameter[T] {
	return &Parameter[T]{current: initial, previous: initial, target: initial, source: initial}
}

// Value returns the current value as of the last Advance.
func (p *Parameter[T]) Value() T { return p.current }

// InterpolatedValue blends the previous block's value into the current
// one by frac in [0,1], hiding block-boundary steps from sounds and
// effects that sample the parameter at sub-block granularity.
func (p *Parameter[T]) InterpolatedValue(frac float64) T {
	return p.previous.Lerp(p.current, frac)
}

// SetImmediate applies v directly, cancelling any in-flight tween or
// link. Last-writer-wins for direct setters, per spec.md §4.B. The
// previous-block value is set to v as well, so InterpolatedValue
// returns v at every frac until the next Advance.
func (p *Parameter[T]) SetImmediate(v T) {
	p.tween = nil
	p.link = nil
	p.previous = v
	p.current = v
	p.target = v
	p.source = v
}

// Set starts a new tween toward target. Any in-flight tween on this
// parameter is cancelled and replaced; an attached Link is cleared.
func (p *Parameter[T]) Set(target T, tw Tween) {
	p.link = nil
	p.source = p.current
	p.target = target
	dur := tw.Duration
	if dur <= 0 {
		dur = DefaultDuration
	}
	p.tween = &activeTween{
		pending:  scheduler.NewPending(tw.StartTime),
		duration: dur,
		easing:   tw.Easing,
	}
}

// SetLink attaches a modulator/distance link, cancelling any in-flight
// tween. The link's output replaces the tween output every block until
// cleared.
func (p *Parameter[T]) SetLink(link Link[T]) {
	p.tween = nil
	l := link
	p.link = &l
}

// ClearLink detaches any link, leaving current at its last value.
func (p *Parameter[T]) ClearLink() {
	p.link = nil
}

// Active reports whether a tween is currently pending or in flight.
// Sound and effect state machines use this to detect when a fade they
// started on a Parameter has finished.
func (p *Parameter[T]) Active() bool {
	return p.tween != nil
}

// Advance advances the parameter by one block. blockSeconds is the
// block duration; nowSample/sampleRate locate the block on the sample
// clock for Delayed StartTimes; clocks resolves ClockTime StartTimes;
// sources resolves link inputs. Call once per block before sampling
// Value/InterpolatedValue.
func (p *Parameter[T]) Advance(blockSeconds float64, nowSample int64, sampleRate float64, clocks scheduler.ClockLookup, sources Source) {
	p.previous = p.current

	if p.link != nil {
		if sources != nil {
			if raw, ok := sources.Value(p.link.SourceID); ok {
				t := clamp01((raw - p.link.InputMin) / (p.link.InputMax - p.link.InputMin))
				p.current = p.link.OutputMin.Lerp(p.link.OutputMax, p.link.Easing.Apply(t))
			}
		}
		return
	}

	tw := p.tween
	if tw == nil {
		return
	}

	if !tw.started {
		state := tw.pending.Resolve(nowSample, sampleRate, clocks)
		switch state {
		case scheduler.StartingNow, scheduler.AlreadyDue:
			tw.started = true
		case scheduler.Cancelled:
			p.tween = nil
			return
		default: // NotYet
			return
		}
	}

	tw.elapsed += time.Duration(blockSeconds * float64(time.Second))
	durSec := tw.duration.Seconds()
	t := 1.0
	if durSec > 0 {
		t = tw.elapsed.Seconds() / durSec
	}
	if t > 1 {
		t = 1
	}
	p.current = p.source.Lerp(p.target, tw.easing.Apply(t))
	if t >= 1 {
		p.current = p.target
		p.tween = nil
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
