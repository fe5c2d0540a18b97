// Package scheduler resolves spec.md's StartTime predicate — "now /
// after a duration / at a named clock tick" — once per rendered block.
// It depends only on pkg/arena (for the clock-identifying Key type) so
// that pkg/clock and pkg/parameter can both depend on it without a
// cycle: pkg/clock implements ClockLookup against its own registry,
// and pkg/parameter schedules tweens against a StartTime.
package scheduler

import (
	"time"

	"github.com/kira-audio/kira/pkg/arena"
)

// Kind discriminates the StartTime variants.
type Kind int

const (
	KindImmediate Kind = iota
	KindDelayed
	KindClockTime
)

// StartTime is the tagged union from spec.md §3: Immediate, Delayed(d),
// or ClockTime{clock, ticks, fraction}.
type StartTime struct {
	Kind     Kind
	Delay    time.Duration
	Clock    arena.Key
	Ticks    uint64
	Fraction float64
}

// Immediate returns a StartTime that fires on the next evaluation.
func Immediate() StartTime {
	return StartTime{Kind: KindImmediate}
}

// Delayed returns a StartTime that fires after d has elapsed on the
// engine's sample clock, measured from the first time it is evaluated.
func Delayed(d time.Duration) StartTime {
	return StartTime{Kind: KindDelayed, Delay: d}
}

// AtClockTime returns a StartTime that fires once clock reaches or
// passes (ticks, fraction). fraction must be in [0, 1).
func AtClockTime(clock arena.Key, ticks uint64, fraction float64) StartTime {
	return StartTime{Kind: KindClockTime, Clock: clock, Ticks: ticks, Fraction: fraction}
}

// reached reports whether (ticks, fraction) has reached or passed the
// target, per spec.md's lexicographic (ticks, fraction) ordering.
func (st StartTime) reached(ticks uint64, fraction float64) bool {
	if ticks != st.Ticks {
		return ticks > st.Ticks
	}
	return fraction >= st.Fraction
}

// State is the result of evaluating a StartTime for the current block.
type State int

const (
	// NotYet: the predicate has not fired; keep waiting.
	NotYet State = iota
	// StartingNow: the predicate fires on this block.
	StartingNow
	// AlreadyDue: the predicate fired on a previous block (idempotent
	// re-evaluation after the dependent action already started).
	AlreadyDue
	// Cancelled: the StartTime depended on a clock that no longer
	// exists. The caller must transition its owner to a terminal state.
	Cancelled
)

// ClockSnapshot is the minimal clock state the scheduler needs to
// resolve a ClockTime StartTime.
type ClockSnapshot struct {
	Ticks    uint64
	Fraction float64
	Running  bool
}

// ClockLookup resolves a clock Key to its current snapshot. ok is false
// if the clock has been destroyed (as opposed to merely not running,
// which is a valid, non-cancelling state).
type ClockLookup interface {
	Snapshot(key arena.Key) (ClockSnapshot, bool)
}

// Pending wraps a StartTime with the mutable resolution state needed
// to evaluate it across many blocks: a Delayed deadline is computed
// once, on first evaluation, against the sample clock at that moment;
// a fired predicate stays fired even if its clock later stops.
type Pending struct {
	st             StartTime
	deadlineSample int64
	hasDeadline    bool
	fired          bool
}

// NewPending wraps st for repeated per-block evaluation.
func NewPending(st StartTime) *Pending {
	return &Pending{st: st, deadlineSample: -1}
}

// StartTime returns the wrapped predicate.
func (p *Pending) StartTime() StartTime { return p.st }

// Resolve evaluates the predicate for the current block. nowSample is
// the engine's running sample index; sampleRate is frames/second.
func (p *Pending) Resolve(nowSample int64, sampleRate float64, clocks ClockLookup) State {
	if p.fired {
		return AlreadyDue
	}
	switch p.st.Kind {
	case KindImmediate:
		p.fired = true
		return StartingNow

	case KindDelayed:
		if !p.hasDeadline {
			p.deadlineSample = nowSample + int64(p.st.Delay.Seconds()*sampleRate)
			p.hasDeadline = true
		}
		if nowSample >= p.deadlineSample {
			p.fired = true
			return StartingNow
		}
		return NotYet

	case KindClockTime:
		snap, ok := clocks.Snapshot(p.st.Clock)
		if !ok {
			return Cancelled
		}
		if p.st.reached(snap.Ticks, snap.Fraction) {
			p.fired = true
			return StartingNow
		}
		// A clock that has stopped without reaching the target still
		// holds the action rather than cancelling it — see spec.md §4.G.
		return NotYet
	}
	return NotYet
}
