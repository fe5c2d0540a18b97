// Package clock implements the tickable timebase from spec.md §4.E: a
// clock advances ticks() and a sub-tick fraction at a configurable
// speed, and the scheduler package consults it to resolve ClockTime
// StartTimes.
package clock

import (
	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/ring"
	"github.com/kira-audio/kira/pkg/scheduler"
)

// Speed expresses a clock's rate as ticks per second, regardless of
// which constructor produced it, so speed tweens interpolate in a
// single linear space.
type Speed struct {
	TicksPerSecond float64
}

// SecondsPerTick builds a Speed from the duration of one tick.
func SecondsPerTick(s float64) Speed {
	if s <= 0 {
		return Speed{}
	}
	return Speed{TicksPerSecond: 1 / s}
}

// TicksPerSecondSpeed builds a Speed directly from a tick rate.
func TicksPerSecondSpeed(r float64) Speed {
	return Speed{TicksPerSecond: r}
}

// TicksPerMinute builds a Speed from a beats-per-minute-style rate.
func TicksPerMinute(bpm float64) Speed {
	return Speed{TicksPerSecond: bpm / 60}
}

// Lerp implements parameter.Tweenable for Speed.
func (s Speed) Lerp(target Speed, t float64) Speed {
	return Speed{TicksPerSecond: s.TicksPerSecond + (target.TicksPerSecond-s.TicksPerSecond)*t}
}

// Snapshot is the control-side-readable clock state, published once per
// block through a triple buffer.
type Snapshot struct {
	Ticks    uint64
	Fraction float64
	Running  bool
}

// Clock is a single tick source. It is owned by a Registry and
// advanced by the renderer; ClockHandle reads its Snapshot from the
// control thread.
type Clock struct {
	speed    *parameter.Parameter[Speed]
	running  bool
	ticks    uint64
	fraction float64
	pub      *ring.TripleBuffer[Snapshot]
}

func newClock(initial Speed) *Clock {
	return &Clock{
		speed: parameter.New(initial),
		pub:   ring.NewTripleBuffer(Snapshot{}),
	}
}

// Snapshot returns the most recently published state, safe to call
// from the control thread.
func (c *Clock) Snapshot() Snapshot { return c.pub.Read() }

func (c *Clock) publish() {
	c.pub.Write(Snapshot{Ticks: c.ticks, Fraction: c.fraction, Running: c.running})
}

// Registry owns every Clock resource in a renderer and implements
// scheduler.ClockLookup against its own arena.Arena.
type Registry struct {
	clocks *arena.Arena[*Clock]
}

// NewRegistry creates a Registry with room for capacity clocks.
func NewRegistry(capacity int) *Registry {
	return &Registry{clocks: arena.New[*Clock](capacity)}
}

// Add creates a new, stopped clock at the given initial speed.
func (r *Registry) Add(initial Speed) (arena.Key, error) {
	return r.clocks.Insert(newClock(initial))
}

// Remove destroys a clock. Any StartTime still waiting on it resolves
// to scheduler.Cancelled on its next evaluation.
func (r *Registry) Remove(key arena.Key) bool {
	_, ok := r.clocks.Remove(key)
	return ok
}

// Start resets the clock to tick 0, fraction 0, and marks it running.
// Tick 0 is visible immediately, so a StartTime of ClockTime{ticks:0}
// fires in the same block as Start.
func (r *Registry) Start(key arena.Key) bool {
	c := r.clocks.Get(key)
	if c == nil {
		return false
	}
	(*c).ticks = 0
	(*c).fraction = 0
	(*c).running = true
	(*c).publish()
	return true
}

// Pause halts tick advancement without resetting position. A
// StartTime waiting on a target the clock has not yet reached simply
// holds.
func (r *Registry) Pause(key arena.Key) bool {
	c := r.clocks.Get(key)
	if c == nil {
		return false
	}
	(*c).running = false
	(*c).publish()
	return true
}

// Stop halts tick advancement and resets fraction to 0, preserving
// ticks. Unlike Start, it does not resume running.
func (r *Registry) Stop(key arena.Key) bool {
	c := r.clocks.Get(key)
	if c == nil {
		return false
	}
	(*c).running = false
	(*c).fraction = 0
	(*c).publish()
	return true
}

// SetSpeed schedules a tween on the clock's speed parameter.
func (r *Registry) SetSpeed(key arena.Key, target Speed, tw parameter.Tween) bool {
	c := r.clocks.Get(key)
	if c == nil {
		return false
	}
	(*c).speed.Set(target, tw)
	return true
}

// Get returns the Clock for key, or nil if it does not resolve. Used
// by handles to read Snapshot directly.
func (r *Registry) Get(key arena.Key) *Clock {
	c := r.clocks.Get(key)
	if c == nil {
		return nil
	}
	return *c
}

// Advance steps every clock's speed parameter and, for running clocks,
// its tick/fraction position by one block, then republishes its
// Snapshot. Call once per rendered block before resolving any
// StartTime that targets a ClockTime.
func (r *Registry) Advance(nowSample int64, sampleRate, blockSeconds float64) {
	r.clocks.Each(func(_ arena.Key, pc **Clock) {
		c := *pc
		c.speed.Advance(blockSeconds, nowSample, sampleRate, r, nil)
		if !c.running {
			c.publish()
			return
		}
		c.fraction += c.speed.Value().TicksPerSecond * blockSeconds
		for c.fraction >= 1 {
			c.fraction -= 1
			c.ticks++
		}
		c.publish()
	})
}

// Snapshot implements scheduler.ClockLookup.
func (r *Registry) Snapshot(key arena.Key) (scheduler.ClockSnapshot, bool) {
	c := r.clocks.Get(key)
	if c == nil {
		return scheduler.ClockSnapshot{}, false
	}
	cl := *c
	return scheduler.ClockSnapshot{Ticks: cl.ticks, Fraction: cl.fraction, Running: cl.running}, true
}

var _ scheduler.ClockLookup = (*Registry)(nil)
