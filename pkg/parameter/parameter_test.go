package parameter

import (
	"testing"
	"time"

	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/scheduler"
)

type fakeClocks map[arena.Key]scheduler.ClockSnapshot

func (f fakeClocks) Snapshot(k arena.Key) (scheduler.ClockSnapshot, bool) {
	s, ok := f[k]
	return s, ok
}

type fakeSource map[arena.Key]float64

func (f fakeSource) Value(id arena.Key) (float64, bool) {
	v, ok := f[id]
	return v, ok
}

const rate = 48000.0
const blockSeconds = 0.01 // 480 frames at 48kHz

func TestSetImmediateCancelsTween(t *testing.T) {
	p := New(frame.Unity)
	p.Set(frame.Decibels(-12), Tween{StartTime: scheduler.Immediate(), Duration: time.Second, Easing: frame.Default})
	p.Advance(blockSeconds, 0, rate, nil, nil)
	if p.Value() == frame.Decibels(-12) {
		t.Fatalf("tween should not have completed after one small block")
	}
	p.SetImmediate(frame.Decibels(-6))
	if p.Value() != frame.Decibels(-6) {
		t.Fatalf("got %v, want -6", p.Value())
	}
	p.Advance(blockSeconds, 1, rate, nil, nil)
	if p.Value() != frame.Decibels(-6) {
		t.Fatalf("tween should have been cancelled by SetImmediate, got %v", p.Value())
	}
}

func TestTweenReachesTargetAtDuration(t *testing.T) {
	p := New(frame.Decibels(0))
	dur := 100 * time.Millisecond
	p.Set(frame.Decibels(-20), Tween{StartTime: scheduler.Immediate(), Duration: dur, Easing: frame.Default})

	blocks := int(dur.Seconds()/blockSeconds) + 1
	for i := 0; i < blocks; i++ {
		p.Advance(blockSeconds, int64(i), rate, nil, nil)
	}
	if p.Value() != frame.Decibels(-20) {
		t.Fatalf("after full duration, got %v, want -20", p.Value())
	}
}

func TestTweenMonotonicProgressToward(t *testing.T) {
	p := New(frame.Panning(-1))
	p.Set(frame.Panning(1), Tween{StartTime: scheduler.Immediate(), Duration: 100 * time.Millisecond, Easing: frame.Default})

	prev := float64(p.Value())
	for i := 0; i < 11; i++ {
		p.Advance(blockSeconds, int64(i), rate, nil, nil)
		cur := float64(p.Value())
		if cur < prev {
			t.Fatalf("pan value decreased: %v -> %v", prev, cur)
		}
		prev = cur
	}
}

func TestTweenWaitsForDelayedStart(t *testing.T) {
	p := New(frame.Decibels(0))
	p.Set(frame.Decibels(-10), Tween{
		StartTime: scheduler.Delayed(50 * time.Millisecond),
		Duration:  10 * time.Millisecond,
		Easing:    frame.Default,
	})
	p.Advance(blockSeconds, 0, rate, nil, nil)
	if p.Value() != frame.Decibels(0) {
		t.Fatalf("tween should not have started yet, got %v", p.Value())
	}
}

func TestTweenWaitsForClockTimeAndFires(t *testing.T) {
	key := arena.Key{Index: 1, Generation: 1}
	p := New(frame.Decibels(0))
	p.Set(frame.Decibels(-10), Tween{
		StartTime: scheduler.AtClockTime(key, 10, 0),
		Duration:  10 * time.Millisecond,
		Easing:    frame.Default,
	})

	clocks := fakeClocks{key: {Ticks: 0, Fraction: 0, Running: true}}
	p.Advance(blockSeconds, 0, rate, clocks, nil)
	if p.Value() != frame.Decibels(0) {
		t.Fatalf("should still be waiting, got %v", p.Value())
	}

	clocks[key] = scheduler.ClockSnapshot{Ticks: 10, Fraction: 0, Running: true}
	for i := 0; i < 3; i++ {
		p.Advance(blockSeconds, int64(i+1), rate, clocks, nil)
	}
	if p.Value() == frame.Decibels(0) {
		t.Fatalf("tween should have progressed after clock reached target")
	}
}

func TestTweenCancelledWhenClockDestroyedLeavesValueAtSource(t *testing.T) {
	key := arena.Key{Index: 2, Generation: 1}
	p := New(frame.Decibels(-3))
	p.Set(frame.Decibels(-30), Tween{StartTime: scheduler.AtClockTime(key, 1, 0), Duration: 10 * time.Millisecond})

	clocks := fakeClocks{} // destroyed
	p.Advance(blockSeconds, 0, rate, clocks, nil)
	if p.Value() != frame.Decibels(-3) {
		t.Fatalf("cancelled tween must leave value at its pre-tween source, got %v", p.Value())
	}
}

func TestLinkOverridesTween(t *testing.T) {
	src := arena.Key{Index: 5, Generation: 1}
	p := New(frame.Decibels(0))
	p.Set(frame.Decibels(-40), DefaultTween())
	p.SetLink(Link[frame.Decibels]{
		SourceID:  src,
		InputMin:  0, InputMax: 1,
		OutputMin: frame.Decibels(-60), OutputMax: frame.Unity,
		Easing: frame.Default,
	})

	sources := fakeSource{src: 0.5}
	p.Advance(blockSeconds, 0, rate, nil, sources)
	want := frame.Decibels(-60).Lerp(frame.Unity, 0.5)
	if p.Value() != want {
		t.Fatalf("got %v, want %v", p.Value(), want)
	}
}

func TestClearLinkStopsFollowingSource(t *testing.T) {
	src := arena.Key{Index: 6, Generation: 1}
	p := New(frame.Decibels(-1))
	p.SetLink(Link[frame.Decibels]{SourceID: src, InputMin: 0, InputMax: 1, OutputMin: frame.NegativeInfinity, OutputMax: frame.Unity})
	sources := fakeSource{src: 1}
	p.Advance(blockSeconds, 0, rate, nil, sources)
	if p.Value() != frame.Unity {
		t.Fatalf("link not applied, got %v", p.Value())
	}
	p.ClearLink()
	p.Advance(blockSeconds, 1, rate, nil, sources)
	if p.Value() != frame.Unity {
		t.Fatalf("value should be frozen after ClearLink, got %v", p.Value())
	}
}

func TestInterpolatedValueBlendsBlockBoundary(t *testing.T) {
	p := New(frame.Panning(0))
	p.SetImmediate(frame.Panning(1))
	mid := p.InterpolatedValue(0.5)
	if mid != frame.Panning(1) {
		t.Fatalf("after SetImmediate both previous and current equal target, got %v", mid)
	}

	p2 := New(frame.Panning(-1))
	p2.Set(frame.Panning(1), Tween{StartTime: scheduler.Immediate(), Duration: 100 * time.Millisecond, Easing: frame.Default})
	p2.Advance(blockSeconds, 0, rate, nil, nil)
	blended := p2.InterpolatedValue(0)
	if blended != frame.Panning(-1) {
		t.Fatalf("InterpolatedValue(0) should equal previous value -1, got %v", blended)
	}
}

func TestZeroDurationTweenFallsBackToDefaultDuration(t *testing.T) {
	p := New(frame.Decibels(0))
	p.Set(frame.Decibels(-5), Tween{StartTime: scheduler.Immediate()})
	p.Advance(blockSeconds, 0, rate, nil, nil)
	blocks := int(DefaultDuration.Seconds()/blockSeconds) + 1
	for i := 1; i < blocks; i++ {
		p.Advance(blockSeconds, int64(i), rate, nil, nil)
	}
	if p.Value() != frame.Decibels(-5) {
		t.Fatalf("zero-duration tween should fall back to DefaultDuration and finish, got %v", p.Value())
	}
}
