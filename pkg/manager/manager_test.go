package manager

import (
	"math"
	"testing"

	"github.com/kira-audio/kira/pkg/backend"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/mixer"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/scheduler"
	"github.com/kira-audio/kira/pkg/sound"
)

func testManager(t *testing.T) (*AudioManager, *backend.Mock) {
	t.Helper()
	be := backend.NewMock()
	m, err := New(Settings{
		Capacities: Capacities{
			Sounds:           16,
			SubTracks:        16,
			Clocks:           4,
			Modulators:       4,
			SpatialListeners: 4,
		},
		InternalBufferSize: 64,
		SampleRate:         48000,
		BackendSettings:    backend.Settings{SampleRate: 48000, PreferredBlockSize: 64},
	}, be)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, be
}

func sineSamples(n int, freqHz float64) []frame.Frame {
	buf := make([]frame.Frame, n)
	for i := range buf {
		v := float32(math.Sin(2 * math.Pi * freqHz * float64(i) / 48000))
		buf[i] = frame.Frame{L: v, R: v}
	}
	return buf
}

func TestPlaySimplePlaybackProducesOutputAndResolves(t *testing.T) {
	m, be := testManager(t)

	handle, err := m.Play(m.MainTrack(), StaticSoundData{
		Samples:    sineSamples(4800, 1000),
		SourceRate: 48000,
		Settings: sound.StaticSettings{
			StartVolume: frame.Unity,
			StartTime:   scheduler.Immediate(),
		},
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	out := be.Tick(1)
	m.Poll()

	if !handle.Done() {
		t.Fatalf("expected handle to resolve after one tick + Poll")
	}
	if handle.Err() != nil {
		t.Fatalf("unexpected error: %v", handle.Err())
	}

	var energy float64
	for _, f := range out {
		energy += float64(f.L) * float64(f.L)
	}
	if energy == 0 {
		t.Fatalf("expected nonzero output from the played sound")
	}
}

func TestAddSubTrackAndRouteCycleRejection(t *testing.T) {
	m, be := testManager(t)

	a, err := m.AddSubTrack(m.MainTrack(), mixer.TrackBuilder{})
	if err != nil {
		t.Fatalf("AddSubTrack a: %v", err)
	}
	b, err := m.AddSubTrack(m.MainTrack(), mixer.TrackBuilder{})
	if err != nil {
		t.Fatalf("AddSubTrack b: %v", err)
	}

	be.Tick(1)
	m.Poll()

	if !a.Done() || !b.Done() {
		t.Fatalf("expected both sub-tracks to resolve")
	}

	okRoute, err := a.AddRoute(b, frame.Unity)
	if err != nil {
		t.Fatalf("AddRoute a->b: %v", err)
	}
	cycleRoute, err := b.AddRoute(a, frame.Unity)
	if err != nil {
		t.Fatalf("AddRoute b->a: %v", err)
	}

	be.Tick(1)
	m.Poll()

	if !okRoute.Done() || okRoute.Err() != nil {
		t.Fatalf("expected a->b to succeed, got %v", okRoute.Err())
	}
	if !cycleRoute.Done() || cycleRoute.Err() == nil {
		t.Fatalf("expected b->a to be rejected as a cycle")
	}
}

func TestPauseSubtreeFreezesSoundState(t *testing.T) {
	m, be := testManager(t)

	handle, err := m.Play(m.MainTrack(), StaticSoundData{
		Samples:    sineSamples(48000, 440),
		SourceRate: 48000,
		Settings: sound.StaticSettings{
			StartVolume: frame.Unity,
			StartTime:   scheduler.Immediate(),
		},
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	be.Tick(1)
	m.Poll()
	if !handle.Done() {
		t.Fatalf("expected sound handle to resolve")
	}

	main := m.MainTrack()
	main.PauseSubtree(parameter.DefaultTween())
	be.Tick(3)
	m.Poll()

	if handle.State() != sound.StatePaused && handle.State() != sound.StatePausing {
		t.Fatalf("expected paused/pausing state after PauseSubtree, got %v", handle.State())
	}
}
