package telemetry

import (
	"testing"
	"time"

	"github.com/kira-audio/kira/pkg/backend"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/manager"
	"github.com/kira-audio/kira/pkg/scheduler"
	"github.com/kira-audio/kira/pkg/sound"
)

func testManager(t *testing.T) (*manager.AudioManager, *backend.Mock) {
	t.Helper()
	be := backend.NewMock()
	m, err := manager.New(manager.Settings{
		Capacities: manager.Capacities{
			Sounds: 8, SubTracks: 8, Clocks: 2, Modulators: 2, SpatialListeners: 2,
		},
		InternalBufferSize: 32,
		SampleRate:         48000,
		BackendSettings:    backend.Settings{SampleRate: 48000, PreferredBlockSize: 64},
	}, be)
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	return m, be
}

func TestHubBroadcastWithNoClientsIsANoOp(t *testing.T) {
	h := NewHub()
	h.Broadcast(Frame{Timestamp: time.Now()})
	if h.ClientCount() != 0 {
		t.Fatalf("expected zero clients")
	}
}

func TestReporterSampleIncludesMainTrack(t *testing.T) {
	m, _ := testManager(t)
	r := NewReporter(m, NewHub(), time.Second)

	fr := r.sample()
	if fr.SampleRate != 48000 {
		t.Fatalf("expected sample rate 48000, got %v", fr.SampleRate)
	}
	if len(fr.Tracks) == 0 {
		t.Fatalf("expected at least the MAIN track in topology")
	}
}

func TestReporterSampleReflectsPlayedSound(t *testing.T) {
	m, be := testManager(t)

	_, err := m.Play(m.MainTrack(), manager.StaticSoundData{
		Samples:    make([]frame.Frame, 4800),
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

	r := NewReporter(m, NewHub(), time.Second)
	fr := r.sample()
	if len(fr.Sounds) == 0 {
		t.Fatalf("expected the played sound to appear in the snapshot")
	}
}
