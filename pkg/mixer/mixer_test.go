package mixer

import (
	"testing"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/sound"
)

const blockSize = 64

// constantSound emits a fixed frame every block and never finishes;
// a minimal stand-in for sound.Static/Streaming in graph-level tests.
type constantSound struct {
	value    frame.Frame
	finished bool
	paused   bool
}

func (s *constantSound) Process(out []frame.Frame, info sound.BlockInfo) {
	v := s.value
	if s.paused {
		v = frame.Silence
	}
	for i := range out {
		out[i] = v
	}
}
func (s *constantSound) State() sound.PlaybackState { return sound.StatePlaying }
func (s *constantSound) OnStartProcessing()          {}
func (s *constantSound) Finished() bool              { return s.finished }
func (s *constantSound) Pause(parameter.Tween)       { s.paused = true }
func (s *constantSound) Resume(parameter.Tween)      { s.paused = false }
func (s *constantSound) Stop(parameter.Tween)        { s.finished = true }

func testInfo() BlockInfo {
	return BlockInfo{SampleRate: 48000, BlockSeconds: float64(blockSize) / 48000}
}

func TestCycleRejection(t *testing.T) {
	g := NewGraph(8, 8, blockSize, TrackBuilder{})
	x, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{})
	y, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{})

	if err := g.AddRoute(x, y, 0); err != nil {
		t.Fatalf("expected X->Y route to succeed: %v", err)
	}
	if err := g.AddRoute(y, x, 0); err == nil {
		t.Fatalf("expected Y->X to be rejected as a cycle")
	}
	if _, ok := g.Track(y).routes[x]; ok {
		t.Fatalf("rejected route must not have been applied")
	}
}

func TestSilentSumMatchesCombinedGain(t *testing.T) {
	g := NewGraph(8, 8, blockSize, TrackBuilder{})
	src, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{})
	destA, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{})
	destB, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{})

	s := &constantSound{value: frame.Frame{L: 1, R: 1}}
	g.AddSound(src, s)

	w1 := frame.FromAmplitude(0.5)
	w2 := frame.FromAmplitude(0.25)
	if err := g.AddRoute(src, destA, w1); err != nil {
		t.Fatalf("route src->destA: %v", err)
	}
	if err := g.AddRoute(src, destB, w2); err != nil {
		t.Fatalf("route src->destB: %v", err)
	}

	out := make([]frame.Frame, blockSize)
	g.Process(out, testInfo())

	gotA := g.Track(destA).Output()[0].L
	gotB := g.Track(destB).Output()[0].L
	wantA := float32(0.5)
	wantB := float32(0.25)
	if diff := gotA - wantA; diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("destA gain mismatch: got %v want %v", gotA, wantA)
	}
	if diff := gotB - wantB; diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("destB gain mismatch: got %v want %v", gotB, wantB)
	}
}

func TestPausedSubtreeFreezesSoundsOfTrackAndDescendants(t *testing.T) {
	g := NewGraph(8, 8, blockSize, TrackBuilder{})
	a, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{})
	b, _ := g.AddSubTrack(a, TrackBuilder{})

	soundA := &constantSound{value: frame.Frame{L: 1, R: 1}}
	soundB := &constantSound{value: frame.Frame{L: 1, R: 1}}
	g.AddSound(a, soundA)
	g.AddSound(b, soundB)

	if err := g.SetPausedSubtree(a, true, parameter.DefaultTween()); err != nil {
		t.Fatalf("SetPausedSubtree: %v", err)
	}

	out := make([]frame.Frame, blockSize)
	g.Process(out, testInfo())

	if !soundA.paused || !soundB.paused {
		t.Fatalf("expected both sounds in the subtree to be paused")
	}
	if g.Track(a).Output()[0].L != 0 {
		t.Fatalf("expected track A's own contribution to be silent while paused")
	}
}

func TestReapFinishedRemovesCompletedSounds(t *testing.T) {
	g := NewGraph(8, 8, blockSize, TrackBuilder{})
	s := &constantSound{finished: true}
	key, _ := g.AddSound(g.MainKey(), s)

	reaped := g.ReapFinished()
	if len(reaped) != 1 {
		t.Fatalf("expected exactly one reaped sound, got %d", len(reaped))
	}
	if _, ok := g.Track(g.MainKey()).sounds[key]; ok {
		t.Fatalf("reaped sound must be detached from its track")
	}
}

func TestSpatialAttenuationReducesGainWithDistance(t *testing.T) {
	g := NewGraph(8, 8, blockSize, TrackBuilder{})
	listener := g.MainKey()
	g.Track(listener).SetForward(Position{0, 0, -1})

	near, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{
		Spatial: &SpatialProps{
			ListenerRef:            listener,
			SpatializationStrength: 1,
			Attenuation:            DistanceCurve{Kind: CurveInverse, ReferenceDistance: 1},
		},
		Position: Position{0, 0, -1},
	})
	far, _ := g.AddSubTrack(g.MainKey(), TrackBuilder{
		Spatial: &SpatialProps{
			ListenerRef:            listener,
			SpatializationStrength: 1,
			Attenuation:            DistanceCurve{Kind: CurveInverse, ReferenceDistance: 1},
		},
		Position: Position{0, 0, -10},
	})
	g.AddSound(near, &constantSound{value: frame.Frame{L: 1, R: 1}})
	g.AddSound(far, &constantSound{value: frame.Frame{L: 1, R: 1}})

	out := make([]frame.Frame, blockSize)
	g.Process(out, testInfo())

	nearEnergy := g.Track(near).Output()[0].Mono()
	farEnergy := g.Track(far).Output()[0].Mono()
	if farEnergy >= nearEnergy {
		t.Fatalf("expected the farther track to be quieter: near=%v far=%v", nearEnergy, farEnergy)
	}
}
