package backend

import (
	"testing"

	"github.com/kira-audio/kira/pkg/frame"
)

func TestMockTickDrivesRenderExactlyNTimes(t *testing.T) {
	m := NewMock()
	rate, blockSize, err := m.Setup(Settings{SampleRate: 48000, PreferredBlockSize: 16})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if rate != 48000 || blockSize != 16 {
		t.Fatalf("unexpected negotiated settings: %v %v", rate, blockSize)
	}

	calls := 0
	if err := m.Start(func(buf []frame.Frame) {
		calls++
		for i := range buf {
			buf[i] = frame.Frame{L: 1, R: 1}
		}
	}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out := m.Tick(3)
	if calls != 3 {
		t.Fatalf("expected render to be called 3 times, got %d", calls)
	}
	if len(out) != 3*blockSize {
		t.Fatalf("expected %d frames, got %d", 3*blockSize, len(out))
	}
	for _, f := range out {
		if f.L != 1 || f.R != 1 {
			t.Fatalf("expected every frame filled by the callback, got %v", f)
		}
	}
}

func TestMockSetSampleRateNotifiesCallback(t *testing.T) {
	m := NewMock()
	m.Setup(Settings{SampleRate: 48000, PreferredBlockSize: 8})

	var observed float64
	m.Start(func(buf []frame.Frame) {}, func(newRate float64) { observed = newRate })

	m.SetSampleRate(44100)
	if observed != 44100 {
		t.Fatalf("expected onRateChanged to fire with 44100, got %v", observed)
	}
	if m.SampleRate() != 44100 {
		t.Fatalf("expected SampleRate() to reflect the change, got %v", m.SampleRate())
	}
}

func TestMockTickWithNoStartReturnsNil(t *testing.T) {
	m := NewMock()
	m.Setup(Settings{SampleRate: 48000, PreferredBlockSize: 8})
	if out := m.Tick(2); out != nil {
		t.Fatalf("expected nil output before Start, got %v", out)
	}
}
