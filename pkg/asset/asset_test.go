package asset

import (
	"testing"

	"github.com/kira-audio/kira/pkg/frame"
)

func sampleBuf() []frame.Frame {
	return []frame.Frame{
		{L: 0.1, R: -0.1},
		{L: 0.5, R: 0.25},
		{L: -1, R: 1},
	}
}

func TestHashIsDeterministic(t *testing.T) {
	a, err := Hash(sampleBuf())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(sampleBuf())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical digests, got %q and %q", a, b)
	}
}

func TestHashDiffersOnContentChange(t *testing.T) {
	a, err := Hash(sampleBuf())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	buf := sampleBuf()
	buf[0].L += 0.001
	b, err := Hash(buf)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatalf("expected digests to differ after content change")
	}
}

func TestVerifyRejectsMismatch(t *testing.T) {
	if err := Verify(sampleBuf(), Digest("not-a-real-digest")); err == nil {
		t.Fatalf("expected Verify to reject a wrong digest")
	}
}

func TestVerifyAcceptsMatch(t *testing.T) {
	buf := sampleBuf()
	digest, err := Hash(buf)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := Verify(buf, digest); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
