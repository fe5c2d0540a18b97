// Package asset provides control-side integrity checking for static
// sound data: a one-time digest computed before a sample buffer is
// handed across the ring to the renderer, and a load-time verify
// against a digest recorded alongside the asset on disk. None of this
// runs on the render thread; it is strictly a control-side guard
// against a corrupted or tampered asset silently playing back as
// noise.
package asset

import (
	"encoding/hex"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/kerr"
)

// Digest is a blake2b-256 hash of a sample buffer's raw bytes, encoded
// as a lowercase hex string for storage alongside an asset manifest.
type Digest string

// Hash computes samples' digest by hashing each frame's two float32
// components in IEEE-754 bit order, so identical audio content always
// produces the same Digest regardless of how it was decoded.
func Hash(samples []frame.Frame) (Digest, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", kerr.Wrap(kerr.InvalidConfiguration, "construct blake2b hasher", err)
	}
	buf := make([]byte, 8)
	for _, f := range samples {
		putFloat32(buf[0:4], f.L)
		putFloat32(buf[4:8], f.R)
		h.Write(buf)
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Verify recomputes samples' digest and compares it against want,
// returning a kerr.InvalidConfiguration error on mismatch.
func Verify(samples []frame.Frame, want Digest) error {
	got, err := Hash(samples)
	if err != nil {
		return err
	}
	if got != want {
		return kerr.New(kerr.InvalidConfiguration, "asset digest mismatch: expected "+string(want)+", got "+string(got))
	}
	return nil
}

func putFloat32(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}
