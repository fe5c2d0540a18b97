package manager

import (
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/sound"
)

// SoundData is the value type used to configure a sound before it
// exists inside the renderer. intoSound is the split point spec.md §6
// calls `into_sound`: the value describing what to play becomes the
// realtime Sound the renderer will own, at the moment Play hands it
// across the ring.
type SoundData interface {
	intoSound(sampleRate float64) (sound.Sound, error)
}

// StaticSoundData configures a sound.Static over an already-decoded,
// shared sample buffer.
type StaticSoundData struct {
	Samples    []frame.Frame
	SourceRate float64
	Settings   sound.StaticSettings
}

func (d StaticSoundData) intoSound(float64) (sound.Sound, error) {
	return sound.NewStatic(d.Samples, d.SourceRate, d.Settings), nil
}

// StreamingSoundData configures a sound.Streaming whose frames will be
// fed in by an external decoder thread through the returned handle's
// underlying ring. RingCapacity sizes that ring.
type StreamingSoundData struct {
	RingCapacity int
	Settings     sound.StreamingSettings
}

func (d StreamingSoundData) intoSound(float64) (sound.Sound, error) {
	return sound.NewStreaming(d.RingCapacity, d.Settings)
}
