package renderer

import (
	"github.com/kira-audio/kira/pkg/arena"
	"github.com/kira-audio/kira/pkg/sound"
)

// SoundSnapshot is a sound's control-readable state, published once
// per block, mirroring clock.Snapshot/clock.Clock.publish's shape but
// batched across every live sound since sounds come and go far more
// often than clocks do.
type SoundSnapshot struct {
	Key      arena.Key
	State    sound.PlaybackState
	Position float64
	Finished bool
}

// positioner is implemented by sound types that track a meaningful
// playhead (Static); Streaming has no single scalar position worth
// publishing and is simply reported at 0.
type positioner interface {
	Position() float64
}

// publishSnapshots fills the next of three renderer-owned buffers and
// hands it to the triple buffer. Rotating through three backing arrays
// in lockstep with the triple buffer's own three slots guarantees this
// never overwrites an array a live reader might still be holding.
func (r *Renderer) publishSnapshots() {
	buf := r.snapshotBufs[r.snapshotIdx][:0]
	r.graph.EachSound(func(key arena.Key, s sound.Sound) {
		pos := 0.0
		if p, ok := s.(positioner); ok {
			pos = p.Position()
		}
		buf = append(buf, SoundSnapshot{
			Key:      key,
			State:    s.State(),
			Position: pos,
			Finished: s.Finished(),
		})
	})
	r.snapshotBufs[r.snapshotIdx] = buf
	r.snapshots.Write(buf)
	r.snapshotIdx = (r.snapshotIdx + 1) % len(r.snapshotBufs)
}

// Snapshots returns the triple buffer of per-sound state, safe to read
// from the control thread.
func (r *Renderer) Snapshots() []SoundSnapshot { return r.snapshots.Read() }
