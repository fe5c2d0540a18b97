package ring

import "sync/atomic"

// TripleBuffer publishes the most recent value of T from one writer
// goroutine to one reader goroutine without locks, without blocking,
// and without allocation on either side after construction. The
// renderer uses it to publish clock snapshots, modulator outputs and
// sound snapshots to control threads; parameter writes from control
// threads travel over the SPSC command ring instead.
//
// Exactly one goroutine may call Write and exactly one may call Read;
// concurrent writers (or concurrent readers) are not supported.
type TripleBuffer[T any] struct {
	buffers [3]T

	// state packs (index<<1 | dirty). It names the buffer slot not
	// currently owned by either side; ownership of that slot transfers
	// to whichever side next performs an atomic Swap against it.
	state atomic.Uint32

	writeIndex uint32 // owned by the writer goroutine only
	readIndex  uint32 // owned by the reader goroutine only
}

// NewTripleBuffer creates a triple buffer with all three slots seeded
// to initial.
func NewTripleBuffer[T any](initial T) *TripleBuffer[T] {
	tb := &TripleBuffer[T]{
		writeIndex: 1,
		readIndex:  2,
	}
	tb.buffers[0] = initial
	tb.buffers[1] = initial
	tb.buffers[2] = initial
	tb.state.Store(0 << 1)
	return tb
}

// Write publishes a new value. Writer-only.
func (tb *TripleBuffer[T]) Write(v T) {
	tb.buffers[tb.writeIndex] = v
	newState := (tb.writeIndex << 1) | 1
	old := tb.state.Swap(newState)
	tb.writeIndex = old >> 1
}

// Read returns the most recently published value. If no value has been
// published since the last Read, it returns the same value as last
// time. Reader-only.
func (tb *TripleBuffer[T]) Read() T {
	s := tb.state.Load()
	if s&1 != 0 {
		handBack := tb.readIndex << 1
		old := tb.state.Swap(handBack)
		tb.readIndex = old >> 1
	}
	return tb.buffers[tb.readIndex]
}
