package backend

import "github.com/kira-audio/kira/pkg/frame"

// Mock is the required no-op test backend: a fixed sample rate and a
// caller-driven Tick that invokes the renderer callback exactly once
// per call, synchronously on the calling goroutine.
type Mock struct {
	sampleRate    float64
	blockSize     int
	render        RenderFunc
	onRateChanged SampleRateChangedFunc
	buf           []frame.Frame
}

// NewMock constructs a Mock with no device negotiation: Setup always
// succeeds and simply echoes back what it was asked for.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Setup(settings Settings) (float64, int, error) {
	m.sampleRate = settings.SampleRate
	m.blockSize = settings.PreferredBlockSize
	if m.blockSize <= 0 {
		m.blockSize = 128
	}
	m.buf = make([]frame.Frame, m.blockSize)
	return m.sampleRate, m.blockSize, nil
}

func (m *Mock) Start(render RenderFunc, onRateChanged SampleRateChangedFunc) error {
	m.render = render
	m.onRateChanged = onRateChanged
	return nil
}

func (m *Mock) Stop() error {
	m.render = nil
	return nil
}

// Tick drives the renderer callback n times, one block each, and
// returns the concatenated output for inspection in tests.
func (m *Mock) Tick(n int) []frame.Frame {
	if m.render == nil {
		return nil
	}
	out := make([]frame.Frame, 0, n*m.blockSize)
	for i := 0; i < n; i++ {
		frame.Clear(m.buf)
		m.render(m.buf)
		out = append(out, m.buf...)
	}
	return out
}

// SetSampleRate simulates a device-originated sample rate change, for
// tests exercising the DeviceLost / rate renegotiation path.
func (m *Mock) SetSampleRate(newRate float64) {
	m.sampleRate = newRate
	if m.onRateChanged != nil {
		m.onRateChanged(newRate)
	}
}

// SampleRate reports the rate negotiated at Setup (or changed since).
func (m *Mock) SampleRate() float64 { return m.sampleRate }

// BlockSize reports the fixed block size Tick renders.
func (m *Mock) BlockSize() int { return m.blockSize }
