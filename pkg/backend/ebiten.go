package backend

import (
	"io"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/kira-audio/kira/pkg/frame"
)

// Ebiten wraps github.com/hajimehoshi/ebiten/v2/audio as a real,
// cross-platform output device, the same library the teacher drives
// its own sound effects and music through (pkg/audio.getAudioContext).
// Ebiten's audio.Context owns the actual device and its own mixing
// goroutine; kira supplies one continuous PCM stream as an io.Reader
// and lets ebiten pull from it at whatever cadence the platform mixer
// wants, rather than being handed an explicit per-block callback.
type Ebiten struct {
	ctx        *audio.Context
	player     *audio.Player
	stream     *rendererStream
	sampleRate float64
	blockSize  int
}

// NewEbiten constructs an unconfigured Ebiten backend; call Setup
// before Start.
func NewEbiten() *Ebiten {
	return &Ebiten{}
}

func (e *Ebiten) Setup(settings Settings) (float64, int, error) {
	e.sampleRate = settings.SampleRate
	if e.sampleRate <= 0 {
		e.sampleRate = 48000
	}
	e.blockSize = settings.PreferredBlockSize
	if e.blockSize <= 0 {
		e.blockSize = 512
	}
	e.ctx = audio.NewContext(int(e.sampleRate))
	return e.sampleRate, e.blockSize, nil
}

func (e *Ebiten) Start(render RenderFunc, onRateChanged SampleRateChangedFunc) error {
	e.stream = &rendererStream{
		render:    render,
		blockSize: e.blockSize,
		blockBuf:  make([]frame.Frame, e.blockSize),
	}
	// Ebiten's context sample rate is fixed at construction and the
	// library does not expose device-originated rate renegotiation,
	// so onRateChanged has nothing to observe on this backend; it is
	// accepted for interface symmetry with PortAudio and simply never
	// invoked.
	_ = onRateChanged

	player, err := e.ctx.NewPlayer(e.stream)
	if err != nil {
		return err
	}
	e.player = player
	e.player.Play()
	return nil
}

func (e *Ebiten) Stop() error {
	if e.player == nil {
		return nil
	}
	return e.player.Pause()
}

// rendererStream adapts RenderFunc to the io.Reader ebiten's audio
// player pulls 16-bit little-endian stereo PCM bytes from, the same
// wire format the teacher's procedural SFX/music generators write
// (pkg/audio.writeInt16, writeWAVHeader).
type rendererStream struct {
	render    RenderFunc
	blockSize int
	blockBuf  []frame.Frame
	leftover  []byte
}

func (s *rendererStream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.leftover) == 0 {
			s.render(s.blockBuf)
			s.leftover = encodePCM16(s.blockBuf, s.leftover[:0])
		}
		copied := copy(p[n:], s.leftover)
		n += copied
		s.leftover = s.leftover[copied:]
	}
	return n, nil
}

// encodePCM16 appends buf as interleaved little-endian 16-bit stereo
// samples to dst, reusing dst's backing array when it has capacity.
func encodePCM16(buf []frame.Frame, dst []byte) []byte {
	for _, f := range buf {
		l := encodeSample(f.L)
		r := encodeSample(f.R)
		dst = append(dst, l[0], l[1], r[0], r[1])
	}
	return dst
}

func encodeSample(v float32) [2]byte {
	clamped := v
	if clamped > 1 {
		clamped = 1
	}
	if clamped < -1 {
		clamped = -1
	}
	i := int16(clamped * 32767)
	return [2]byte{byte(i), byte(i >> 8)}
}

var _ io.Reader = (*rendererStream)(nil)
