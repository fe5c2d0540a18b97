package sound

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/kerr"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/ring"
	"github.com/kira-audio/kira/pkg/scheduler"
)

// StreamingSettings configures a Streaming sound. Reverse must be
// false; NewStreaming rejects it at construction.
type StreamingSettings struct {
	StartVolume    frame.Decibels
	StartPanning   frame.Panning
	StartTime      scheduler.StartTime
	Reverse        bool
	ResumeSeekBack bool
}

// Streaming is a sound whose frames are produced by an external
// decoder thread and delivered through a bounded ring. Process
// consumes from that ring; an underrun emits silence and leaves the
// sound Playing, while a decoder-signaled fatal error stops it
// immediately.
type Streaming struct {
	decoded *ring.SPSC[frame.Frame]
	fatal   atomic.Bool

	volume   *parameter.Parameter[frame.Decibels]
	pan      *parameter.Parameter[frame.Panning]
	muteGain *parameter.Parameter[frame.Decibels]

	settings        StreamingSettings
	startGate       *scheduler.Pending
	resumeFadeTween parameter.Tween

	state    PlaybackState
	finished bool
}

// NewStreaming creates a Streaming sound whose decode ring holds
// ringCapacity frames.
func NewStreaming(ringCapacity int, settings StreamingSettings) (*Streaming, error) {
	if settings.Reverse {
		return nil, kerr.New(kerr.InvalidConfiguration, "reverse playback is not supported for streaming sounds")
	}
	return &Streaming{
		decoded:   ring.New[frame.Frame](ringCapacity),
		volume:    parameter.New(settings.StartVolume),
		pan:       parameter.New(settings.StartPanning),
		muteGain:  parameter.New(frame.Unity),
		settings:  settings,
		state:     StateWaitingToResume,
		startGate: scheduler.NewPending(settings.StartTime),
	}, nil
}

// Volume exposes the sound's volume parameter for external tweens.
func (s *Streaming) Volume() *parameter.Parameter[frame.Decibels] { return s.volume }

// Pan exposes the sound's panning parameter for external tweens.
func (s *Streaming) Pan() *parameter.Parameter[frame.Panning] { return s.pan }

// Feed is called by the decoder thread to push one decoded frame into
// the ring. It returns false if the ring is full (decoder should back
// off and retry).
func (s *Streaming) Feed(f frame.Frame) bool {
	return s.decoded.TryPush(f) == nil
}

// SignalDecodeError is called by the decoder thread on a fatal,
// unrecoverable error. The sound stops on its next processed block.
func (s *Streaming) SignalDecodeError() {
	s.fatal.Store(true)
}

// State implements Sound.
func (s *Streaming) State() PlaybackState { return s.state }

// Finished implements Sound.
func (s *Streaming) Finished() bool { return s.finished }

// OnStartProcessing implements Sound; a real decoder thread would be
// signaled here to keep the ring topped up. Left as a no-op hook: the
// decoder owns its own refill cadence and writes to the ring
// independently.
func (s *Streaming) OnStartProcessing() {}

// Pause begins a fade to silence.
func (s *Streaming) Pause(tween parameter.Tween) {
	switch s.state {
	case StateWaitingToResume, StateResuming:
		s.state = StatePaused
	case StatePlaying, StatePausing:
		s.muteGain.Set(frame.NegativeInfinity, tween)
		s.state = StatePausing
	}
}

// Resume fades back in immediately.
func (s *Streaming) Resume(tween parameter.Tween) {
	s.ResumeAt(scheduler.Immediate(), tween)
}

// ResumeAt schedules a fade-in to start at start.
func (s *Streaming) ResumeAt(start scheduler.StartTime, tween parameter.Tween) {
	if s.state != StatePaused {
		return
	}
	s.resumeFadeTween = tween
	s.startGate = scheduler.NewPending(start)
	s.state = StateResuming
}

// Stop begins a fade to silence before transitioning to Stopped.
func (s *Streaming) Stop(tween parameter.Tween) {
	switch s.state {
	case StateStopped, StateStopping:
		return
	case StateWaitingToResume:
		s.state = StateStopped
		s.finished = true
	default:
		s.muteGain.Set(frame.NegativeInfinity, tween)
		s.state = StateStopping
	}
}

// Process implements Sound.
func (s *Streaming) Process(out []frame.Frame, info BlockInfo) {
	if s.fatal.Load() {
		s.state = StateStopped
		s.finished = true
		frame.Clear(out)
		return
	}

	switch s.state {
	case StateStopped:
		frame.Clear(out)
		return

	case StateWaitingToResume:
		switch s.startGate.Resolve(info.NowSample, info.SampleRate, info.Clocks) {
		case scheduler.Cancelled:
			s.state = StateStopped
			s.finished = true
			frame.Clear(out)
			return
		case scheduler.StartingNow, scheduler.AlreadyDue:
			s.state = StatePlaying
		default:
			frame.Clear(out)
			return
		}

	case StateResuming:
		switch s.startGate.Resolve(info.NowSample, info.SampleRate, info.Clocks) {
		case scheduler.Cancelled:
			s.state = StateStopped
			s.finished = true
			frame.Clear(out)
			return
		case scheduler.StartingNow, scheduler.AlreadyDue:
			s.muteGain.Set(frame.Unity, s.resumeFadeTween)
			s.state = StatePlaying
		default:
			frame.Clear(out)
			return
		}

	case StatePaused:
		frame.Clear(out)
		return
	}

	s.volume.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	s.pan.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	s.muteGain.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, nil)

	if s.state == StatePausing && !s.muteGain.Active() {
		s.state = StatePaused
	}
	if s.state == StateStopping && !s.muteGain.Active() {
		s.state = StateStopped
		s.finished = true
	}
	if s.state == StatePaused || s.state == StateStopped {
		frame.Clear(out)
		return
	}

	n := len(out)
	for i := 0; i < n; i++ {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		v, ok := s.decoded.TryPop()
		if !ok {
			out[i] = frame.Silence
			continue
		}
		volAmp := s.volume.InterpolatedValue(frac).Amplitude() * s.muteGain.InterpolatedValue(frac).Amplitude()
		left, right := s.pan.InterpolatedValue(frac).Gains()
		out[i] = frame.Frame{L: v.L * float32(left*volAmp), R: v.R * float32(right*volAmp)}
	}
}

// DecoderPacer throttles a decoder goroutine's Feed calls to roughly
// the sound's own consumption rate, so a decoder reading from a fast
// disk doesn't spin pushing frames the ring has no room for. One
// token covers one frame; the limiter is sized from the sound's
// source sample rate with a small burst allowance to absorb scheduling
// jitter without the decoder stalling on every call.
type DecoderPacer struct {
	limiter *rate.Limiter
}

// NewDecoderPacer builds a pacer for a decoder producing frames at
// sourceRate Hz, bursting up to burstFrames before it must wait.
func NewDecoderPacer(sourceRate float64, burstFrames int) *DecoderPacer {
	return &DecoderPacer{limiter: rate.NewLimiter(rate.Limit(sourceRate), burstFrames)}
}

// Wait blocks until the pacer permits pushing one more frame, or ctx
// is cancelled.
func (p *DecoderPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

var _ Sound = (*Streaming)(nil)
