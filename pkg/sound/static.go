package sound

import (
	"math"

	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/scheduler"
)

// StaticSettings configures a Static sound. PlaybackRegion defaults to
// the whole buffer when left zero-valued.
type StaticSettings struct {
	StartVolume    frame.Decibels
	StartRate      frame.PlaybackRate
	StartPanning   frame.Panning
	StartTime      scheduler.StartTime
	StartPosition  float64
	LoopRegion     *Region
	PlaybackRegion Region
	Reverse        bool

	// ResumeSeekBack selects resume-after-pause seek behavior: when
	// true, Resume rewinds the playhead to where it stood the instant
	// Pause was called, undoing any advance made during the pause
	// fade-out; when false (default) playback resumes from the exact
	// frame the fade-out froze it at.
	ResumeSeekBack bool
}

// Static is a sound backed by a shared, immutable sample buffer.
// Multiple Static instances may share the same backing slice; Go's
// garbage collector keeps it alive for as long as any of them
// reference it, giving the same O(1), allocation-free sharing as a
// reference-counted immutable buffer.
type Static struct {
	samples    []frame.Frame
	sourceRate float64
	settings   StaticSettings

	volume   *parameter.Parameter[frame.Decibels]
	rate     *parameter.Parameter[frame.PlaybackRate]
	pan      *parameter.Parameter[frame.Panning]
	muteGain *parameter.Parameter[frame.Decibels]

	playhead      float64
	prePauseFrame float64
	frozenFrame   float64
	enteredLoop   bool

	startGate       *scheduler.Pending
	resumeFadeTween parameter.Tween

	state    PlaybackState
	finished bool
}

// NewStatic creates a Static sound over samples, sourced at
// sourceRate. samples is shared, not copied.
func NewStatic(samples []frame.Frame, sourceRate float64, settings StaticSettings) *Static {
	if settings.PlaybackRegion == (Region{}) {
		settings.PlaybackRegion = Region{Start: 0, End: float64(len(samples))}
	}
	startRate := settings.StartRate
	if startRate == 0 {
		startRate = frame.NativeRate
	}
	s := &Static{
		samples:    samples,
		sourceRate: sourceRate,
		settings:   settings,
		volume:     parameter.New(settings.StartVolume),
		rate:       parameter.New(startRate),
		pan:        parameter.New(settings.StartPanning),
		muteGain:   parameter.New(frame.Unity),
		playhead:   settings.StartPosition,
		state:      StateWaitingToResume,
		startGate:  scheduler.NewPending(settings.StartTime),
	}
	// A start position already past the loop (in the direction of
	// playback) must first reach the playback region's boundary before
	// entering the loop; a start position already inside or before it
	// loops normally from the first crossing.
	if loop := settings.LoopRegion; loop != nil {
		if settings.Reverse {
			s.enteredLoop = settings.StartPosition >= loop.Start
		} else {
			s.enteredLoop = settings.StartPosition <= loop.End
		}
	}
	return s
}

// Volume exposes the sound's volume parameter for external tweens.
func (s *Static) Volume() *parameter.Parameter[frame.Decibels] { return s.volume }

// Rate exposes the sound's playback-rate parameter for external tweens.
func (s *Static) Rate() *parameter.Parameter[frame.PlaybackRate] { return s.rate }

// Pan exposes the sound's panning parameter for external tweens.
func (s *Static) Pan() *parameter.Parameter[frame.Panning] { return s.pan }

// State implements Sound.
func (s *Static) State() PlaybackState { return s.state }

// Finished implements Sound.
func (s *Static) Finished() bool { return s.finished }

// OnStartProcessing implements Sound; Static has no decode buffer to
// refill.
func (s *Static) OnStartProcessing() {}

// Position returns the current playhead, in source sample-frames.
func (s *Static) Position() float64 { return s.playhead }

// Pause begins a fade to silence; the playhead freezes once the fade
// completes. Pausing before playback has started skips the fade.
func (s *Static) Pause(tween parameter.Tween) {
	switch s.state {
	case StateWaitingToResume, StateResuming:
		s.frozenFrame = s.playhead
		s.prePauseFrame = s.playhead
		s.state = StatePaused
	case StatePlaying, StatePausing:
		s.prePauseFrame = s.playhead
		s.muteGain.Set(frame.NegativeInfinity, tween)
		s.state = StatePausing
	}
}

// Resume starts fading back in immediately.
func (s *Static) Resume(tween parameter.Tween) {
	s.ResumeAt(scheduler.Immediate(), tween)
}

// ResumeAt schedules a fade-in to start at start. Only valid from
// Paused; a no-op otherwise.
func (s *Static) ResumeAt(start scheduler.StartTime, tween parameter.Tween) {
	if s.state != StatePaused {
		return
	}
	if s.settings.ResumeSeekBack {
		s.playhead = s.prePauseFrame
	} else {
		s.playhead = s.frozenFrame
	}
	s.resumeFadeTween = tween
	s.startGate = scheduler.NewPending(start)
	s.state = StateResuming
}

// Stop begins a fade to silence before transitioning to Stopped. A
// sound still WaitingToResume stops immediately, per spec. Calling
// Stop more than once is idempotent.
func (s *Static) Stop(tween parameter.Tween) {
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
func (s *Static) Process(out []frame.Frame, info BlockInfo) {
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
	s.rate.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	s.pan.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, info.Sources)
	s.muteGain.Advance(info.BlockSeconds, info.NowSample, info.SampleRate, info.Clocks, nil)

	if s.state == StatePausing && !s.muteGain.Active() {
		s.frozenFrame = s.playhead
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

		samp := s.sampleAt(s.playhead)
		volAmp := s.volume.InterpolatedValue(frac).Amplitude() * s.muteGain.InterpolatedValue(frac).Amplitude()
		left, right := s.pan.InterpolatedValue(frac).Gains()
		out[i] = frame.Frame{
			L: samp.L * float32(left*volAmp),
			R: samp.R * float32(right*volAmp),
		}

		playbackRate := float64(s.rate.InterpolatedValue(frac)) * s.sourceRate / info.SampleRate
		if s.settings.Reverse {
			playbackRate = -playbackRate
		}
		if !s.stepPlayhead(playbackRate) {
			frame.Clear(out[i+1:])
			s.state = StateStopped
			s.finished = true
			break
		}
	}
}

// sampleAt linearly interpolates between the two nearest source
// frames at a fractional index.
func (s *Static) sampleAt(idx float64) frame.Frame {
	if idx < 0 {
		idx = 0
	}
	i0 := int(math.Floor(idx))
	if i0 >= len(s.samples) {
		return frame.Silence
	}
	frac := idx - float64(i0)
	a := s.samples[i0]
	if frac == 0 || i0+1 >= len(s.samples) {
		return a
	}
	b := s.samples[i0+1]
	return frame.Frame{
		L: a.L + float32(frac)*(b.L-a.L),
		R: a.R + float32(frac)*(b.R-a.R),
	}
}

// stepPlayhead advances the playhead by rate (signed; negative when
// reversed) and applies loop/region-boundary policy. It returns false
// when the sound has reached a terminal, non-looping boundary.
func (s *Static) stepPlayhead(rate float64) bool {
	s.playhead += rate
	if rate < 0 {
		return s.advanceReverse()
	}
	return s.advanceForward()
}

func (s *Static) advanceForward() bool {
	loop := s.settings.LoopRegion
	if s.enteredLoop && loop != nil {
		if s.playhead >= loop.End {
			over := s.playhead - loop.End
			s.playhead = loop.Start + fmod(over, loop.Len())
		}
		return true
	}
	region := s.settings.PlaybackRegion
	if s.playhead >= region.End {
		if loop != nil {
			over := s.playhead - region.End
			s.playhead = loop.Start + fmod(over, loop.Len())
			s.enteredLoop = true
			return true
		}
		return false
	}
	return true
}

// advanceReverse implements the reverse-loop-wrap policy: crossing the
// loop region's start wraps to the loop region's end, rather than
// stopping. A non-looping reverse sound still stops at the playback
// region's start.
func (s *Static) advanceReverse() bool {
	loop := s.settings.LoopRegion
	if s.enteredLoop && loop != nil {
		if s.playhead < loop.Start {
			under := loop.Start - s.playhead
			s.playhead = loop.End - fmod(under, loop.Len())
		}
		return true
	}
	region := s.settings.PlaybackRegion
	if s.playhead < region.Start {
		if loop != nil {
			under := region.Start - s.playhead
			s.playhead = loop.End - fmod(under, loop.Len())
			s.enteredLoop = true
			return true
		}
		return false
	}
	return true
}

func fmod(a, m float64) float64 {
	if m <= 0 {
		return 0
	}
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

var _ Sound = (*Static)(nil)
