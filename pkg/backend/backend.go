// Package backend implements component 6's device adapter boundary:
// the thing that owns a real (or fake) audio output device and drives
// the renderer's Render once per block from whatever thread the device
// callback arrives on.
package backend

import "github.com/kira-audio/kira/pkg/frame"

// RenderFunc is the callback a Backend invokes once per device block.
// Implementations must fill every frame in buf; the renderer never
// partially fills a buffer.
type RenderFunc func(buf []frame.Frame)

// SampleRateChangedFunc is invoked by a Backend when the underlying
// device's sample rate changes out from under it (e.g. the user
// switches the default output device). The engine forwards the new
// rate to every effect and sound that needs to recompute filter
// coefficients or resampling ratios.
type SampleRateChangedFunc func(newRate float64)

// Settings configures device setup. Backends that don't need a given
// field (Mock ignores DeviceName) simply leave it unused.
type Settings struct {
	SampleRate         float64
	PreferredBlockSize int
	DeviceName         string
}

// Backend is the device adapter trait from spec.md §6. A Backend is
// set up once, started with a render callback, and stopped once; it is
// not safe to Start a Backend twice without an intervening Stop.
type Backend interface {
	// Setup negotiates the device's actual sample rate and reports a
	// hint for the block size the device will most likely request.
	// The renderer and every tween/clock computation downstream uses
	// the returned sample rate, not Settings.SampleRate, since a real
	// device is free to reject the requested rate.
	Setup(settings Settings) (sampleRate float64, blockSizeHint int, err error)

	// Start installs render as the callback the device invokes once
	// per block, and onRateChanged as the hook the backend calls if
	// the device's sample rate changes later. Start returns once the
	// backend is actively producing audio (or immediately, for Mock).
	Start(render RenderFunc, onRateChanged SampleRateChangedFunc) error

	// Stop halts playback and releases the device. Safe to call on an
	// already-stopped Backend.
	Stop() error
}
