// Command kira-demo is a minimal host application around the engine:
// it loads settings, stands up an AudioManager against a real or mock
// device, optionally applies a declarative track graph, plays a
// generated tone so there's something audible to verify against, and
// optionally serves a telemetry feed for a dashboard to watch.
package main

import (
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/kira-audio/kira/pkg/backend"
	"github.com/kira-audio/kira/pkg/config"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/graphspec"
	"github.com/kira-audio/kira/pkg/manager"
	"github.com/kira-audio/kira/pkg/parameter"
	"github.com/kira-audio/kira/pkg/scheduler"
	"github.com/kira-audio/kira/pkg/sound"
	"github.com/kira-audio/kira/pkg/telemetry"
)

var (
	configPath  = pflag.StringP("config", "c", "", "Path to a kira.toml config file's directory (defaults to '.')")
	graphPath   = pflag.StringP("graph", "g", "", "Path to a graphspec YAML document describing the initial track layout")
	deviceFlag  = pflag.StringP("device", "d", "mock", "Output device: mock, ebiten, or portaudio")
	toneHz      = pflag.Float64P("tone-hz", "f", 440.0, "Frequency of the demo tone")
	toneSeconds = pflag.Float64P("tone-seconds", "s", 2.0, "Duration of the demo tone")
	telemetryOn = pflag.Bool("telemetry", false, "Serve a websocket telemetry feed")
	telemetryAt = pflag.String("telemetry-addr", ":7890", "Address the telemetry feed listens on")
	logLevel    = pflag.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	help        = pflag.BoolP("help", "h", false, "Display help text")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "kira-demo: play a generated tone through the kira audio engine")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid log level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if *configPath != "" {
		os.Chdir(*configPath)
	}
	if err := config.Load(); err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	settings := config.Get()

	be, err := newBackend(*deviceFlag)
	if err != nil {
		logrus.WithError(err).Fatal("unknown device")
	}

	mgr, err := manager.New(manager.Settings{
		Capacities: manager.Capacities{
			Sounds:           settings.Capacities.Sounds,
			SubTracks:        settings.Capacities.SubTracks,
			Clocks:           settings.Capacities.Clocks,
			Modulators:       settings.Capacities.Modulators,
			SpatialListeners: settings.Capacities.SpatialListeners,
		},
		InternalBufferSize:  settings.InternalBufferSize,
		SampleRate:          settings.SampleRate,
		MaxCommandsPerBlock: settings.MaxCommandsPerBlock,
		BackendSettings: backend.Settings{
			SampleRate:         settings.SampleRate,
			PreferredBlockSize: settings.PreferredBlockSize,
			DeviceName:         settings.DeviceName,
		},
	}, be)
	if err != nil {
		logrus.WithError(err).Fatal("failed to start audio manager")
	}
	defer mgr.Shutdown()

	mgr.MainTrack().SetVolume(frame.Decibels(settings.MasterVolumeDb), parameter.Tween{StartTime: scheduler.Immediate()})

	tick := func() {
		if mock, ok := be.(*backend.Mock); ok {
			mock.Tick(1)
		}
	}

	if *graphPath != "" {
		doc, err := os.ReadFile(*graphPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to read graphspec document")
		}
		spec, err := graphspec.Parse(doc)
		if err != nil {
			logrus.WithError(err).Fatal("failed to parse graphspec document")
		}
		if err := graphspec.Apply(mgr, spec, tick); err != nil {
			logrus.WithError(err).Fatal("failed to apply graphspec document")
		}
		logrus.WithField("tracks", len(spec.Tracks)).Info("applied track graph")
	}

	if *telemetryOn {
		hub := telemetry.NewHub()
		reporter := telemetry.NewReporter(mgr, hub, 250*time.Millisecond)
		reporter.Start()
		defer reporter.Stop()

		mux := http.NewServeMux()
		mux.Handle("/telemetry", hub)
		srv := &http.Server{Addr: *telemetryAt, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Error("telemetry server stopped")
			}
		}()
		defer srv.Close()
		logrus.WithField("addr", *telemetryAt).Info("telemetry feed listening at /telemetry")
	}

	samples := generateTone(*toneHz, *toneSeconds, mgr.SampleRate())
	handle, err := mgr.Play(mgr.MainTrack(), manager.StaticSoundData{
		Samples:    samples,
		SourceRate: mgr.SampleRate(),
		Settings: sound.StaticSettings{
			StartVolume: frame.Unity,
			StartTime:   scheduler.Immediate(),
		},
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to play demo tone")
	}

	logrus.WithFields(logrus.Fields{
		"hz":          *toneHz,
		"seconds":     *toneSeconds,
		"sample_rate": mgr.SampleRate(),
	}).Info("playing demo tone")

	tick()
	mgr.Poll()
	if handle.Err() != nil {
		logrus.WithError(handle.Err()).Fatal("demo tone was rejected")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-time.After(time.Duration(*toneSeconds*float64(time.Second)) + 2*time.Second):
	}

	logrus.Info("shutting down")
}

func newBackend(name string) (backend.Backend, error) {
	switch name {
	case "mock":
		return backend.NewMock(), nil
	case "ebiten":
		return backend.NewEbiten(), nil
	case "portaudio":
		return backend.NewPortAudio(), nil
	default:
		return nil, fmt.Errorf("unknown device %q (want mock, ebiten, or portaudio)", name)
	}
}

// generateTone synthesizes a mono sine wave duplicated to both stereo
// channels, a self-contained substitute for decoding a real asset so
// the demo has no data-file dependency.
func generateTone(hz, seconds, sampleRate float64) []frame.Frame {
	n := int(seconds * sampleRate)
	out := make([]frame.Frame, n)
	for i := range out {
		t := float64(i) / sampleRate
		v := float32(0.2 * math.Sin(2*math.Pi*hz*t))
		out[i] = frame.Frame{L: v, R: v}
	}
	return out
}
