// Package graphspec loads a declarative description of the initial
// track graph (tracks, routes, effect chains) and applies it against a
// freshly constructed AudioManager, so a game needn't hand-author a
// dozen AddSubTrack/AddRoute calls for a static bus layout.
package graphspec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kira-audio/kira/pkg/effect"
	"github.com/kira-audio/kira/pkg/frame"
	"github.com/kira-audio/kira/pkg/kerr"
	"github.com/kira-audio/kira/pkg/manager"
	"github.com/kira-audio/kira/pkg/mixer"
)

// Spec is the root of a graph document: a flat list of tracks, each
// naming its own parent so the graph can be built in one pass over
// tracks already seen.
type Spec struct {
	Tracks []TrackSpec `yaml:"tracks"`
}

// TrackSpec declares one track. Parent is another track's Name, or
// empty/"MAIN" to attach directly under the implicit root. Routes name
// tracks this track's output additionally feeds, beyond its parent.
type TrackSpec struct {
	Name    string       `yaml:"name"`
	Parent  string       `yaml:"parent"`
	VolumeDb float64     `yaml:"volume_db"`
	Spatial *SpatialSpec `yaml:"spatial"`
	Effects []EffectSpec `yaml:"effects"`
	Routes  []RouteSpec  `yaml:"routes"`
}

// SpatialSpec mirrors mixer.SpatialProps, naming the listener track by
// string rather than by arena.Key since the key doesn't exist yet when
// the document is authored.
type SpatialSpec struct {
	ListenerRef            string  `yaml:"listener_ref"`
	SpatializationStrength float64 `yaml:"spatialization_strength"`
	ReferenceDistance      float64 `yaml:"reference_distance"`
	MaxDistance            float64 `yaml:"max_distance"`
	Rolloff                float64 `yaml:"rolloff"`
	Curve                  string  `yaml:"curve"` // "inverse" | "linear" | "exponential"
}

// RouteSpec declares an additional weighted route to another track,
// named by Name, on top of the implicit parent route.
type RouteSpec struct {
	To       string  `yaml:"to"`
	WeightDb float64 `yaml:"weight_db"`
}

// EffectSpec declares one effect chain entry. Only the fields the
// named Kind uses are read; the rest are ignored.
type EffectSpec struct {
	Kind string `yaml:"kind"` // "volume" | "eq" | "filter" | "delay" | "reverb" | "compressor" | "distortion" | "panning"

	GainDb float64 `yaml:"gain_db"`

	EQKind    string  `yaml:"eq_kind"` // "bell" | "low_shelf" | "high_shelf"
	Frequency float64 `yaml:"frequency"`
	Q         float64 `yaml:"q"`

	FilterMode string  `yaml:"filter_mode"` // "low" | "high" | "band" | "notch"
	CutoffHz   float64 `yaml:"cutoff_hz"`
	Resonance  float64 `yaml:"resonance"`
	Mix        float64 `yaml:"mix"`

	DelaySeconds float64 `yaml:"delay_seconds"`
	Feedback     float64 `yaml:"feedback"`

	Damping     float64 `yaml:"damping"`
	StereoWidth float64 `yaml:"stereo_width"`

	ThresholdDb    float64 `yaml:"threshold_db"`
	Ratio          float64 `yaml:"ratio"`
	AttackSeconds  float64 `yaml:"attack_seconds"`
	ReleaseSeconds float64 `yaml:"release_seconds"`
	MakeupDb       float64 `yaml:"makeup_db"`

	DistortionKind string  `yaml:"distortion_kind"` // "hard_clip" | "soft_clip"
	DriveDb        float64 `yaml:"drive_db"`

	Panning float64 `yaml:"panning"`
}

// Parse decodes a YAML document into a Spec.
func Parse(doc []byte) (Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(doc, &s); err != nil {
		return Spec{}, kerr.Wrap(kerr.InvalidConfiguration, "parse graphspec", err)
	}
	return s, nil
}

// Apply builds every track and route named in s against mgr, in
// document order, and synchronously drains AudioManager.Poll after
// each track so later entries can reference earlier ones by name.
// tick must drive the backend forward (e.g. backend.Mock.Tick(1), or
// simply waiting one real block for a live device) so the renderer has
// a chance to acknowledge each creation before Apply reads it back.
func Apply(mgr *manager.AudioManager, s Spec, tick func()) error {
	byName := make(map[string]*manager.TrackHandle, len(s.Tracks))
	byName["MAIN"] = mgr.MainTrack()
	byName[""] = byName["MAIN"]

	for _, ts := range s.Tracks {
		parent, ok := byName[ts.Parent]
		if !ok {
			return kerr.New(kerr.InvalidConfiguration, fmt.Sprintf("track %q: unknown parent %q", ts.Name, ts.Parent))
		}

		builder := mixer.TrackBuilder{Volume: frame.Decibels(ts.VolumeDb)}
		if ts.Spatial != nil {
			listener, ok := byName[ts.Spatial.ListenerRef]
			if !ok {
				return kerr.New(kerr.InvalidConfiguration, fmt.Sprintf("track %q: unknown listener_ref %q", ts.Name, ts.Spatial.ListenerRef))
			}
			listenerKey, done := listener.Key()
			if !done {
				return kerr.New(kerr.InvalidConfiguration, fmt.Sprintf("track %q: listener_ref %q not yet resolved", ts.Name, ts.Spatial.ListenerRef))
			}
			builder.Spatial = &mixer.SpatialProps{
				ListenerRef:            listenerKey,
				SpatializationStrength: ts.Spatial.SpatializationStrength,
				Attenuation: mixer.DistanceCurve{
					Kind:              parseCurveKind(ts.Spatial.Curve),
					ReferenceDistance: ts.Spatial.ReferenceDistance,
					MaxDistance:       ts.Spatial.MaxDistance,
					Rolloff:           ts.Spatial.Rolloff,
				},
			}
		}

		handle, err := mgr.AddSubTrack(parent, builder)
		if err != nil {
			return kerr.Wrap(kerr.InvalidConfiguration, fmt.Sprintf("track %q: AddSubTrack", ts.Name), err)
		}
		tick()
		mgr.Poll()
		if !handle.Done() {
			return kerr.New(kerr.InvalidConfiguration, fmt.Sprintf("track %q: did not resolve after tick", ts.Name))
		}
		if handle.Err() != nil {
			return kerr.Wrap(kerr.InvalidConfiguration, fmt.Sprintf("track %q", ts.Name), handle.Err())
		}
		byName[ts.Name] = handle

		for _, es := range ts.Effects {
			e, err := buildEffect(mgr.SampleRate(), es)
			if err != nil {
				return kerr.Wrap(kerr.InvalidConfiguration, fmt.Sprintf("track %q: effect", ts.Name), err)
			}
			handle.AddEffect(e)
		}
	}

	for _, ts := range s.Tracks {
		from := byName[ts.Name]
		for _, rs := range ts.Routes {
			to, ok := byName[rs.To]
			if !ok {
				return kerr.New(kerr.InvalidConfiguration, fmt.Sprintf("track %q: route to unknown %q", ts.Name, rs.To))
			}
			pending, err := from.AddRoute(to, frame.Decibels(rs.WeightDb))
			if err != nil {
				return kerr.Wrap(kerr.InvalidConfiguration, fmt.Sprintf("track %q: AddRoute to %q", ts.Name, rs.To), err)
			}
			tick()
			mgr.Poll()
			if pending.Err() != nil {
				return kerr.Wrap(kerr.InvalidConfiguration, fmt.Sprintf("track %q: route to %q rejected", ts.Name, rs.To), pending.Err())
			}
		}
	}

	return nil
}

func parseCurveKind(s string) mixer.CurveKind {
	switch s {
	case "linear":
		return mixer.CurveLinear
	case "exponential":
		return mixer.CurveExponential
	default:
		return mixer.CurveInverse
	}
}

func buildEffect(sampleRate float64, es EffectSpec) (effect.Effect, error) {
	switch es.Kind {
	case "volume":
		return effect.NewVolumeControl(frame.Decibels(es.GainDb)), nil
	case "eq":
		return effect.NewEQ(sampleRate, parseEQKind(es.EQKind), es.Frequency, es.GainDb, es.Q), nil
	case "filter":
		return effect.NewFilter(sampleRate, parseFilterMode(es.FilterMode), es.CutoffHz, es.Resonance, es.Mix), nil
	case "delay":
		return effect.NewDelay(sampleRate, es.DelaySeconds, es.Feedback, es.Mix), nil
	case "reverb":
		return effect.NewReverb(sampleRate, es.Damping, es.StereoWidth, es.Feedback, es.Mix), nil
	case "compressor":
		return effect.NewCompressor(es.ThresholdDb, es.Ratio, es.AttackSeconds, es.ReleaseSeconds, es.MakeupDb, es.Mix), nil
	case "distortion":
		return effect.NewDistortion(parseDistortionKind(es.DistortionKind), es.DriveDb, es.Mix), nil
	case "panning":
		return effect.NewPanningControl(frame.Panning(es.Panning)), nil
	default:
		return nil, fmt.Errorf("unknown effect kind %q", es.Kind)
	}
}

func parseEQKind(s string) effect.EQKind {
	switch s {
	case "low_shelf":
		return effect.LowShelf
	case "high_shelf":
		return effect.HighShelf
	default:
		return effect.Bell
	}
}

func parseFilterMode(s string) effect.FilterMode {
	switch s {
	case "high":
		return effect.High
	case "band":
		return effect.Band
	case "notch":
		return effect.Notch
	default:
		return effect.Low
	}
}

func parseDistortionKind(s string) effect.DistortionKind {
	if s == "soft_clip" {
		return effect.SoftClip
	}
	return effect.HardClip
}
