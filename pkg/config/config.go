// Package config handles loading, saving, and hot-reloading a host
// application's non-realtime engine settings: AudioManager construction
// knobs and the handful of bus gains every game wants to expose to a
// settings screen. Renderer-thread state is never touched directly;
// Watch's callback is expected to turn a changed gain into a
// Parameter tween pushed through the existing command ring.
package config

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Capacities mirrors manager.Capacities so it can be loaded from TOML
// without this package depending on pkg/manager.
type Capacities struct {
	Sounds           int `mapstructure:"Sounds"`
	SubTracks        int `mapstructure:"SubTracks"`
	Clocks           int `mapstructure:"Clocks"`
	Modulators       int `mapstructure:"Modulators"`
	SpatialListeners int `mapstructure:"SpatialListeners"`
}

// Settings holds the non-realtime configuration for an AudioManager
// and its backend, plus the bus gains a game exposes on a settings
// screen.
type Settings struct {
	SampleRate          float64    `mapstructure:"SampleRate"`
	PreferredBlockSize  int        `mapstructure:"PreferredBlockSize"`
	InternalBufferSize  int        `mapstructure:"InternalBufferSize"`
	MaxCommandsPerBlock int        `mapstructure:"MaxCommandsPerBlock"`
	DeviceName          string     `mapstructure:"DeviceName"`
	Capacities          Capacities `mapstructure:"Capacities"`
	MasterVolumeDb      float64    `mapstructure:"MasterVolumeDb"`
	MusicVolumeDb       float64    `mapstructure:"MusicVolumeDb"`
	SFXVolumeDb         float64    `mapstructure:"SFXVolumeDb"`
}

// C is the global configuration instance.
var C Settings

// mu protects concurrent access to C during hot-reload.
var mu sync.RWMutex

// watcherMu protects the watcher state.
var (
	watcherMu       sync.Mutex
	watcherActive   bool
	watcherCtx      context.Context
	watcherCancel   context.CancelFunc
	currentCallback ReloadCallback
)

// ReloadCallback is called when the configuration is hot-reloaded.
type ReloadCallback func(old, new Settings)

// Load reads configuration from kira.toml in the working directory or
// $HOME/.kira, falling back to defaults, populating C. Environment
// variables are not read.
func Load() error {
	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.kira")

	viper.SetDefault("SampleRate", 48000.0)
	viper.SetDefault("PreferredBlockSize", 512)
	viper.SetDefault("InternalBufferSize", 128)
	viper.SetDefault("MaxCommandsPerBlock", 128)
	viper.SetDefault("DeviceName", "")
	viper.SetDefault("Capacities.Sounds", 256)
	viper.SetDefault("Capacities.SubTracks", 64)
	viper.SetDefault("Capacities.Clocks", 16)
	viper.SetDefault("Capacities.Modulators", 32)
	viper.SetDefault("Capacities.SpatialListeners", 8)
	viper.SetDefault("MasterVolumeDb", 0.0)
	viper.SetDefault("MusicVolumeDb", -6.0)
	viper.SetDefault("SFXVolumeDb", 0.0)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	return viper.Unmarshal(&C)
}

// Save writes the current configuration to file. It walks Settings by
// its mapstructure tags rather than re-typing each field as a separate
// viper.Set call, so a field added to Settings is picked up here for
// free instead of silently going unsaved until someone remembers to
// extend this function too.
func Save() error {
	mu.RLock()
	defer mu.RUnlock()

	if err := viper.MergeConfigMap(settingsToMap(C)); err != nil {
		return err
	}
	return viper.WriteConfig()
}

// settingsToMap walks v's exported fields by their mapstructure tags,
// producing the nested map viper.MergeConfigMap expects. Struct-typed
// fields (Capacities) recurse into a nested map rather than a
// dotted key, matching how viper itself models nested TOML tables.
//
// mapstructure's own Decode only goes map->struct; there is no
// matching struct->map encoder in that package to lean on here, so
// this directly reflects over the tags it already requires Settings to
// carry.
func settingsToMap(v interface{}) map[string]interface{} {
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			key = field.Name
		}

		fv := rv.Field(i)
		if fv.Kind() == reflect.Struct {
			out[key] = settingsToMap(fv.Interface())
			continue
		}
		out[key] = fv.Interface()
	}
	return out
}

// Watch starts watching the config file for changes and calls the
// callback on reload. Returns a stop function to cancel watching.
// Only one watcher can be active at a time; calling Watch when a
// watcher is active replaces the callback but keeps the same
// underlying file watcher, to avoid viper race conditions.
func Watch(callback ReloadCallback) (stop func(), err error) {
	watcherMu.Lock()
	defer watcherMu.Unlock()

	if !watcherActive {
		ctx, cancel := context.WithCancel(context.Background())
		watcherCtx = ctx
		watcherCancel = cancel
		currentCallback = callback
		watcherActive = true

		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			watcherMu.Lock()
			cb := currentCallback
			ctx := watcherCtx
			watcherMu.Unlock()

			if ctx != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}

			mu.Lock()
			old := C
			var newCfg Settings
			if err := viper.Unmarshal(&newCfg); err == nil {
				C = newCfg
				mu.Unlock()
				if cb != nil {
					cb(old, newCfg)
				}
			} else {
				mu.Unlock()
			}
		})
	} else {
		currentCallback = callback
	}

	return func() {
		watcherMu.Lock()
		defer watcherMu.Unlock()
		if watcherCancel != nil {
			watcherCancel()
			watcherCancel = nil
			watcherCtx = nil
		}
		watcherActive = false
		currentCallback = nil
	}, nil
}

// Get returns a copy of the current config safely.
func Get() Settings {
	mu.RLock()
	defer mu.RUnlock()
	return C
}

// Set updates the config safely.
func Set(cfg Settings) {
	mu.Lock()
	C = cfg
	mu.Unlock()
}
