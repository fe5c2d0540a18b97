package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_DefaultValues(t *testing.T) {
	viper.Reset()

	if err := Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	cfg := Get()
	cases := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"SampleRate", cfg.SampleRate, 48000.0},
		{"PreferredBlockSize", cfg.PreferredBlockSize, 512},
		{"InternalBufferSize", cfg.InternalBufferSize, 128},
		{"MaxCommandsPerBlock", cfg.MaxCommandsPerBlock, 128},
		{"Capacities.Sounds", cfg.Capacities.Sounds, 256},
		{"Capacities.SubTracks", cfg.Capacities.SubTracks, 64},
		{"Capacities.Clocks", cfg.Capacities.Clocks, 16},
		{"Capacities.Modulators", cfg.Capacities.Modulators, 32},
		{"Capacities.SpatialListeners", cfg.Capacities.SpatialListeners, 8},
		{"MasterVolumeDb", cfg.MasterVolumeDb, 0.0},
		{"MusicVolumeDb", cfg.MusicVolumeDb, -6.0},
		{"SFXVolumeDb", cfg.SFXVolumeDb, 0.0},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Config.%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoad_TOMLParsing(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kira.toml")

	configData := `
SampleRate = 44100.0
PreferredBlockSize = 256
InternalBufferSize = 64
DeviceName = "Scarlett 2i2"

[Capacities]
Sounds = 512
SubTracks = 32
Clocks = 4
Modulators = 8
SpatialListeners = 4
`
	if err := os.WriteFile(configPath, []byte(configData), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	viper.Reset()
	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath(tmpDir)

	viper.SetDefault("SampleRate", 48000.0)
	viper.SetDefault("PreferredBlockSize", 512)
	viper.SetDefault("InternalBufferSize", 128)
	viper.SetDefault("MaxCommandsPerBlock", 128)
	viper.SetDefault("Capacities.Sounds", 256)
	viper.SetDefault("Capacities.SubTracks", 64)
	viper.SetDefault("Capacities.Clocks", 16)
	viper.SetDefault("Capacities.Modulators", 32)
	viper.SetDefault("Capacities.SpatialListeners", 8)

	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("viper.ReadInConfig() failed: %v", err)
	}
	if err := viper.Unmarshal(&C); err != nil {
		t.Fatalf("viper.Unmarshal() failed: %v", err)
	}

	cfg := Get()
	if cfg.SampleRate != 44100.0 {
		t.Errorf("SampleRate = %v, want 44100.0", cfg.SampleRate)
	}
	if cfg.PreferredBlockSize != 256 {
		t.Errorf("PreferredBlockSize = %v, want 256", cfg.PreferredBlockSize)
	}
	if cfg.DeviceName != "Scarlett 2i2" {
		t.Errorf("DeviceName = %q, want %q", cfg.DeviceName, "Scarlett 2i2")
	}
	if cfg.Capacities.Sounds != 512 {
		t.Errorf("Capacities.Sounds = %v, want 512", cfg.Capacities.Sounds)
	}
	if cfg.Capacities.SpatialListeners != 4 {
		t.Errorf("Capacities.SpatialListeners = %v, want 4", cfg.Capacities.SpatialListeners)
	}
}

func TestLoad_MissingFileFallback(t *testing.T) {
	viper.Reset()
	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/nonexistent/path")

	if err := Load(); err != nil {
		t.Errorf("Load() with missing file should not error, got: %v", err)
	}

	cfg := Get()
	if cfg.SampleRate != 48000.0 {
		t.Errorf("default SampleRate = %v, want 48000.0", cfg.SampleRate)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kira.toml")
	if err := os.WriteFile(configPath, []byte(`SampleRate = 48000.0`), 0o644); err != nil {
		t.Fatalf("failed to seed config file: %v", err)
	}

	viper.Reset()
	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath(tmpDir)

	if err := Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	cfg := Settings{
		SampleRate:          44100,
		PreferredBlockSize:  128,
		InternalBufferSize:  64,
		MaxCommandsPerBlock: 64,
		DeviceName:          "test-device",
		Capacities: Capacities{
			Sounds: 64, SubTracks: 16, Clocks: 4, Modulators: 4, SpatialListeners: 2,
		},
		MasterVolumeDb: -3,
		MusicVolumeDb:  -9,
		SFXVolumeDb:    -1,
	}
	Set(cfg)

	if err := Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	viper.Reset()
	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath(tmpDir)

	if err := Load(); err != nil {
		t.Fatalf("Load() after save failed: %v", err)
	}

	newCfg := Get()
	if newCfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %v, want 44100", newCfg.SampleRate)
	}
	if newCfg.DeviceName != "test-device" {
		t.Errorf("DeviceName = %q, want test-device", newCfg.DeviceName)
	}
	if newCfg.Capacities.Sounds != 64 {
		t.Errorf("Capacities.Sounds = %v, want 64", newCfg.Capacities.Sounds)
	}
	if newCfg.Capacities.SpatialListeners != 2 {
		t.Errorf("Capacities.SpatialListeners = %v, want 2", newCfg.Capacities.SpatialListeners)
	}
	if newCfg.MusicVolumeDb != -9 {
		t.Errorf("MusicVolumeDb = %v, want -9", newCfg.MusicVolumeDb)
	}
}

func TestSettingsToMap_NestsCapacities(t *testing.T) {
	cfg := Settings{
		SampleRate: 44100,
		DeviceName: "test-device",
		Capacities: Capacities{Sounds: 64, SubTracks: 16, Clocks: 4, Modulators: 4, SpatialListeners: 2},
	}

	m := settingsToMap(cfg)

	if got := m["SampleRate"]; got != 44100.0 {
		t.Errorf("m[SampleRate] = %v, want 44100.0", got)
	}
	if got := m["DeviceName"]; got != "test-device" {
		t.Errorf("m[DeviceName] = %v, want test-device", got)
	}
	caps, ok := m["Capacities"].(map[string]interface{})
	if !ok {
		t.Fatalf("m[Capacities] = %T, want map[string]interface{}", m["Capacities"])
	}
	if got := caps["Sounds"]; got != 64 {
		t.Errorf("caps[Sounds] = %v, want 64", got)
	}
	if got := caps["SpatialListeners"]; got != 2 {
		t.Errorf("caps[SpatialListeners] = %v, want 2", got)
	}
}

func TestWatch_HotReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kira.toml")

	initialData := `
SampleRate = 48000.0
MasterVolumeDb = 0.0
`
	if err := os.WriteFile(configPath, []byte(initialData), 0o644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	viper.Reset()
	mu.Lock()
	C = Settings{}
	mu.Unlock()

	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath(tmpDir)

	viper.SetDefault("SampleRate", 48000.0)
	viper.SetDefault("MasterVolumeDb", 0.0)

	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("viper.ReadInConfig() failed: %v", err)
	}

	mu.Lock()
	if err := viper.Unmarshal(&C); err != nil {
		mu.Unlock()
		t.Fatalf("viper.Unmarshal() failed: %v", err)
	}
	mu.Unlock()

	initialCfg := Get()
	if initialCfg.SampleRate != 48000.0 {
		t.Fatalf("initial SampleRate = %v, want 48000.0", initialCfg.SampleRate)
	}

	var callbackCalled bool
	var newCfg Settings
	var cbMu sync.Mutex

	callback := func(old, new Settings) {
		cbMu.Lock()
		callbackCalled = true
		newCfg = new
		cbMu.Unlock()
		t.Logf("hot-reload callback invoked: old.MasterVolumeDb=%v, new.MasterVolumeDb=%v", old.MasterVolumeDb, new.MasterVolumeDb)
	}

	stop, err := Watch(callback)
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer stop()

	time.Sleep(100 * time.Millisecond)

	modifiedData := `
SampleRate = 48000.0
MasterVolumeDb = -6.0
`
	if err := os.WriteFile(configPath, []byte(modifiedData), 0o644); err != nil {
		t.Fatalf("failed to write modified config: %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	cbMu.Lock()
	called := callbackCalled
	cbMu.Unlock()

	if !called {
		t.Error("callback was not called after config change")
		return
	}

	cbMu.Lock()
	if newCfg.MasterVolumeDb != -6.0 {
		t.Errorf("callback new.MasterVolumeDb = %v, want -6.0", newCfg.MasterVolumeDb)
	}
	cbMu.Unlock()

	cfg := Get()
	if cfg.MasterVolumeDb != -6.0 {
		t.Errorf("global MasterVolumeDb = %v, want -6.0", cfg.MasterVolumeDb)
	}
}

func TestWatch_NilCallback(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kira.toml")

	if err := os.WriteFile(configPath, []byte(`SampleRate = 48000.0`), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	viper.Reset()
	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath(tmpDir)

	if err := Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	stop, err := Watch(nil)
	if err != nil {
		t.Fatalf("Watch(nil) failed: %v", err)
	}
	defer stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configPath, []byte(`SampleRate = 44100.0`), 0o644); err != nil {
		t.Fatalf("failed to write modified config: %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	cfg := Get()
	if cfg.SampleRate != 44100.0 {
		t.Errorf("SampleRate = %v, want 44100.0", cfg.SampleRate)
	}
}

func TestGetSet_Concurrency(t *testing.T) {
	viper.Reset()
	if err := Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	var wg sync.WaitGroup
	iterations := 100

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_ = Get()
			}
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				cfg := Get()
				cfg.PreferredBlockSize = 256 + id
				Set(cfg)
			}
		}(i)
	}

	wg.Wait()

	cfg := Get()
	if cfg.PreferredBlockSize < 256 || cfg.PreferredBlockSize >= 266 {
		t.Logf("final PreferredBlockSize = %v (expected in range [256, 266))", cfg.PreferredBlockSize)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kira.toml")

	invalidData := `
SampleRate = "not a number"
[[[invalid structure
`
	if err := os.WriteFile(configPath, []byte(invalidData), 0o644); err != nil {
		t.Fatalf("failed to write invalid config: %v", err)
	}

	viper.Reset()
	viper.SetConfigName("kira")
	viper.SetConfigType("toml")
	viper.AddConfigPath(tmpDir)

	if err := Load(); err == nil {
		t.Error("Load() should return error for invalid TOML")
	}
}

func BenchmarkGet(b *testing.B) {
	viper.Reset()
	if err := Load(); err != nil {
		b.Fatalf("Load() failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Get()
	}
}

func BenchmarkSet(b *testing.B) {
	viper.Reset()
	if err := Load(); err != nil {
		b.Fatalf("Load() failed: %v", err)
	}

	cfg := Get()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Set(cfg)
	}
}

func BenchmarkGetSet_Concurrent(b *testing.B) {
	viper.Reset()
	if err := Load(); err != nil {
		b.Fatalf("Load() failed: %v", err)
	}

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cfg := Get()
			cfg.PreferredBlockSize = 256
			Set(cfg)
		}
	})
}
