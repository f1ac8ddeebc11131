// Package config loads recomp.toml, the per-project build settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"recomp/internal/trace"
)

// FileName is the name searched for by Find.
const FileName = "recomp.toml"

// Config mirrors recomp.toml. Every field has a usable zero-config default
// (see Default).
type Config struct {
	Build BuildConfig `toml:"build"`
	Arena ArenaConfig `toml:"arena"`
	Cache CacheConfig `toml:"cache"`
	Trace TraceConfig `toml:"trace"`
	Log   LogConfig   `toml:"log"`

	// Path is the file the config was read from; empty for defaults.
	Path string `toml:"-"`
}

type BuildConfig struct {
	Jobs        int  `toml:"jobs"`
	Validate    bool `toml:"validate"`
	CheckCycles bool `toml:"check_cycles"`
}

type ArenaConfig struct {
	DebugFill bool `toml:"debug_fill"`
	Capacity  uint `toml:"capacity"`
}

type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the settings used when no recomp.toml exists.
func Default() Config {
	return Config{
		Build: BuildConfig{Jobs: runtime.GOMAXPROCS(0), Validate: true, CheckCycles: true},
		Arena: ArenaConfig{Capacity: 256},
		Cache: CacheConfig{Enabled: true, Dir: defaultCacheDir()},
		Trace: TraceConfig{Level: "off", Mode: "ring", Output: "-"},
		Log:   LogConfig{Level: "warn"},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "recomp")
	}
	return filepath.Join(os.TempDir(), "recomp-cache")
}

// Find walks up from startDir looking for recomp.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("cache", "dir") && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(filepath.Dir(path), cfg.Cache.Dir)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover finds and loads recomp.toml above startDir, falling back to
// Default when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges and enum spellings.
func (c Config) Validate() error {
	var errs []error
	if c.Build.Jobs < 1 {
		errs = append(errs, fmt.Errorf("[build].jobs must be at least 1, got %d", c.Build.Jobs))
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Dir) == "" {
		errs = append(errs, errors.New("[cache].dir is empty"))
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("[trace].level: %w", err))
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		errs = append(errs, fmt.Errorf("[trace].mode: %w", err))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("[log].level: %w", err))
	}
	return errors.Join(errs...)
}
