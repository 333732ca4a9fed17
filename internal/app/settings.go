package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DBPath             string `yaml:"db_path"`
	MaxIterations      int    `yaml:"max_iterations"`
	IterationTimeoutMS int    `yaml:"iteration_timeout_ms"`
}

const (
	// defaultMaxIterations is the While/Ralph bound used when a
	// workflow author does not override maxIterations.
	defaultMaxIterations = 10
)

// EffectiveMaxIterations returns the configured default max-iterations bound,
// falling back to defaultMaxIterations when unset or invalid.
func EffectiveMaxIterations() int {
	s, err := LoadSettings()
	if err != nil || s.MaxIterations <= 0 {
		return defaultMaxIterations
	}
	return s.MaxIterations
}

// EffectiveIterationTimeoutMS returns the configured minimum delay, in
// milliseconds, that Engine.Run leaves between two successive ticks. It is
// not applied per loop: signalComplete calls themselves are not throttled,
// and ticks driven directly through Engine.Tick are not delayed. Zero means
// no throttling.
func EffectiveIterationTimeoutMS() int {
	s, err := LoadSettings()
	if err != nil || s.IterationTimeoutMS < 0 {
		return 0
	}
	return s.IterationTimeoutMS
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load
// singleton for config. dbPathOverrideMu/dbPathOverride implement a
// mutex-protected process-wide override for CLI --db-path.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
//  1. ~/.config/smithers/config.yaml
//  2. /etc/smithers/config.yaml
//  3. ./config.yaml (lowest priority; allows repo-local overrides)
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}
		if s, err := loadSettingsFile(filepath.Join(dir, "config.yaml")); err == nil {
			settings = s
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		if s, err := loadSettingsFile(filepath.Join(string(os.PathSeparator), "etc", "smithers", "config.yaml")); err == nil {
			settings = s
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		if s, err := loadSettingsFile("config.yaml"); err == nil {
			settings = s
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
