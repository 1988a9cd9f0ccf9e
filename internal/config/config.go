package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Engine  EngineConfig
	Display DisplayConfig
}

type EngineConfig struct {
	TickMS               int  `toml:"tick_ms"`
	OrphanTimeoutSeconds int  `toml:"orphan_timeout_seconds"`
	ImmediateFlush       bool `toml:"immediate_flush"`
}

type DisplayConfig struct {
	MaxResultLines int `toml:"max_result_lines"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfig returns the built-in defaults: 500ms drain tick, 30s orphan
// timeout, lifecycle events flushed out of band, result bodies capped at
// 500 lines.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			TickMS:               500,
			OrphanTimeoutSeconds: 30,
			ImmediateFlush:       true,
		},
		Display: DisplayConfig{
			MaxResultLines: 500,
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cc-relay", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromString(string(data))
}

func LoadFromString(data string) (*LoadResult, error) {
	cfg := DefaultConfig()
	result := &LoadResult{Config: cfg}

	if data == "" {
		return result, nil
	}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	knownTopLevel := map[string]bool{
		"engine":  true,
		"display": true,
	}
	for key := range raw {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

type tomlFile struct {
	Engine  *EngineConfig  `toml:"engine"`
	Display *DisplayConfig `toml:"display"`
}

// mergeFromRaw overwrites defaults only for keys actually present in the
// file, so a zero in the decoded struct is distinguishable from an absent
// key (immediate_flush = false must survive the merge).
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Engine != nil {
		if section, ok := rawSection(raw, "engine"); ok {
			if _, exists := section["tick_ms"]; exists {
				cfg.Engine.TickMS = tf.Engine.TickMS
			}
			if _, exists := section["orphan_timeout_seconds"]; exists {
				cfg.Engine.OrphanTimeoutSeconds = tf.Engine.OrphanTimeoutSeconds
			}
			if _, exists := section["immediate_flush"]; exists {
				cfg.Engine.ImmediateFlush = tf.Engine.ImmediateFlush
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["max_result_lines"]; exists {
				cfg.Display.MaxResultLines = tf.Display.MaxResultLines
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Engine.TickMS < 1 {
		errs = append(errs, fmt.Sprintf("engine tick_ms must be positive, got %d", cfg.Engine.TickMS))
	}
	if cfg.Engine.OrphanTimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("engine orphan_timeout_seconds must be positive, got %d", cfg.Engine.OrphanTimeoutSeconds))
	}
	if cfg.Display.MaxResultLines < 1 {
		errs = append(errs, fmt.Sprintf("display max_result_lines must be positive, got %d", cfg.Display.MaxResultLines))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
