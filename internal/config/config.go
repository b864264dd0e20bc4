// Package config loads the daemon configuration from .cognitia/config.yaml.
// Every field has a default, so a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendBbolt  = "bbolt"
	BackendSQLite = "sqlite"
)

// Matcher engines.
const (
	EngineNative = "native" // internal/domain/automaton
	EngineDFA    = "dfa"    // petar-dambovaliev/aho-corasick
)

// Config is the full daemon configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
}

// StoreConfig selects where topics persist.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"` // empty = .cognitia/cognitia.db (or .sqlite)
}

// DictionaryConfig controls seeding and file watching.
type DictionaryConfig struct {
	SeedPath string `yaml:"seed_path"` // empty = embedded seed
	Watch    bool   `yaml:"watch"`     // re-import SeedPath when it changes
}

// MatcherConfig selects the scanning engine.
type MatcherConfig struct {
	Engine string `yaml:"engine"`
}

// HTTPConfig controls the JSON API.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // empty = 127.0.0.1:<project port>
}

// LogConfig controls the daemon log.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Store:   StoreConfig{Backend: BackendBbolt},
		Matcher: MatcherConfig{Engine: EngineNative},
		HTTP:    HTTPConfig{Enabled: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Matcher.Engine = strings.ToLower(strings.TrimSpace(c.Matcher.Engine))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendBbolt
	}
	if c.Matcher.Engine == "" {
		c.Matcher.Engine = EngineNative
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendBbolt, BackendSQLite:
	default:
		return fmt.Errorf("store.backend: unknown backend %q (want bbolt or sqlite)", c.Store.Backend)
	}
	switch c.Matcher.Engine {
	case EngineNative, EngineDFA:
	default:
		return fmt.Errorf("matcher.engine: unknown engine %q (want native or dfa)", c.Matcher.Engine)
	}
	if c.Dictionary.Watch && c.Dictionary.SeedPath == "" {
		return errors.New("dictionary.watch requires dictionary.seed_path")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
