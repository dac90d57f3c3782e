package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/lineup/internal/reconcile"
)

const (
	defaultWindowLength  = 3
	maxWindowLength      = 32
	defaultMaxConcurrent = 4
	defaultHistorySize   = 50
)

type Config struct {
	Queue   QueueConfig   `koanf:"queue"`
	Loader  LoaderConfig  `koanf:"loader"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	State   StateConfig   `koanf:"state"`

	// Desktop now playing surfaces
	NowPlaying NowPlayingConfig `koanf:"nowplaying"`

	// Last.fm scrobbling (enables the tracker when configured)
	Lastfm LastfmConfig `koanf:"lastfm"`
}

// QueueConfig controls reconciliation.
type QueueConfig struct {
	WindowLength int    `koanf:"window_length"` // items handed to the engine (1-32, default: 3)
	Repeat       string `koanf:"repeat"`        // "off", "all" or "one" (default: "off")
	HistorySize  int    `koanf:"history_size"`  // undo depth (default: 50)
}

// LoaderConfig controls asynchronous resource resolution.
type LoaderConfig struct {
	MaxConcurrent int `koanf:"max_concurrent"` // parallel loads (default: 4)
}

type LogConfig struct {
	Level   string `koanf:"level"`   // zerolog level name (default: info)
	Console bool   `koanf:"console"` // human-readable output
}

type MetricsConfig struct {
	Namespace string `koanf:"namespace"` // Prometheus namespace (default: "lineup")
	Listen    string `koanf:"listen"`    // e.g. ":9090"; empty disables the endpoint
}

type StateConfig struct {
	Path string `koanf:"path"` // sqlite file; empty uses the XDG data dir
}

// NowPlayingConfig selects where the now playing record is published.
type NowPlayingConfig struct {
	Notify        bool  `koanf:"notify"`         // desktop notification per track
	NotifyTimeout int32 `koanf:"notify_timeout"` // ms (default: 5000)
	MPRIS         bool  `koanf:"mpris"`          // read-only MPRIS player on D-Bus
}

// LastfmConfig holds Last.fm scrobbling configuration.
type LastfmConfig struct {
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	SessionKey string `koanf:"session_key"`
}

// Load reads the config files in priority order (last wins).
func Load() (*Config, error) {
	return LoadFiles(getConfigPaths()...)
}

// LoadFiles reads the given TOML files, skipping missing ones.
func LoadFiles(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.State.Path != "" {
		cfg.State.Path = expandPath(cfg.State.Path)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/lineup/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lineup", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// GetQueueConfig returns the queue configuration with defaults applied.
func (c *Config) GetQueueConfig() QueueConfig {
	cfg := c.Queue

	if cfg.WindowLength <= 0 || cfg.WindowLength > maxWindowLength {
		cfg.WindowLength = defaultWindowLength
	}
	if _, err := reconcile.ParseRepeatMode(cfg.Repeat); err != nil {
		cfg.Repeat = "off"
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}

	return cfg
}

// RepeatMode returns the configured repeat mode (off when invalid).
func (c *Config) RepeatMode() reconcile.RepeatMode {
	mode, _ := reconcile.ParseRepeatMode(c.GetQueueConfig().Repeat)
	return mode
}

// GetLoaderConfig returns the loader configuration with defaults applied.
func (c *Config) GetLoaderConfig() LoaderConfig {
	cfg := c.Loader
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	return cfg
}
