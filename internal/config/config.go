// Package config loads daemon configuration with precedence
// ENV > YAML file > defaults, and supports hot reloading of tunables.
package config

import (
	"fmt"
	"time"
)

// Defaults for all recognized options.
const (
	DefaultListenAddr    = ":8080"
	DefaultLogLevel      = "info"
	DefaultVolume        = 100
	DefaultMaxQueueSize  = 1000
	DefaultMaxPlaylist   = 100
	DefaultPageSize      = 10
	DefaultIdleDelay     = 300 * time.Second
	DefaultRatePerMinute = 120
)

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	ListenAddr string
	LogLevel   string
	Version    string

	DefaultVolume   int
	MaxQueueSize    int
	MaxPlaylistSize int
	PageSize        int
	IdleDelay       time.Duration
	RatePerMinute   int

	// VirtualBackend swaps the real rendering backend for the in-memory
	// stub, for local development and soak tests.
	VirtualBackend bool
}

// FileConfig mirrors the YAML schema. Pointer fields distinguish "absent"
// from zero values so file settings only override what they mention.
type FileConfig struct {
	ListenAddr      *string `yaml:"listen_addr"`
	LogLevel        *string `yaml:"log_level"`
	DefaultVolume   *int    `yaml:"default_volume"`
	MaxQueueSize    *int    `yaml:"max_queue_size"`
	MaxPlaylistSize *int    `yaml:"max_playlist_size"`
	PageSize        *int    `yaml:"page_size"`
	IdleDelaySec    *int    `yaml:"idle_delay_seconds"`
	RatePerMinute   *int    `yaml:"rate_per_minute"`
	VirtualBackend  *bool   `yaml:"virtual_backend"`
}

// Validate rejects configurations the orchestrator cannot run with.
func Validate(cfg AppConfig) error {
	if cfg.MaxQueueSize < 1 {
		return fmt.Errorf("max queue size must be >= 1, got %d", cfg.MaxQueueSize)
	}
	if cfg.MaxPlaylistSize < 1 {
		return fmt.Errorf("max playlist size must be >= 1, got %d", cfg.MaxPlaylistSize)
	}
	if cfg.MaxPlaylistSize > cfg.MaxQueueSize {
		return fmt.Errorf("max playlist size %d exceeds max queue size %d", cfg.MaxPlaylistSize, cfg.MaxQueueSize)
	}
	if cfg.PageSize < 1 {
		return fmt.Errorf("page size must be >= 1, got %d", cfg.PageSize)
	}
	if cfg.DefaultVolume < 0 || cfg.DefaultVolume > 200 {
		return fmt.Errorf("default volume must be in [0, 200], got %d", cfg.DefaultVolume)
	}
	if cfg.IdleDelay < time.Second {
		return fmt.Errorf("idle delay must be >= 1s, got %s", cfg.IdleDelay)
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	return nil
}
