package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader. configPath may be empty for ENV-only setups.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the configuration: defaults first, then the YAML file (if
// any), then environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{
		ListenAddr:      DefaultListenAddr,
		LogLevel:        DefaultLogLevel,
		DefaultVolume:   DefaultVolume,
		MaxQueueSize:    DefaultMaxQueueSize,
		MaxPlaylistSize: DefaultMaxPlaylist,
		PageSize:        DefaultPageSize,
		IdleDelay:       DefaultIdleDelay,
		RatePerMinute:   DefaultRatePerMinute,
		Version:         l.version,
	}

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile parses the YAML file strictly: unknown fields are fatal to catch
// misconfiguration early.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) {
	if f.ListenAddr != nil {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
	if f.DefaultVolume != nil {
		cfg.DefaultVolume = *f.DefaultVolume
	}
	if f.MaxQueueSize != nil {
		cfg.MaxQueueSize = *f.MaxQueueSize
	}
	if f.MaxPlaylistSize != nil {
		cfg.MaxPlaylistSize = *f.MaxPlaylistSize
	}
	if f.PageSize != nil {
		cfg.PageSize = *f.PageSize
	}
	if f.IdleDelaySec != nil {
		cfg.IdleDelay = time.Duration(*f.IdleDelaySec) * time.Second
	}
	if f.RatePerMinute != nil {
		cfg.RatePerMinute = *f.RatePerMinute
	}
	if f.VirtualBackend != nil {
		cfg.VirtualBackend = *f.VirtualBackend
	}
}

func mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString("MAESTRO_LISTEN", cfg.ListenAddr)
	cfg.LogLevel = ParseString("MAESTRO_LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultVolume = ParseInt("MAESTRO_DEFAULT_VOLUME", cfg.DefaultVolume)
	cfg.MaxQueueSize = ParseInt("MAESTRO_MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxPlaylistSize = ParseInt("MAESTRO_MAX_PLAYLIST_SIZE", cfg.MaxPlaylistSize)
	cfg.PageSize = ParseInt("MAESTRO_PAGE_SIZE", cfg.PageSize)
	cfg.IdleDelay = ParseDuration("MAESTRO_IDLE_DELAY", cfg.IdleDelay)
	cfg.RatePerMinute = ParseInt("MAESTRO_RATE_PER_MINUTE", cfg.RatePerMinute)
	cfg.VirtualBackend = ParseBool("MAESTRO_VIRTUAL_BACKEND", cfg.VirtualBackend)
}
