package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/audioroom/maestro/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder keeps the live configuration and reloads it atomically when the
// config file changes. A reload that fails to load or validate keeps the
// previous configuration.
type Holder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger
}

// NewHolder creates a holder with the initial configuration.
func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-runs the loader and swaps the configuration atomically.
func (h *Holder) Reload(_ context.Context) error {
	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("keeping previous configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = newCfg
	h.mu.Unlock()

	if old.IdleDelay != newCfg.IdleDelay {
		h.logger.Info().
			Dur("old", old.IdleDelay).
			Dur("new", newCfg.IdleDelay).
			Msg("idle delay changed")
	}
	if old.MaxQueueSize != newCfg.MaxQueueSize {
		h.logger.Info().
			Int("old", old.MaxQueueSize).
			Int("new", newCfg.MaxQueueSize).
			Msg("max queue size changed (applies to new rooms)")
	}

	h.logger.Info().
		Str(log.FieldEvent, "config.reload_success").
		Msg("configuration reloaded")
	return nil
}

// Watch blocks watching the config file for changes until ctx is cancelled.
// With no config file it returns immediately.
func (h *Holder) Watch(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str(log.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(h.configPath); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().
		Str(log.FieldEvent, "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file")

	// Editors often fire several events per save; debounce them.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.After(250 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).Msg("config watcher error")
		case <-pending:
			pending = nil
			_ = h.Reload(ctx)
		}
	}
}
