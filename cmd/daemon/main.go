package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audioroom/maestro/internal/api"
	"github.com/audioroom/maestro/internal/backend"
	"github.com/audioroom/maestro/internal/config"
	mlog "github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/orchestrator"
	"github.com/audioroom/maestro/internal/platform"
	"github.com/audioroom/maestro/internal/room"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	mlog.Configure(mlog.Config{Level: "info", Service: "maestro", Version: version})
	logger := mlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(mlog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	mlog.Configure(mlog.Config{Level: cfg.LogLevel, Service: "maestro", Version: version})

	if *configPath != "" {
		logger.Info().
			Str(mlog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", *configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(mlog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	holder := config.NewHolder(cfg, loader, *configPath)

	be, closeBackend, err := buildBackend(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend init failed")
	}
	voice, notify := buildPlatform(cfg)

	orch := orchestrator.New(room.NewRegistry(), be, voice, notify, func() orchestrator.Options {
		c := holder.Get()
		return orchestrator.Options{
			QueueCapacity: c.MaxQueueSize,
			PlaylistCap:   c.MaxPlaylistSize,
			PageSize:      c.PageSize,
			DefaultVolume: c.DefaultVolume,
			IdleDelay:     c.IdleDelay,
		}
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(orch, cfg.RatePerMinute).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str(mlog.FieldEvent, "daemon.started").
			Str("listen", cfg.ListenAddr).
			Bool("virtual_backend", cfg.VirtualBackend).
			Msg("maestro daemon listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := orch.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("orchestrator: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return holder.Watch(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		orch.Close(shutdownCtx)
		closeBackend()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Str(mlog.FieldEvent, "daemon.stopped").Msg("shutdown complete")
}

// buildBackend wires the rendering backend. Only the in-memory virtual
// backend ships in-tree; a production deployment links a real client here.
func buildBackend(cfg config.AppConfig) (backend.Client, func(), error) {
	if !cfg.VirtualBackend {
		return nil, nil, fmt.Errorf("no rendering backend configured; set MAESTRO_VIRTUAL_BACKEND=true or link a backend client")
	}
	stub := backend.NewStub(true)
	return stub, stub.Close, nil
}

func buildPlatform(cfg config.AppConfig) (*platform.Stub, *platform.Stub) {
	_ = cfg
	stub := platform.NewStub()
	return stub, stub
}
