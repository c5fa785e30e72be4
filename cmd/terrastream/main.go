package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/terrastream/internal/config"
	"github.com/udisondev/terrastream/internal/dispatch"
	"github.com/udisondev/terrastream/internal/terrain"
	"github.com/udisondev/terrastream/internal/transport/feed"
	"github.com/udisondev/terrastream/internal/world"
)

const ConfigPath = "config/terrastream.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := ConfigPath
	if p := os.Getenv("TERRASTREAM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config %s: %w", cfgPath, err)
	}

	slog.Info("terrastream starting",
		"config", cfgPath,
		"log_level", cfg.LogLevel,
		"workers", cfg.Streaming.Workers,
		"store", cfg.Store.Driver,
		"chunk_world_size", cfg.Mesh.MeshWorldSize())

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	var heightFields terrain.HeightFieldGenerator = terrain.NoiseGenerator{}
	if store.HeightFieldStore != nil {
		heightFields = terrain.NewCachedGenerator(heightFields, store)
	}

	dispatcher := dispatch.New(cfg.Streaming.Workers)
	defer dispatcher.Close()

	manager, err := world.NewManager(world.Options{
		Settings:            cfg.ChunkSettings(),
		Dispatcher:          dispatcher,
		HeightFields:        heightFields,
		Meshes:              terrain.GridMesher{},
		Converter:           terrain.BufferConverter{},
		Observer:            newPathObserver(cfg.Observer, time.Now),
		TickInterval:        cfg.Streaming.TickInterval,
		ViewerMoveThreshold: cfg.Streaming.ViewerMoveThreshold,
		UnloadMargin:        cfg.Streaming.UnloadMargin,
	})
	if err != nil {
		return fmt.Errorf("creating streaming manager: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := manager.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("streaming manager: %w", err)
		}
		return nil
	})

	if cfg.Feed.Enabled {
		feedServer := feed.NewServer(manager, cfg.Feed.SendBuffer)
		g.Go(func() error {
			if err := feedServer.Run(gctx, cfg.Feed.Addr); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("feed server: %w", err)
			}
			return nil
		})
	}

	if cfg.Streaming.StatsInterval > 0 {
		g.Go(func() error {
			logStats(gctx, manager, cfg.Streaming.StatsInterval)
			return nil
		})
	}

	// Wait for all loops to finish
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("terrastream stopped")
	return nil
}

// logStats periodically reports streaming counters until ctx is done.
func logStats(ctx context.Context, m *world.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Stats()
			slog.Info("streaming stats",
				"ticks", s.Ticks,
				"chunks", s.Chunks,
				"visible", s.Visible,
				"created", s.Created,
				"disposed", s.Disposed,
				"backlog", s.Dispatcher.Backlog,
				"ready", s.Dispatcher.Ready,
				"completed", s.Dispatcher.Completed)
		}
	}
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
