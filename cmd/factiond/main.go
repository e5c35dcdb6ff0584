// Package main provides the faction territory daemon: it loads state from the
// configured backend and serves queries, game-event ingestion and the
// websocket event feed.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/config"
	"github.com/cory-johannsen/factions/internal/observability"
	"github.com/cory-johannsen/factions/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "factiond")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	app, err := initApp(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("wiring application", zap.Error(err))
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Storage.SaveTimeout)
	err = app.Service.Load(loadCtx)
	cancel()
	if err != nil {
		logger.Fatal("loading territory state", zap.Error(err))
	}
	stats := app.Service.Stats()
	logger.Info("territory state loaded",
		zap.String("backend", cfg.Storage.Backend),
		zap.Int("factions", stats.Factions),
		zap.Int("claims", stats.Claims),
	)

	lifecycle := newLifecycle(&cfg, app, logger)

	logger.Info("factiond initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// newLifecycle registers the daemon's services. Services stop in reverse
// order, so the flusher's final save runs after the RPC server and feed have
// drained.
func newLifecycle(cfg *config.Config, app *App, logger *zap.Logger) *server.Lifecycle {
	lc := server.NewLifecycle(logger)
	lc.Add("flusher", app.Flusher)
	lc.Add("grpc", app.RPC)
	if cfg.Feed.Port > 0 {
		lc.Add("feed", app.Feed)
	}
	lc.OnShutdown("scripts", func(context.Context) error {
		app.Scripts.Close()
		return nil
	})
	lc.OnShutdown("storage", func(context.Context) error {
		return app.Gateway.Close()
	})
	return lc
}
