package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/polysquad/internal/auth"
	"github.com/rickgao/polysquad/internal/bot"
	"github.com/rickgao/polysquad/internal/config"
	"github.com/rickgao/polysquad/internal/feed"
	"github.com/rickgao/polysquad/internal/hub"
	"github.com/rickgao/polysquad/internal/leaderboard"
	"github.com/rickgao/polysquad/internal/server"
	"github.com/rickgao/polysquad/internal/store"
	"github.com/rickgao/polysquad/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/server.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting polysquad server",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"venue_url", cfg.Venue.DataURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := store.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, store.Options{
		RetentionMaxAge: cfg.Retention.MaxAge,
		HistoryLimit:    cfg.Retention.HistoryLimit,
	})

	logger.Info("database connected")

	// Venue data client
	feedClient := feed.NewClient(
		cfg.Venue.DataURL,
		cfg.Venue.APIKey,
		feed.WithLogger(logger),
		feed.WithTimeout(cfg.Venue.Timeout),
		feed.WithRetries(cfg.Venue.MaxRetries, time.Second),
	)

	// Token authority
	tokens, err := auth.NewTokenAuthority(cfg.HTTP.TokenSecret, cfg.HTTP.TokenTTL)
	if err != nil {
		logger.Error("failed to create token authority", "error", err)
		os.Exit(1)
	}

	// Chat hub
	h := hub.New(hub.Config{
		SessionBuffer: cfg.Hub.SessionBuffer,
		WriteTimeout:  cfg.Hub.WriteTimeout,
		PingInterval:  cfg.Hub.PingInterval,
		ReadLimit:     cfg.Hub.ReadLimit,
		StoreTimeout:  cfg.Hub.StoreTimeout,
	}, st, logger)

	// Leaderboard service
	boards := leaderboard.New(leaderboard.Config{
		TTL:           cfg.Leaderboard.TTL,
		MemberTimeout: cfg.Leaderboard.MemberTimeout,
	}, st, feedClient, logger)

	// Ingestion bot
	ingestion := bot.New(bot.Config{
		Interval:    cfg.Bot.Interval,
		Cooldown:    cfg.Bot.Cooldown,
		Concurrency: cfg.Bot.Concurrency,
		Timeout:     cfg.Bot.Timeout,
		FeedLimit:   cfg.Bot.FeedLimit,
	}, st, st, st, feedClient, h, logger)

	if err := ingestion.Start(ctx); err != nil {
		logger.Error("failed to start ingestion bot", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		ingestion.Stop(stopCtx)
	}()

	// HTTP server
	srv := server.New(st, h, boards, tokens, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("polysquad running",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.HTTP.Addr,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	logger.Info("polysquad stopped")
}
