package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelwatch/sentinelwatch/server/internal/api"
	"github.com/sentinelwatch/sentinelwatch/server/internal/auth"
	"github.com/sentinelwatch/sentinelwatch/server/internal/config"
	"github.com/sentinelwatch/sentinelwatch/server/internal/ratelimit"
	"github.com/sentinelwatch/sentinelwatch/server/internal/store"
	"github.com/sentinelwatch/sentinelwatch/server/internal/ws"
)

const (
	healthPath      = "/api/v1/health"
	feedSize        = 50
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "server.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("sentinelwatch-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_enabled", cfg.Server.Auth.Key() != "",
		"rate_limit_rpm", cfg.Server.RateLimit.RequestsPerMinute,
		"retention", cfg.Server.Retention,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Activity store with background retention eviction.
	st := store.New(cfg.Server.Retention)
	go st.Run(ctx)

	// WebSocket hub — broadcasts the latest activities to dashboard clients.
	hub := ws.New(st, cfg.Server.FeedInterval, feedSize)
	go hub.Run(ctx)

	// REST API behind auth and rate limiting. The health endpoint stays
	// reachable without a key so load balancers can probe it.
	limiter := ratelimit.New(cfg.Server.RateLimit.RequestsPerMinute, healthPath)
	apiHandler := auth.APIKey(
		cfg.Server.Auth.Header,
		cfg.Server.Auth.Key(),
		limiter.Middleware(api.New(st)),
		healthPath,
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/ws/stream", hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: mux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("sentinelwatch-server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}
