package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelwatch/sentinelwatch/agent/internal/backlog"
	"github.com/sentinelwatch/sentinelwatch/agent/internal/collect"
	"github.com/sentinelwatch/sentinelwatch/agent/internal/config"
	"github.com/sentinelwatch/sentinelwatch/agent/internal/delivery"
)

// shutdownFlushTimeout bounds the final best-effort flush on exit.
const shutdownFlushTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "agent.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("sentinel-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_url", cfg.Agent.ServerURL,
		"client_id", cfg.Agent.ClientID,
		"interval", cfg.Agent.Interval,
		"backlog_capacity", cfg.Agent.Backlog.Capacity,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector, err := collect.New(cfg.Agent)
	if err != nil {
		slog.Error("failed to build collector", "err", err)
		os.Exit(1)
	}

	queue, err := backlog.Open(cfg.Agent.Backlog.Path, cfg.Agent.Backlog.Capacity)
	if err != nil {
		slog.Error("failed to open backlog", "path", cfg.Agent.Backlog.Path, "err", err)
		os.Exit(1)
	}
	if n := queue.Size(); n > 0 {
		slog.Info("backlog has pending activities from a previous run", "pending", n)
	}

	transport := delivery.NewHTTPTransport(
		cfg.Agent.ServerURL,
		cfg.Agent.Auth.Header,
		cfg.Agent.Auth.Key(),
		cfg.Agent.RequestTimeout,
	)
	policy := delivery.RetryPolicy{
		MaxAttempts: cfg.Agent.Retry.MaxAttempts,
		Delay:       cfg.Agent.Retry.Delay,
	}
	client := delivery.NewClient(transport, policy, queue,
		cfg.Agent.Escalation.Threshold, cfg.Agent.Escalation.Cooldown)

	// Watch the config file and hand valid rewrites to the main loop, which
	// applies what can change in flight. The buffer of one keeps only the
	// most recent rewrite when saves arrive faster than ticks.
	reloads := make(chan *config.Config, 1)
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			select {
			case reloads <- updated:
			default:
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Local read-only status endpoint.
	if cfg.Agent.StatusAddr != "" {
		go serveStatus(cfg.Agent.StatusAddr, client)
	}

	// Capture-and-report loop: one snapshot per tick, delivered synchronously
	// so backlog ordering stays sound. Per-tick errors are logged, never fatal.
	ticker := time.NewTicker(cfg.Agent.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdown(client, queue)
			return

		case updated := <-reloads:
			// The capture interval is the one setting applied without a
			// restart; transport, auth, and backlog are bound at startup.
			if updated.Agent.Interval != cfg.Agent.Interval {
				slog.Info("applying new capture interval",
					"old", cfg.Agent.Interval, "new", updated.Agent.Interval)
				ticker.Reset(updated.Agent.Interval)
			} else {
				slog.Info("config change staged — takes effect on restart")
			}
			cfg = updated

		case <-ticker.C:
			snap, err := collector.Collect(ctx)
			if err != nil {
				slog.Warn("collect failed — skipping tick", "err", err)
				continue
			}
			delivered, err := client.Send(ctx, snap)
			switch {
			case err != nil:
				slog.Error("snapshot permanently dropped", "err", err)
			case delivered:
				slog.Info("report sent", "client_id", snap.ClientID)
			default:
				slog.Warn("report queued offline", "backlog_size", queue.Size())
			}
		}
	}
}

// shutdown makes one best-effort flush attempt with a short timeout.
// Anything still queued stays durably on disk for the next run.
func shutdown(client *delivery.Client, queue *backlog.Backlog) {
	slog.Info("sentinel-agent shutting down", "backlog_size", queue.Size())

	if queue.Size() == 0 {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	if client.Flush(flushCtx) {
		slog.Info("final flush drained the backlog")
	} else {
		slog.Warn("final flush incomplete — entries remain queued for next start",
			"backlog_size", queue.Size())
	}
}

// serveStatus exposes the delivery state on a local port for health probes.
func serveStatus(addr string, client *delivery.Client) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(client.Stats()) //nolint:errcheck
	})
	slog.Info("status endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("status endpoint stopped", "err", err)
	}
}
