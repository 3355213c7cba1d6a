package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/bulkbook/internal/booking"
	"github.com/JonMunkholm/bulkbook/internal/config"
	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/JonMunkholm/bulkbook/internal/history"
	"github.com/JonMunkholm/bulkbook/internal/logging"
	"github.com/JonMunkholm/bulkbook/internal/metrics"
	"github.com/JonMunkholm/bulkbook/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"booking_api", cfg.Booking.BaseURL,
		"max_count", cfg.Session.MaxCount,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"history_enabled", cfg.Database.Enabled(),
	)

	ctx := context.Background()

	var (
		recorder core.OutcomeRecorder
		opts     []web.Option
	)
	if cfg.Database.Enabled() {
		pool, err := history.NewPool(ctx, history.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := history.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to migrate submission history", "error", err)
			os.Exit(1)
		}
		recorder = store
		opts = append(opts, web.WithHistory(store))
		slog.Info("submission history enabled")
	}

	var m *metrics.Manager
	if cfg.Metrics.Enabled {
		m = metrics.NewManager()
		opts = append(opts, web.WithMetrics(m))
	}

	client := booking.NewClient(booking.Config{
		BaseURL: cfg.Booking.BaseURL,
		Path:    cfg.Booking.Path,
		Timeout: cfg.Booking.HTTPTimeout,
		Token:   cfg.Booking.Token,
	}, nil)
	slog.Info("booking endpoint", "url", client.Endpoint())

	svcCfg := core.ServiceConfig{
		DefaultCount:         cfg.Session.DefaultCount,
		MaxCount:             cfg.Session.MaxCount,
		DefaultCategory:      cfg.Session.DefaultCategory,
		SessionTTL:           cfg.Session.TTL,
		MaxFileSize:          cfg.Upload.MaxFileSize,
		MaxConcurrentImports: cfg.Upload.MaxConcurrent,
		ImportWait:           cfg.Upload.MaxWaitTime,
	}
	var service *core.Service
	if m != nil {
		service = core.NewService(svcCfg, client, recorder, m)
	} else {
		service = core.NewService(svcCfg, client, recorder, nil)
	}

	server := web.NewServer(service, cfg, opts...)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionJanitor(jobCtx, cfg.Session.SweepInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
