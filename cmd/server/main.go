package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/swimresults/internal/config"
	"github.com/JonMunkholm/swimresults/internal/core"
	"github.com/JonMunkholm/swimresults/internal/events"
	"github.com/JonMunkholm/swimresults/internal/logging"
	"github.com/JonMunkholm/swimresults/internal/metrics"
	"github.com/JonMunkholm/swimresults/internal/store"
	"github.com/JonMunkholm/swimresults/internal/web"
	"github.com/JonMunkholm/swimresults/internal/workbook"
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
	workbook.MaxFileSize = cfg.Upload.MaxFileSize

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled,
		"redis_enabled", cfg.Redis.URL != "",
	)

	rules, err := config.LoadRules(cfg.Matching.RulesFile)
	if err != nil {
		slog.Error("failed to load matching rules", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := store.Connect(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Database.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	serviceOpts := []core.Option{
		core.WithRules(rules),
		core.WithSheetWorkers(cfg.Upload.SheetWorkers),
		core.WithTimeout(cfg.Upload.Timeout),
		core.WithLimiter(core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)),
	}
	serverOpts := []web.Option{
		web.WithHealthCheck("database", st.Ping),
		web.WithUploadHistory(st),
	}

	if cfg.Metrics.Enabled {
		recorder := metrics.NewRecorder(metrics.WithNamespace(cfg.Metrics.Namespace))
		serviceOpts = append(serviceOpts, core.WithRecorder(recorder))
		serverOpts = append(serverOpts, web.WithMetricsHandler(recorder.Handler()))
	}

	if cfg.Redis.URL != "" {
		pub, err := events.NewRedisPublisher(ctx, cfg.Redis.URL, cfg.Redis.Stream, cfg.Redis.MaxLen)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		slog.Info("publishing committed meets", "stream", cfg.Redis.Stream)
		serviceOpts = append(serviceOpts, core.WithPublisher(pub))
		serverOpts = append(serverOpts, web.WithHealthCheck("redis", pub.HealthCheck))
	}

	service := core.NewService(st, serviceOpts...)
	server := web.NewServer(service, cfg, serverOpts...)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for running previews and commits before closing the pool.
		if status := service.UploadLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
