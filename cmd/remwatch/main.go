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

	"github.com/terraclean-dev/remwatch/internal/aggregate"
	"github.com/terraclean-dev/remwatch/internal/api"
	"github.com/terraclean-dev/remwatch/internal/config"
	"github.com/terraclean-dev/remwatch/internal/dataset"
	"github.com/terraclean-dev/remwatch/internal/events"
	"github.com/terraclean-dev/remwatch/internal/provider"
	"github.com/terraclean-dev/remwatch/internal/ranking"
	"github.com/terraclean-dev/remwatch/internal/rotation"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)

	deadline, err := cfg.DeadlineDate()
	if err != nil {
		logger.Error("invalid program deadline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Events (optional)
	var eventsClient events.Client
	if cfg.Events.URL != "" {
		ec, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to event stream, running without events", "error", err)
		} else {
			eventsClient = ec
			defer ec.Close()
			logger.Info("connected to event stream")
		}
	}

	// Every successful snapshot swap announces itself, whether the reload came
	// from the file watcher, the periodic refresh, or an admin request.
	publishReload := func(snap *dataset.Snapshot) {
		if eventsClient == nil {
			return
		}
		err := eventsClient.Publish(events.SubjectDatasetReloaded, events.DatasetReloadedEvent{
			Records:   len(snap.Records),
			Agencies:  len(snap.Agencies()),
			LoadedAt:  snap.LoadedAt,
			Timestamp: time.Now(),
		})
		if err != nil {
			logger.Warn("failed to publish reload event", "error", err)
		}
	}

	// Dataset provider
	var dataProvider provider.Provider
	switch cfg.Data.Source {
	case "postgres":
		pg, err := provider.NewPostgresProvider(ctx, cfg.Data.PostgresURL, 30*time.Second, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		pg.OnSwap(publishReload)
		if err := pg.Start(ctx); err != nil {
			logger.Error("failed to start postgres provider", "error", err)
			os.Exit(1)
		}
		defer pg.Stop()
		dataProvider = pg
		logger.Info("dataset source: postgres")
	default:
		csvProvider := provider.NewCSVProvider(cfg.Data.CSVPath, cfg.WatchDebounce(), logger)
		csvProvider.OnSwap(publishReload)
		if err := csvProvider.Start(ctx, cfg.Data.Watch); err != nil {
			logger.Error("failed to start csv provider", "error", err)
			os.Exit(1)
		}
		defer csvProvider.Stop()
		dataProvider = csvProvider
		logger.Info("dataset source: csv", "path", cfg.Data.CSVPath, "watch", cfg.Data.Watch)
	}

	// Core engine
	weights := ranking.WeightSet{
		Completion: cfg.Scoring.Weights.Completion,
		Timeline:   cfg.Scoring.Weights.Timeline,
	}
	if err := weights.Validate(); err != nil {
		logger.Error("invalid scoring weights", "error", err)
		os.Exit(1)
	}
	aggregator := aggregate.New(deadline, cfg.Program.FallbackWindowDays, logger)
	rankEngine := ranking.NewEngine(weights, cfg.Scoring.MinCompletionPct, deadline, logger)

	// Rotation
	sched := rotation.NewScheduler(dataProvider, aggregator, rankEngine, eventsClient, cfg.RotationInterval(), cfg.Display.TopSites, logger)
	sched.Start(ctx)
	defer sched.Stop()
	logger.Info("rotation scheduler started", "interval", cfg.RotationInterval())

	// API server
	router := api.NewRouter(dataProvider, aggregator, rankEngine, sched, cfg.Server.AdminToken, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsRouter := api.NewMetricsRouter()
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
