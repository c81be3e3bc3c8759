package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/observa-labs/traffic-sentinel/internal/api"
	"github.com/observa-labs/traffic-sentinel/internal/config"
	"github.com/observa-labs/traffic-sentinel/internal/dedup"
	"github.com/observa-labs/traffic-sentinel/internal/ensemble"
	"github.com/observa-labs/traffic-sentinel/internal/metrics"
	"github.com/observa-labs/traffic-sentinel/internal/models"
	"github.com/observa-labs/traffic-sentinel/internal/resolution"
	"github.com/observa-labs/traffic-sentinel/internal/simulate"
	"github.com/observa-labs/traffic-sentinel/internal/store"
	"github.com/observa-labs/traffic-sentinel/internal/stream"
	"github.com/observa-labs/traffic-sentinel/internal/utils"
	"github.com/observa-labs/traffic-sentinel/internal/ws"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting traffic-sentinel", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var dedupeStore dedup.Store = dedup.NewMemoryStore()
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		valkey, err := dedup.NewValkeyStore(dedup.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey unavailable, deduplicating in memory", slog.Any("error", err))
		} else {
			dedupeStore = valkey
		}
	}
	defer dedupeStore.Close()

	detectionStore, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Error("failed to open detection store", slog.Any("error", err))
		os.Exit(1)
	}
	defer detectionStore.Close()

	resolutions, err := resolution.NewEngine(cfg.Resolutions.Path, logger)
	if err != nil {
		logger.Error("failed to load resolution pack", slog.Any("error", err))
		os.Exit(1)
	}

	var model ensemble.ScoringModel = ensemble.NewBaselineModel()
	if cfg.Model.Kind == "remote" {
		model = ensemble.NewRemoteModel(cfg.Model.BaseURL, cfg.Model.ScorePath, cfg.Model.Timeout)
		logger.Info("using remote scoring model", slog.String("baseURL", cfg.Model.BaseURL))
	}
	detector := ensemble.NewDetector(model, logger)

	hub := ws.NewHub(logger)
	defer hub.Close()
	sinks := []stream.Sink{hub, detectionStore}

	newCoordinator := func(domain models.Domain, dedupe bool) *stream.Coordinator {
		return stream.NewCoordinator(stream.Config{
			Domain:               domain,
			WindowSize:           cfg.Window.Size,
			BaselineRequestCount: cfg.Detection.BaselineRequestCount,
			DedupePerKey:         dedupe,
			DedupeTTL:            cfg.Detection.DedupeTTL,
			QueueSize:            cfg.Window.QueueSize,
		}, detector, resolutions, dedupeStore, sinks, logger)
	}
	service := stream.NewService(
		newCoordinator(models.DomainLive, cfg.Detection.DedupeLive),
		newCoordinator(models.DomainSimulation, cfg.Detection.DedupeSimulation),
		logger,
	)
	defer service.Close()

	handlers := api.NewHandlers(service, detectionStore, hub, hub, logger)
	server := api.NewServer(cfg.Server, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Simulator.Enabled {
		generator, err := simulate.NewGenerator(simulate.Config{
			Profile:     simulate.Profile(cfg.Simulator.Profile),
			Interval:    cfg.Simulator.Interval,
			AnomalyRate: cfg.Simulator.AnomalyRate,
			Seed:        cfg.Simulator.Seed,
		}, service, logger)
		if err != nil {
			logger.Error("failed to start simulator", slog.Any("error", err))
			os.Exit(1)
		}
		go generator.Run(ctx)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("traffic-sentinel stopped")
}
