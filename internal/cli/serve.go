package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailtriage/config"
	"mailtriage/internal/api"
	"mailtriage/internal/classify"
	"mailtriage/internal/folder"
	"mailtriage/internal/graph"
	"mailtriage/internal/mq"
	"mailtriage/internal/queue"
	"mailtriage/internal/service"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/otel"
	pkgredis "mailtriage/pkg/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poller and the approval API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewLogger(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer log.Sync()

	log.Info("Starting mail triage agent...",
		zap.String("version", Version),
		zap.String("tenant_id", cfg.Graph.TenantID),
		zap.Int("poll_seconds", cfg.Poller.PollSeconds),
		zap.String("folder_cache", cfg.FolderCache.Backend),
		zap.Bool("llm_enabled", cfg.LLM.Enabled),
	)
	if cfg.LLM.Enabled {
		log.Warn("LLM classification is enabled in config but not implemented; using keyword rules")
	}

	// OpenTelemetry
	otelShutdown, err := otel.Init(cmd.Context(), otel.Config{
		Enabled:        cfg.Otel.Enabled,
		ServiceName:    "mail-triage-agent",
		ServiceVersion: Version,
		Endpoint:       cfg.Otel.Endpoint,
		Insecure:       cfg.Otel.Insecure,
		SampleRatio:    cfg.Otel.SampleRatio,
	}, log)
	if err != nil {
		log.Error("Failed to init OpenTelemetry", zap.Error(err))
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Classifier
	buildings := classify.LoadBuildings(cfg.BuildingsFile, log)
	classifier := classify.NewClassifier(buildings)

	// Graph
	graphClient := graph.NewClient(cfg.Graph, log).WithMaxPages(cfg.Poller.MaxPages)

	// Folder cache
	var cache folder.Cache
	switch cfg.FolderCache.Backend {
	case "memory":
		cache = folder.NewMemoryCache(cfg.FolderCache.TTL)
	case "redis":
		rdb, err := pkgredis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Error("Failed to connect to redis", zap.Error(err))
			return err
		}
		defer rdb.Close()
		cache = folder.NewRedisCache(rdb, cfg.FolderCache.TTL)
	}
	resolver := folder.NewResolver(graphClient, cache, log)

	// Events
	events, closeEvents, err := mq.Connect(cfg.MQ.URL, log)
	if err != nil {
		log.Error("Failed to init MQ publisher", zap.Error(err))
		return err
	}
	defer closeEvents()

	// Services
	pending := queue.NewPendingQueue()
	router := service.NewRouter(graphClient, resolver, pending, events, log)
	approval := service.NewApproval(graphClient, resolver, pending, events, cfg.Folders.Root, log)
	poller := service.NewPoller(graphClient, resolver, classifier, router, service.PollerConfig{
		Root:            cfg.Folders.Root,
		Properties:      cfg.Folders.Properties,
		Operational:     cfg.Folders.Operational,
		NeedsReview:     cfg.Folders.NeedsReview,
		Interval:        cfg.PollInterval(),
		IsolateFailures: cfg.Poller.IsolateFailures,
	}, log)

	pollerDone := make(chan error, 1)
	go func() {
		pollerDone <- poller.Run(ctx)
	}()

	// HTTP Server
	httpRouter := api.NewRouter(
		api.NewTriageHandler(approval, log),
		func() bool { return poller.State() == service.StatePolling },
		graphClient.BreakerState,
		cfg.JWT.Secret,
	)
	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           httpRouter.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("Mail triage agent is running",
		zap.Int("buildings", len(buildings)),
		zap.Bool("jwt_enabled", cfg.JWT.Secret != ""),
		zap.Bool("events_enabled", cfg.MQ.URL != ""),
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("Shutting down mail triage agent gracefully...", zap.String("signal", sig.String()))
		cancel()
		<-pollerDone
	case err := <-pollerDone:
		if err != nil {
			log.Error("Poller stopped with error", zap.Error(err))
			runErr = fmt.Errorf("poller: %w", err)
		}
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
		runErr = fmt.Errorf("http server: %w", err)
		cancel()
		<-pollerDone
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Mail triage agent shutdown complete")
	return runErr
}
