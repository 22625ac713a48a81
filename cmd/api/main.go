package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/emotion/internal/api"
	"github.com/your-org/emotion/internal/api/handlers"
	"github.com/your-org/emotion/internal/api/ws"
	"github.com/your-org/emotion/internal/config"
	"github.com/your-org/emotion/internal/emotion"
	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/observability"
	"github.com/your-org/emotion/internal/queue"
	"github.com/your-org/emotion/internal/relay"
	"github.com/your-org/emotion/internal/storage"
	"github.com/your-org/emotion/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	instanceID := uuid.NewString()
	slog.Info("starting emotion API service", "port", cfg.Server.Port, "instance", instanceID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("open record store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cache := emotion.NewSummaryCache(cfg.Dashboard.CacheSizeMB, cfg.Dashboard.CacheTTL)
	manager := emotion.NewStateManager(store, cache)
	aggregator := emotion.NewAggregator(store, cache, cfg.Dashboard.DeviceName)
	frames := relay.New(cfg.Relay.PollInterval)

	hub := ws.NewHub(cfg.Server.AllowedOrigins)
	go hub.Run(ctx)

	checks := map[string]handlers.Check{"database": store.Ping}

	routerCfg := api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DefaultDevice:  cfg.Dashboard.DefaultDevice,
		Manager:        manager,
		Summaries:      aggregator,
		Relay:          frames,
		Hub:            hub,
	}

	// Replica fan-out
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL, instanceID)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		consumer, err := queue.NewConsumer(cfg.NATS.URL, instanceID)
		if err != nil {
			slog.Error("create nats consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		if err := consumer.ConsumeFrames(func(msg models.FrameMessage) {
			frames.Store(msg.DeviceID, msg.Data, msg.CapturedAt)
		}); err != nil {
			slog.Error("consume frames", "error", err)
			os.Exit(1)
		}
		if err := consumer.ConsumeEvents(func(evt dto.DashboardEvent) {
			aggregator.Invalidate(evt.DeviceID)
			hub.BroadcastEvent(evt)
		}); err != nil {
			slog.Error("consume events", "error", err)
			os.Exit(1)
		}

		routerCfg.Events = producer
		routerCfg.Frames = producer
		checks["nats"] = func(context.Context) error { return producer.Ping() }
	}

	// Latest-frame snapshots
	persisted := make(chan struct{})
	if cfg.MinIO.Endpoint == "" {
		close(persisted)
	} else {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}

		persister := relay.NewPersister(frames, minioStore, cfg.Relay.PersistInterval)
		if n, err := persister.Warm(ctx); err != nil {
			slog.Warn("warm relay from minio", "error", err)
		} else {
			slog.Info("relay warmed from minio", "devices", n)
		}
		go func() {
			defer close(persisted)
			persister.Run(ctx)
		}()

		checks["minio"] = minioStore.Ping
	}
	routerCfg.Checks = checks

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(routerCfg)

	// No WriteTimeout: MJPEG streams stay open for as long as the viewer watches.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	// Cancelling first ends open streams so Shutdown does not wait on them.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	select {
	case <-persisted:
	case <-shutdownCtx.Done():
		slog.Warn("frame persister did not finish before shutdown deadline")
	}

	slog.Info("API server stopped")
}
