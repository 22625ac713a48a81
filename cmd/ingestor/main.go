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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/emotion/internal/config"
	"github.com/your-org/emotion/internal/emotion"
	"github.com/your-org/emotion/internal/ingest"
	"github.com/your-org/emotion/internal/observability"
	"github.com/your-org/emotion/internal/queue"
	"github.com/your-org/emotion/internal/storage"
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
	slog.Info("starting emotion MQTT ingestor", "broker", cfg.MQTT.Broker)

	if cfg.MQTT.Broker == "" {
		slog.Error("mqtt.broker is required for the ingestor")
		os.Exit(1)
	}
	if cfg.Database.Driver == "sqlite" {
		slog.Warn("ingestor shares a sqlite file with the API; prefer postgres for multi-process setups",
			"path", cfg.Database.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("open record store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Summaries are cached by the API replicas; they invalidate on the events published below.
	manager := emotion.NewStateManager(store, nil)

	var bridge *ingest.Bridge
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL, cfg.MQTT.ClientID)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		bridge = ingest.NewBridge(cfg.MQTT, manager, producer, producer)
	} else {
		slog.Warn("nats.url not set; frames received over mqtt are dropped and dashboards are not notified")
		bridge = ingest.NewBridge(cfg.MQTT, manager, nil, nil)
	}

	if err := bridge.Start(ctx); err != nil {
		slog.Error("start mqtt bridge", "error", err)
		os.Exit(1)
	}
	defer bridge.Stop()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		slog.Info("ingestor metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down ingestor...")
	cancel()
	slog.Info("ingestor stopped")
}
