package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
	"github.com/nwchenyw/tw-live-frontend/internal/health"
	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/poller"
	"github.com/nwchenyw/tw-live-frontend/internal/server"
	"github.com/nwchenyw/tw-live-frontend/internal/store"
	"github.com/nwchenyw/tw-live-frontend/internal/store/redisstore"
	"github.com/nwchenyw/tw-live-frontend/internal/store/sqlite"
	"github.com/nwchenyw/tw-live-frontend/internal/youtube"
	"github.com/nwchenyw/tw-live-frontend/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file (empty for defaults and environment only)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting live monitor backend")
	log.WithFields(logrus.Fields{
		"config_path": configPath,
		"storage":     cfg.Storage.Driver,
	}).Debug("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, extra, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	checker := youtube.NewChecker(cfg.Polling)
	p := poller.New(st, checker, cfg.Polling, log)

	srv := server.New(&cfg.Server, log, st, cfg.Storage.Driver)
	srv.RegisterHealthChecker(health.NewPollerChecker(p))
	for _, c := range extra {
		srv.RegisterHealthChecker(c)
	}

	if configPath != "" {
		err := config.Watch(configPath, log, func(next *config.Config) {
			base, jitter := next.Polling.PollSeconds()
			p.SetInterval(time.Duration(base)*time.Second, time.Duration(jitter)*time.Second)
		})
		if err != nil {
			log.WithError(err).Warn("Config hot reload disabled")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	go p.Run(ctx)

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("Server error")
	}

	if err := st.Close(); err != nil {
		log.WithError(err).Error("Failed to close store")
	}

	log.Info("Server shutdown complete")
}

// openStore connects the configured backend. Redis is checked for
// reachability and writability before the server starts.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Store, []health.Checker, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		st, err := sqlite.New(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.Storage.SQLitePath).Info("Opened SQLite store")
		return st, nil, nil

	default:
		client := redisstore.NewClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}

		testKey := cfg.Redis.KeyPrefix + "startup:test"
		if err := client.Set(ctx, testKey, "1", 0).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis is not writable: %w", err)
		}
		client.Del(ctx, testKey)
		log.Info("Connected to Redis successfully")

		st := redisstore.New(client, cfg.Redis.KeyPrefix, log)
		return st, []health.Checker{health.NewRedisChecker(client)}, nil
	}
}

// startMetricsServer starts the Prometheus metrics server
func startMetricsServer(cfg config.MetricsConfig, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
