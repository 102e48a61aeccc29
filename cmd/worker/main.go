package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linearcast/playout/internal/autoextend"
	"github.com/linearcast/playout/internal/cache"
	"github.com/linearcast/playout/internal/config"
	"github.com/linearcast/playout/internal/database"
	"github.com/linearcast/playout/internal/extender"
	"github.com/linearcast/playout/internal/lease"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/internal/notify"
	"github.com/linearcast/playout/internal/queue"
	"github.com/linearcast/playout/pkg/models"
)

func main() {
	log, err := logging.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db, log)

	// Redis backs the per-channel extension lease
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	leases := lease.New(redisCache.Client(), cfg.Extender.LeaseTTL)

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	ext := extender.New(repo, cfg.Extender, log)
	notifier := notify.New(cfg.Notify, log)

	// Metrics endpoint
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort)
	go func() {
		log.Infof("Starting metrics server on port %d", cfg.Server.MetricsPort)
		if err := metricsServer.Start(); err != nil {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down worker gracefully...")
		cancel()
	}()

	handler := &jobHandler{
		leases:         leases,
		extender:       ext,
		notifier:       notifier,
		log:            log,
		heldRetryDelay: 2 * time.Second,
	}

	// Runway monitor keeps schedules from running dry
	var monitor *autoextend.Monitor
	if cfg.AutoExtend.Enabled {
		monitor = autoextend.New(repo, q, cfg.AutoExtend, log)
		monitor.Start()
	}

	// Start consuming jobs
	log.Info("Worker started, waiting for extension jobs...")
	if err := q.ConsumeExtend(ctx, func(req *models.ExtendRequest) error {
		return handler.Handle(ctx, req)
	}); err != nil {
		log.Fatalf("Failed to consume jobs: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()

	if monitor != nil {
		monitor.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shut down metrics server")
	}

	log.Info("Worker stopped")
}
