package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linearcast/playout/internal/cache"
	"github.com/linearcast/playout/internal/config"
	"github.com/linearcast/playout/internal/database"
	"github.com/linearcast/playout/internal/locator"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/middleware"
	"github.com/linearcast/playout/internal/playout"
	"github.com/linearcast/playout/internal/queue"
	"github.com/linearcast/playout/internal/storage"
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

	// Initialize channel cache
	channelCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer channelCache.Close()

	// Initialize asset store
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Playout pipeline: locator -> resolver -> session manager
	loc := locator.New(stor.PublicURL)
	resolver := playout.NewResolver(repo, loc, cfg.Playout, log)
	sessions := playout.NewManager(resolver, log)

	api := &API{
		channels:  repo,
		timeline:  repo,
		publisher: q,
		assets:    stor,
		resolver:  resolver,
		sessions:  sessions,
		cache:     channelCache,
		cacheTTL:  cfg.Playout.ChannelCacheTTL,
		log:       log,
	}

	// Every namespace must have its store and a standby asset before
	// evaluations start handing out standby URLs.
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		checkStandbyAssets(ctx, repo, stor, cfg.Playout.StandbyKey, log)
		cancel()
	}

	router := setupRouter(api, cfg.Server, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown: stop accepting requests, then cancel every
	// outstanding session timer.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	sessions.CloseAll()
	log.Info("Server stopped")
}

// checkStandbyAssets ensures each channel namespace has a backing store
// and warns about namespaces whose standby asset is missing. A missing
// standby turns every later fallback into an error-state decision, so
// it is worth knowing at startup rather than mid-broadcast.
func checkStandbyAssets(ctx context.Context, channels ChannelSource, assets AssetStore, standbyKey string, log *logging.Logger) {
	list, err := channels.ListChannels(ctx)
	if err != nil {
		log.WithError(err).Warn("Skipping standby asset check, channel list unavailable")
		return
	}

	for _, ch := range list {
		chLog := log.WithChannelID(ch.ID)

		if err := assets.EnsureStore(ctx, ch.Namespace); err != nil {
			chLog.WithError(err).Warn("Failed to ensure namespace store")
			continue
		}

		exists, err := assets.StandbyExists(ctx, ch.Namespace, standbyKey)
		if err != nil {
			chLog.WithError(err).Warn("Failed to check standby asset")
			continue
		}
		if !exists {
			chLog.Warnf("Standby asset %q missing in namespace %q", standbyKey, ch.Namespace)
		}
	}
}

func setupRouter(api *API, cfg config.ServerConfig, log *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))

	// Health check and metrics
	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Channels
		v1.GET("/channels", api.listChannels)
		v1.GET("/channels/:id/schedule", api.getSchedule)
		v1.GET("/channels/:id/playout", api.getPlayout)
		v1.POST("/channels/:id/extend", api.extendChannel)

		// Viewer sessions
		v1.POST("/channels/:id/sessions", api.createSession)
		v1.GET("/sessions/:id", api.getSession)
		v1.POST("/sessions/:id/events", api.postSessionEvent)
		v1.DELETE("/sessions/:id", api.deleteSession)
	}

	return router
}
