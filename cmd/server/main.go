package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/makebelieve-sk/Messenger-sub000/internal/cache"
	"github.com/makebelieve-sk/Messenger-sub000/internal/config"
	"github.com/makebelieve-sk/Messenger-sub000/internal/database"
	"github.com/makebelieve-sk/Messenger-sub000/internal/handlers"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/metrics"
	"github.com/makebelieve-sk/Messenger-sub000/internal/middleware"
	"github.com/makebelieve-sk/Messenger-sub000/internal/store"
	"github.com/makebelieve-sk/Messenger-sub000/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables; production reads from the real environment
	_ = godotenv.Load()

	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("Messenger gateway starting",
		zap.String("addr", cfg.Addr),
		zap.String("environment", cfg.Environment))

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	db, err := database.Initialize(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is used for last-seen bookkeeping; the gateway still serves
	// connections without it
	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		logger.Log.Warn("Redis unavailable, last-seen tracking disabled", zap.Error(err))
		redisClient = nil
	}
	defer redisClient.Close()

	metrics.Initialize()

	userStore := store.NewUserStore(db)
	callStore := store.NewCallStore(db)

	// Socket layer
	registry := websocket.NewRegistry()
	relay := websocket.NewRelay(registry, websocket.RelayConfig{AckTimeout: cfg.AckTimeout})
	hub := websocket.NewHub(registry, relay)
	hub.SetRateLimitConfig(websocket.RateLimitConfig{
		MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
		BurstSize:            cfg.BurstSize,
	})

	notifier := websocket.NewNotifier(relay)
	notifier.RegisterHandlers(hub)

	callRouter := websocket.NewCallRouter(relay, callStore)
	callRouter.RegisterHandlers(hub)

	presenceTracker := websocket.NewPresenceTracker(userStore, redisClient)
	presenceTracker.RegisterHooks(hub)

	go hub.Run()

	wsHandler := websocket.NewHandler(hub, userStore, redisClient)
	h := handlers.NewHandlers(db, redisClient, hub, notifier, callStore, userStore)

	// Router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // Configure properly for production
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		// WebSocket routes
		ws := api.Group("/ws")
		{
			ws.GET("", wsHandler.HandleWebSocket)
			ws.GET("/connect", wsHandler.HandleWebSocket)
			ws.GET("/stats", wsHandler.HandleStats)
			ws.POST("/online", wsHandler.HandleOnlineStatus)
			ws.POST("/presence", wsHandler.HandlePresence)
		}

		// Server-to-server notification push
		notify := api.Group("/notify")
		notify.Use(middleware.RedisRateLimitMiddleware(redisClient, 300, time.Minute))
		{
			notify.POST("/message", h.NotifyMessage)
			notify.POST("/chat-deleted", h.NotifyChatDeleted)
			notify.POST("/friend-request", h.NotifyFriendRequest)
			notify.POST("/read-status", h.NotifyReadStatus)
		}

		// Call records
		calls := api.Group("/calls")
		{
			calls.GET("/history/:user_id", h.GetCallHistory)
			calls.GET("/:room_id", h.GetCall)
		}
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		logger.Log.Info("Gateway listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hub.Shutdown(ctx); err != nil {
		logger.Log.Warn("WebSocket shutdown incomplete", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
