package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safewatch/signaling/config"
	"github.com/safewatch/signaling/internal/handlers"
	"github.com/safewatch/signaling/internal/middleware"
	"github.com/safewatch/signaling/internal/observability"
	"github.com/safewatch/signaling/internal/redis"
	"github.com/safewatch/signaling/internal/signal"
	"github.com/safewatch/signaling/internal/sms"
	"github.com/safewatch/signaling/internal/store"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.LogLevel)
	metrics := observability.NewMetrics()

	// Flat-file records (subscriptions, admins, app config, receipts)
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open data store")
	}

	registry := signal.NewRegistry()
	hub := signal.NewHub(registry, metrics, log)

	// Optional Redis presence mirror
	if cfg.Redis.Enabled() {
		client, err := redis.New(context.Background(), cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer client.Close()
		hub.SetPresence(redis.NewPresence(client, log))
		log.Info().Msg("Redis presence mirror enabled")
	}

	// Optional server-side SMS delivery
	var smsSender signal.SMSSender
	if cfg.Twilio.Enabled() {
		smsSender = sms.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
		log.Info().Msg("Twilio SMS service enabled")
	} else {
		log.Info().Msg("Twilio not configured, SMS will use device method")
	}

	correlator := signal.NewCorrelator(hub, smsSender, metrics, log)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "connections": registry.Count()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	// Saved receipt images for the admin panel
	router.Static("/receipts", st.ReceiptsDir())

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/subscribe", handlers.Subscribe(st, log))
		apiGroup.POST("/customer/login", handlers.CustomerLogin(st))

		adminGroup := apiGroup.Group("/admin")
		{
			adminGroup.POST("/login", handlers.AdminLogin(st, cfg.JWTSecret, log))
			adminGroup.GET("/config", handlers.GetAppConfig(st))
			adminGroup.POST("/config", handlers.SetAppConfig(st))

			auth := middleware.JWTAuth(cfg.JWTSecret)
			adminGroup.GET("/subscriptions", auth, handlers.ListSubscriptions(st))
			adminGroup.POST("/update-status", auth, handlers.UpdateSubscriptionStatus(st, log))
			adminGroup.POST("/change-password", auth, handlers.ChangeAdminPassword(st))
		}
	}

	// WebSocket signaling endpoint
	router.GET("/ws", handlers.Signaling(hub, correlator, cfg.MaxMessageBytes, log))

	log.Info().Str("port", cfg.Port).Msg("starting SafeWatch signaling server")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
