package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/cache"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/handlers"
	"github.com/tourhub/booking-backend/internal/middleware"
	"github.com/tourhub/booking-backend/internal/registry"
	"github.com/tourhub/booking-backend/internal/services"
	"github.com/tourhub/booking-backend/pkg/sms"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting TourHub booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.EnsureSchema(ctx, db)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to apply schema: %v", err)
		}
		logger.Info("Database schema is up to date")
	}

	// Redis backs the booked-dates cache and the presence registry when configured
	var (
		redisClient *redis.Client
		datesCache  services.BookedDatesStore
		presence    registry.Registry    = registry.NewMemoryRegistry()
		rateCounter services.RateCounter = cache.NewMemoryRateCounter()
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unreachable, booked dates will be served from the database")
		}

		datesCache = cache.NewBookedDatesCache(redisClient, cfg.Redis.BookedDatesTTL)
		presence = registry.NewRedisRegistry(redisClient, cfg.Redis.PresenceTTL)
		rateCounter = cache.NewRedisRateCounter(redisClient)
		logger.Info("Redis cache and presence registry enabled")
	} else {
		logger.Info("REDIS_URL not set, using in-process presence registry and no booked dates cache")
	}

	// Initialize repositories
	hotelRepo := database.NewHotelBookingRepository(db)
	tourRepo := database.NewTourBookingRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db, logger)

	// Notification channels
	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize notifications: %v", err)
	}
	dispatcher := services.NewAsyncDispatcher(notifier, cfg.Notification.Timeout, logger)

	// Initialize services
	zaloPay := services.NewZaloPayService(&cfg.Payment, auditRepo, logger)
	if !zaloPay.IsConfigured() {
		logger.Warn("ZaloPay credentials missing, payment URLs are placeholders")
	}
	orders := services.NewOrderBuilder(&cfg.Payment, hotelRepo, tourRepo)
	detector := services.NewConflictDetector(hotelRepo, datesCache, logger)
	bookingService := services.NewBookingService(hotelRepo, tourRepo, detector, orders, zaloPay, dispatcher, &cfg.Booking, logger)
	rateLimiter := services.NewRateLimitService(rateCounter, cfg.RateLimit, logger)
	reconciler := services.NewReconciler(zaloPay, hotelRepo, tourRepo, auditRepo, detector, dispatcher, logger)

	sweeper := services.NewHoldSweeper(bookingService, cfg.Booking.SweepInterval, logger)
	sweeper.Start()

	cronService := services.NewCronService(auditRepo, cfg.Jobs, logger)
	if cfg.Jobs.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	// Initialize handlers
	tourHandler := handlers.NewTourBookingHandler(bookingService, logger)
	hotelHandler := handlers.NewHotelBookingHandler(bookingService, rateLimiter, logger)
	callbackHandler := handlers.NewPaymentCallbackHandler(reconciler, logger)
	presenceHandler := handlers.NewPresenceHandler(presence, logger)
	auditHandler := handlers.NewPaymentAuditHandler(auditRepo, logger)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db, redisClient))

	v1 := router.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", tourHandler.CreateBooking)
			bookings.POST("/callback", callbackHandler.HandleCallback)
			bookings.GET("/room/:roomId/booked-dates", hotelHandler.BookedDates)
			bookings.GET("/:id", tourHandler.GetBooking)
			bookings.POST("/:id/confirm", tourHandler.ConfirmBooking)
			bookings.POST("/:id/cancel", tourHandler.CancelBooking)
			bookings.DELETE("/:id", tourHandler.DeleteBooking)
		}

		hotels := v1.Group("/hotels")
		{
			hotels.POST("/payment", hotelHandler.CreatePayment)
			hotels.GET("/bookings/:id", hotelHandler.GetBooking)
			hotels.POST("/bookings/:id/payment", hotelHandler.RetryPayment)
			hotels.POST("/bookings/:id/cancel", hotelHandler.CancelBooking)
			hotels.PUT("/admin/checkoutBookingHotel/:id", hotelHandler.CheckoutBooking)
			hotels.DELETE("/admin/deleteBookingHotel/:id", hotelHandler.DeleteBooking)
		}

		presenceRoutes := v1.Group("/presence")
		{
			presenceRoutes.PUT("/:userId", presenceHandler.Register)
			presenceRoutes.DELETE("/:userId", presenceHandler.Unregister)
			presenceRoutes.GET("/:userId", presenceHandler.Lookup)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/payments/attention", auditHandler.ListNeedingAttention)
			admin.GET("/payments/bookings/:id", auditHandler.ListByBooking)
			admin.POST("/holds/sweep", func(c *gin.Context) {
				count, err := bookingService.CancelAbandonedHolds(c.Request.Context())
				if err != nil {
					logger.WithError(err).Error("Manual hold sweep failed")
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "sweep failed"})
					return
				}
				c.JSON(http.StatusOK, gin.H{"success": true, "cancelled": count})
			})
			admin.GET("/jobs", func(c *gin.Context) {
				c.JSON(http.StatusOK, cronService.GetJobStatus())
			})
			admin.POST("/jobs/purge-audits", func(c *gin.Context) {
				cronService.RunPurgeNow()
				c.JSON(http.StatusOK, gin.H{"success": true, "message": "Audit purge triggered"})
			})
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Payment.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	sweeper.Stop()
	if cfg.Jobs.Enabled {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	if err := dispatcher.Wait(ctx); err != nil {
		logger.Warnf("Pending notifications dropped: %v", err)
	}

	logger.Info("Server exited successfully")
}

// buildNotifier assembles the configured notification channels
func buildNotifier(cfg *config.Config, logger *logrus.Logger) (services.Notifier, error) {
	var channels services.MultiNotifier
	for _, channel := range cfg.Notification.Channels {
		switch channel {
		case "log":
			channels = append(channels, services.NewLogNotifier(logger))
		case "sms":
			gateway := sms.NewESMSGateway(sms.ESMSConfig{
				APIURL:    cfg.SMS.APIURL,
				APIKey:    cfg.SMS.APIKey,
				SecretKey: cfg.SMS.SecretKey,
				Brandname: cfg.SMS.Brandname,
				SMSType:   cfg.SMS.SMSType,
				Timeout:   cfg.Notification.Timeout,
			})
			channels = append(channels, services.NewSMSNotifier(gateway, logger))
		case "sqs":
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			client, err := services.NewSQSClient(ctx, cfg.Notification)
			cancel()
			if err != nil {
				return nil, err
			}
			channels = append(channels, services.NewSQSNotifier(client, cfg.Notification.SQSQueueURL))
		}
		logger.WithField("channel", channel).Info("Notification channel enabled")
	}
	return channels, nil
}

// healthCheckHandler reports database and cache reachability
func healthCheckHandler(db database.Pinger, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		cacheStatus := "disabled"
		if redisClient != nil {
			cacheStatus = "healthy"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				cacheStatus = "degraded"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"cache":     cacheStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
