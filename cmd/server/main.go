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
	"github.com/sirupsen/logrus"
	"github.com/roadpass/booking-backend/internal/config"
	"github.com/roadpass/booking-backend/internal/database"
	"github.com/roadpass/booking-backend/internal/handlers"
	"github.com/roadpass/booking-backend/internal/middleware"
	"github.com/roadpass/booking-backend/internal/services"
	"github.com/roadpass/booking-backend/pkg/jwt"
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

	logger.Info("Starting RoadPass Booking Backend")
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
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize repositories
	seatRepository := database.NewSeatReservationRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	walletRepository := database.NewWalletRepository(db)
	routeRepository := database.NewRouteRepository(db)
	userRepository := database.NewUserRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	paystackService := services.NewPaystackService(&cfg.Payment, logger)
	if !paystackService.IsConfigured() {
		logger.Warn("Payment gateway secret key not set; card payments will fail")
	}

	settlementService := services.NewSettlementService(
		seatRepository,
		bookingRepository,
		walletRepository,
		routeRepository,
		userRepository,
		paystackService,
		cfg.Fleet,
		logger,
	)

	sweepService := services.NewSweepService(bookingRepository, cfg.Sweep, logger)
	if cfg.Sweep.Enabled {
		if err := sweepService.Start(); err != nil {
			logger.Fatalf("Failed to start sweep service: %v", err)
		}
		defer sweepService.Stop()
	} else {
		logger.Info("Stale-booking sweep disabled")
	}

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(settlementService, logger)
	walletHandler := handlers.NewWalletHandler(settlementService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public booking routes (guest checkout allowed)
		bookings := v1.Group("/bookings")
		{
			bookings.POST("/initialize", bookingHandler.InitializePurchase)
			bookings.GET("/verify/:reference", bookingHandler.VerifyPurchase)
		}

		// Public seat availability
		v1.GET("/trips/seats", bookingHandler.SeatAvailability)

		// Wallet routes (protected)
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.AuthMiddleware(jwtService))
		{
			wallet.GET("", walletHandler.WalletSummary)
			wallet.POST("/pay", walletHandler.WalletPay)
		}

		// Admin routes (protected + role check)
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireRole(services.AdminRole))
		{
			admin.POST("/refunds", walletHandler.Refund)

			// Manual sweep trigger for operations
			admin.POST("/sweep/run", func(c *gin.Context) {
				marked, err := sweepService.RunOnce()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"message": "Sweep completed", "marked": marked})
			})
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "healthy"
		if err := db.Ping(); err != nil {
			dbStatus = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbStatus,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  dbStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
