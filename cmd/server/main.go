package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avolkau/lavka-backend/config"
	"github.com/avolkau/lavka-backend/internal/app/controller"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/internal/app/service"
	"github.com/avolkau/lavka-backend/internal/db"
	"github.com/avolkau/lavka-backend/internal/middleware"
	"github.com/avolkau/lavka-backend/internal/router"
	"github.com/avolkau/lavka-backend/internal/scheduler"
	"github.com/avolkau/lavka-backend/pkg/logger"
	"github.com/avolkau/lavka-backend/pkg/payment/yookassa"
	"github.com/avolkau/lavka-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting LAVKA Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis is optional: token revocation and webhook dedupe degrade
	// gracefully without it
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, continuing without it", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redis.Close()
		}
	}

	// Payment provider client
	paymentClient, err := yookassa.NewClient(yookassa.Config{
		ShopID:    cfg.Payment.YooKassa.ShopID,
		SecretKey: cfg.Payment.YooKassa.SecretKey,
		BaseURL:   cfg.Payment.YooKassa.BaseURL,
		ReturnURL: cfg.Payment.YooKassa.ReturnURL,
		Currency:  cfg.Payment.YooKassa.Currency,
		Timeout:   cfg.Payment.YooKassa.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to configure payment provider", err)
	}
	paymentProvider := service.NewYooKassaProvider(paymentClient)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	categoryRepo := repository.NewCategoryRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	cartRepo := repository.NewCartRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	categoryService := service.NewCategoryService(categoryRepo)
	productService := service.NewProductService(productRepo, categoryRepo)
	cartService := service.NewCartService(cartRepo, productRepo)
	orderService := service.NewOrderService(orderRepo, paymentProvider, db.GetDB())

	// Initialize controllers
	authController := controller.NewAuthController(authService, cfg.JWT.AccessTokenExpiry)
	categoryController := controller.NewCategoryController(categoryService)
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	orderController := controller.NewOrderController(orderService)

	var webhookEvents controller.EventCache
	if redis.GetClient() != nil {
		webhookEvents = redis.NewEventCache()
	}
	webhookController := controller.NewWebhookController(orderService, cfg.Webhook.Token, webhookEvents)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Reconciliation report for orders without a payment session
	reconciliation := scheduler.NewReconciliationScheduler(orderRepo)
	if err := reconciliation.Start(); err != nil {
		logger.Warn("Reconciliation scheduler not running", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer reconciliation.Stop()
	}

	// Setup router
	r := router.NewRouter(
		authController,
		categoryController,
		productController,
		cartController,
		orderController,
		webhookController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
