package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"repairhub/internal/authz"
	"repairhub/internal/billing"
	"repairhub/internal/caching"
	"repairhub/internal/config"
	"repairhub/internal/handlers"
	"repairhub/internal/identity"
	"repairhub/internal/jobs"
	"repairhub/internal/middleware"
	"repairhub/internal/repositories"
	"repairhub/internal/storage"
	"repairhub/internal/subscription"
	"repairhub/internal/tokens"
	"repairhub/pkg/database"
)

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	subscription.SetPlanPriceID("monthly", cfg.MonthlyPriceID)
	subscription.SetPlanPriceID("yearly", cfg.YearlyPriceID)

	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	photos, err := storage.NewMinioPhotoStorage(cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatal("failed to initialize photo storage", zap.Error(err))
	}
	if err := photos.EnsureBucket(context.Background()); err != nil {
		logger.Warn("photo bucket check failed", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	storeRepo := repositories.NewStoreRepo(pool)
	customerRepo := repositories.NewCustomerRepo(pool)
	repairRepo := repositories.NewRepairRepo(pool)
	inventoryRepo := repositories.NewInventoryRepo(pool)

	// Services
	provider := identity.NewCredentialProvider(userRepo, cacheSvc)
	tokenSvc := tokens.NewTokenService(userRepo, cacheSvc, logger, cfg.JWTSecret, cfg.TokenTTL, cfg.RefreshTTL)
	resolver := subscription.NewResolver(storeRepo, cacheSvc, logger)
	processor := billing.NewHTTPProcessorClient(cfg.PaymentSecretKey, cfg.PaymentBaseURL)
	billingSvc := billing.NewService(storeRepo, userRepo, cacheSvc, processor, logger, cfg.PaymentWebhookSecret)

	// Handlers
	authHandlers := handlers.NewAuthHandlers(provider, tokenSvc, userRepo, storeRepo)
	userHandlers := handlers.NewUserHandlers(userRepo, cacheSvc)
	storeHandlers := handlers.NewStoreHandlers(storeRepo)
	billingHandlers := handlers.NewBillingHandlers(billingSvc, resolver)
	webhookHandlers := handlers.NewWebhookHandlers(billingSvc, logger)
	customerHandlers := handlers.NewCustomerHandlers(customerRepo, repairRepo)
	repairHandlers := handlers.NewRepairHandlers(repairRepo, photos)
	inventoryHandlers := handlers.NewInventoryHandlers(inventoryRepo)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, photos)
	navigationHandlers := handlers.NewNavigationHandlers(resolver)

	// Background jobs
	scheduler, err := jobs.NewScheduler(resolver, storeRepo, inventoryRepo, logger)
	if err != nil {
		logger.Fatal("failed to create job scheduler", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORS())

	// Public routes
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.POST("/auth/login", authHandlers.Login)
	e.POST("/auth/signup", authHandlers.Signup)
	e.POST("/auth/refresh", authHandlers.Refresh)
	e.POST("/webhooks/billing", webhookHandlers.HandleBillingWebhook)

	// Authenticated routes
	api := e.Group("/api/v1", middleware.JWTMiddleware(tokenSvc))
	api.POST("/auth/logout", authHandlers.Logout)
	api.GET("/auth/me", authHandlers.Me)
	api.GET("/navigation", navigationHandlers.GetNavigation)

	// Store management
	api.GET("/store", storeHandlers.GetMyStore)
	api.PUT("/store", storeHandlers.UpdateMyStore,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageSettings }))

	// Staff management
	users := api.Group("/users",
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageUsers }))
	users.GET("", userHandlers.ListUsers)
	users.GET("/:id", userHandlers.GetUser)
	users.PUT("/:id/role", userHandlers.UpdateRole)
	users.DELETE("/:id", userHandlers.DeleteUser)

	// Billing; admins reach this even with an inactive subscription.
	billingGroup := api.Group("/billing")
	billingGroup.GET("/plans", billingHandlers.GetPlans)
	billingGroup.GET("/subscription", billingHandlers.GetSubscription)
	billingGroup.POST("/checkout", billingHandlers.CreateCheckoutSession)
	billingGroup.POST("/portal", billingHandlers.CreatePortalSession)
	billingGroup.POST("/cancel", billingHandlers.CancelSubscription)

	// Subscription-gated domain routes
	gated := api.Group("", middleware.RequireActiveSubscription(resolver))

	customers := gated.Group("/customers",
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ViewClients }))
	customers.GET("", customerHandlers.ListCustomers)
	customers.GET("/:id", customerHandlers.GetCustomer)
	customers.GET("/:id/repairs", customerHandlers.ListCustomerRepairs)
	customers.POST("", customerHandlers.CreateCustomer,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageClients }))
	customers.PUT("/:id", customerHandlers.UpdateCustomer,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageClients }))
	customers.DELETE("/:id", customerHandlers.DeleteCustomer,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageClients }))

	repairs := gated.Group("/repairs")
	repairs.GET("", repairHandlers.ListRepairs)
	repairs.GET("/:id", repairHandlers.GetRepair)
	repairs.GET("/:id/photos", repairHandlers.GetPhotoURLs)
	repairs.POST("", repairHandlers.CreateRepair,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.CreateRepairs }))
	repairs.PUT("/:id", repairHandlers.UpdateRepair,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageRepairs }))
	repairs.PUT("/:id/status", repairHandlers.UpdateStatus)
	repairs.POST("/:id/photos", repairHandlers.UploadPhoto,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageRepairs || c.CreateRepairs }))
	repairs.DELETE("/:id", repairHandlers.DeleteRepair,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageRepairs }))

	inventory := gated.Group("/inventory",
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ViewInventory }))
	inventory.GET("", inventoryHandlers.ListItems)
	inventory.GET("/:id", inventoryHandlers.GetItem)
	inventory.POST("", inventoryHandlers.CreateItem,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageInventory }))
	inventory.PUT("/:id", inventoryHandlers.UpdateItem,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageInventory }))
	inventory.PUT("/:id/quantity", inventoryHandlers.AdjustQuantity,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageInventory }))
	inventory.DELETE("/:id", inventoryHandlers.DeleteItem,
		middleware.RequireCapability(func(c authz.CapabilitySet) bool { return c.ManageInventory }))

	// Platform operator routes
	admin := api.Group("/admin", middleware.RequirePlatformOperator())
	admin.GET("/stores", storeHandlers.ListStores)
	admin.GET("/stores/:id", storeHandlers.GetStore)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
