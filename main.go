package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"studyhall-platform/config"
	"studyhall-platform/internal/api"
	"studyhall-platform/internal/audit"
	"studyhall-platform/internal/auth"
	"studyhall-platform/internal/cache"
	"studyhall-platform/internal/checkpoint"
	"studyhall-platform/internal/database"
	"studyhall-platform/internal/events"
	"studyhall-platform/internal/gateway"
	"studyhall-platform/internal/logging"
	"studyhall-platform/internal/subscription"
	"studyhall-platform/internal/vault"
	"studyhall-platform/internal/webhook"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Initialize database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := database.NewRepository(db)

	// Initialize redis cache. The platform survives without it, at the cost
	// of hitting postgres for every plan lookup and losing the checkpoint
	// epoch store.
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", "error", err)
			cacheService = nil
		} else {
			defer cacheService.Close()
			logger.Info("Redis cache initialized", "address", cfg.RedisConfig.Address)
		}
	}

	// Load signing secrets, with Vault overlaying the config fallbacks
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("Failed to initialize vault client: %v", err)
	}

	secrets, err := vaultClient.LoadSigningSecrets(ctx, vault.SigningSecrets{
		JWTSecret:        cfg.AuthConfig.JWTSecret,
		CheckpointSecret: cfg.AuthConfig.CheckpointSecret,
		ProviderSecret:   cfg.WebhookConfig.ProviderSecret,
		InternalSecret:   cfg.WebhookConfig.InternalSecret,
	})
	if err != nil {
		log.Fatalf("Failed to load signing secrets: %v", err)
	}
	if vaultClient.IsEnabled() {
		logger.Info("Signing secrets loaded from vault")
	}

	// Audit trail writes through zerolog for machine-readable compliance
	// output
	auditLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	trail := audit.NewTrail(repo, auditLogger)

	// Subscription lifecycle service
	subService := subscription.NewService(
		repo,
		trail,
		eventBus,
		subscription.Rules{GracePeriodDays: cfg.AccessConfig.GracePeriodDays},
		cfg.AccessConfig.TrialDays,
		logger,
	)
	if cacheService != nil {
		subService.SetPlanCache(cache.NewPlanCache(cacheService))
	}

	// Auth service; registration starts the trial through the lifecycle
	// service
	authService := auth.NewService(repo, auth.Config{
		JWTSecret:            secrets.JWTSecret,
		AccessTokenDuration:  cfg.AuthConfig.AccessTokenDuration,
		RefreshTokenDuration: cfg.AuthConfig.SessionDuration,
		MinPasswordLength:    cfg.AuthConfig.MinPasswordLength,
		TrialDays:            cfg.AccessConfig.TrialDays,
	}, subService)

	// Checkpoint codec and refresher. An unset signing secret is fatal in
	// production; every flag would verify against an empty key.
	codec, err := checkpoint.NewCodec(
		secrets.CheckpointSecret,
		cfg.AccessConfig.VolatileFlagTTL,
		cfg.AccessConfig.StableFlagTTL,
		cfg.ServerConfig.ProductionMode,
	)
	if err != nil {
		log.Fatalf("Failed to initialize checkpoint codec: %v", err)
	}

	var epochs checkpoint.EpochStore
	if cacheService != nil {
		epochs = cache.NewEpochStore(cacheService)
	}

	refresher := checkpoint.NewRefresher(subService, repo, codec, epochs, eventBus, logger)

	// System flags and the access gateway
	flags := cache.NewSystemFlagsService(cacheService, cfg.AccessConfig)
	gw := gateway.New(refresher, flags, logger)

	// Payment webhook pipeline
	verifier := webhook.NewVerifier(
		secrets.ProviderSecret,
		secrets.InternalSecret,
		cfg.ServerConfig.ProductionMode,
		logger,
	)
	processor := webhook.NewProcessor(subService, verifier, refresher, logger)
	webhookHandlers := webhook.NewHandlers(processor)

	// Expiry sweeper
	schedulerConfig := subscription.DefaultSchedulerConfig()
	if cfg.SweepConfig.Interval > 0 {
		schedulerConfig.SweepInterval = cfg.SweepConfig.Interval
	}
	scheduler := subscription.NewScheduler(subService, authService, refresher, schedulerConfig, logger)

	if cfg.SweepConfig.Enabled {
		if err := scheduler.Start(); err != nil {
			logger.Warn("Failed to start expiry sweeper", "error", err)
		}
	}

	// Seed the admin account and the default plan catalog
	if err := auth.SeedAdminUser(ctx, db, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		logger.Warn("Admin seeding failed", "error", err)
	}
	seedDefaultPlans(ctx, repo, logger)

	// Initialize web server
	serverConfig := api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		ReadOnlyLimits: subscription.FeatureLimits{
			TimetableDays:  cfg.AccessConfig.ReadOnlyTimetableDays,
			Notes:          cfg.AccessConfig.ReadOnlyNotes,
			FocusSessions:  cfg.AccessConfig.ReadOnlyFocusSessions,
			PrivateLessons: cfg.AccessConfig.ReadOnlyPrivateLessons,
		},
	}
	if cfg.ServerConfig.AllowedOrigins != "" {
		serverConfig.AllowedOrigins = strings.Split(cfg.ServerConfig.AllowedOrigins, ",")
	}

	server := api.NewServer(
		serverConfig,
		repo,
		eventBus,
		trail,
		authService,
		subService,
		scheduler,
		refresher,
		gw,
		flags,
		cachePlanCacheOrNil(cacheService),
		cacheService,
		webhookHandlers,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()

	logger.Info("StudyHall platform started",
		"host", cfg.ServerConfig.Host,
		"port", cfg.ServerConfig.Port,
		"subscription_enabled", cfg.AccessConfig.SubscriptionEnabled,
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down web server", "error", err)
	}

	if scheduler.IsRunning() {
		if err := scheduler.Stop(); err != nil {
			logger.Error("Error stopping sweeper", "error", err)
		}
	}

	logger.Info("Shutdown complete")
}

// cachePlanCacheOrNil returns a plan cache when redis is configured, nil otherwise
func cachePlanCacheOrNil(cacheService *cache.CacheService) *cache.PlanCache {
	if cacheService == nil {
		return nil
	}
	return cache.NewPlanCache(cacheService)
}

// seedDefaultPlans creates the default catalog on first boot. Existing plans
// are never touched.
func seedDefaultPlans(ctx context.Context, repo *database.Repository, logger *logging.Logger) {
	defaults := []*database.SubscriptionPlan{
		{
			Name:         "monthly",
			DisplayName:  "Monthly",
			Description:  "Full platform access, billed monthly",
			Price:        9.99,
			Currency:     "USD",
			DurationDays: 30,
			IsActive:     true,
		},
		{
			Name:         "yearly",
			DisplayName:  "Yearly",
			Description:  "Full platform access, billed yearly",
			Price:        89.99,
			Currency:     "USD",
			DurationDays: 365,
			IsActive:     true,
		},
	}

	for _, plan := range defaults {
		existing, err := repo.GetPlanByName(ctx, plan.Name)
		if err != nil {
			logger.Warn("Failed to check existing plan", "name", plan.Name, "error", err)
			continue
		}
		if existing != nil {
			continue
		}

		plan.ID = uuid.New().String()
		if err := repo.CreatePlan(ctx, plan); err != nil {
			logger.Warn("Failed to seed plan", "name", plan.Name, "error", err)
		} else {
			logger.Info("Seeded default plan", "name", plan.Name)
		}
	}
}
