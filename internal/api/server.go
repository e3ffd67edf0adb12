package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"studyhall-platform/internal/audit"
	"studyhall-platform/internal/auth"
	"studyhall-platform/internal/cache"
	"studyhall-platform/internal/checkpoint"
	"studyhall-platform/internal/database"
	"studyhall-platform/internal/events"
	"studyhall-platform/internal/gateway"
	"studyhall-platform/internal/logging"
	"studyhall-platform/internal/subscription"
	"studyhall-platform/internal/webhook"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RateLimiter is a simple in-memory per-path rate limiter for the webhook
// endpoints. One entry per path, pruned on every check.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks whether a request for the given key is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ProductionMode  bool
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ReadOnlyLimits  subscription.FeatureLimits
}

// Server is the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	repo            *database.Repository
	eventBus        *events.EventBus
	trail           *audit.Trail
	authService     *auth.Service
	subService      *subscription.Service
	scheduler       *subscription.Scheduler
	refresher       *checkpoint.Refresher
	gateway         *gateway.Gateway
	flags           *cache.SystemFlagsService
	planCache       *cache.PlanCache
	cacheService    *cache.CacheService
	webhookHandlers *webhook.Handlers

	rateLimiter *RateLimiter
	logger      *logging.Logger
}

// NewServer creates a new API server with all routes configured
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	eventBus *events.EventBus,
	trail *audit.Trail,
	authService *auth.Service,
	subService *subscription.Service,
	scheduler *subscription.Scheduler,
	refresher *checkpoint.Refresher,
	gw *gateway.Gateway,
	flags *cache.SystemFlagsService,
	planCache *cache.PlanCache,
	cacheService *cache.CacheService,
	webhookHandlers *webhook.Handlers,
	logger *logging.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:5173",
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Internal-Signature"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Access-State", "X-Access-Tier", "X-Read-Only"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:          router,
		config:          config,
		repo:            repo,
		eventBus:        eventBus,
		trail:           trail,
		authService:     authService,
		subService:      subService,
		scheduler:       scheduler,
		refresher:       refresher,
		gateway:         gw,
		flags:           flags,
		planCache:       planCache,
		cacheService:    cacheService,
		webhookHandlers: webhookHandlers,
		rateLimiter:     NewRateLimiter(120, time.Minute),
		logger:          logger.WithComponent("APIServer"),
	}

	s.setupRoutes()

	// Lifecycle events reach admin dashboards over the websocket hub
	InitLifecycleWebSocket(eventBus)

	return s
}

// rateLimitMiddleware limits request rates on signature-authenticated
// endpoints, which have no session to throttle on.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.FullPath()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "too many requests, slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	jwtManager := s.authService.GetJWTManager()

	// Health check sits in front of every middleware so load balancers can
	// always reach it
	s.router.GET("/health", s.handleHealth)

	// Webhook endpoints authenticate by signature, never by session, so
	// they bypass the access gateway entirely
	webhooks := s.router.Group("/api/webhooks")
	webhooks.Use(s.rateLimitMiddleware())
	s.webhookHandlers.RegisterRoutes(webhooks)

	// Every remaining route passes through the access gateway. Credentials
	// are resolved optionally; the gateway decides per route class whether
	// an anonymous request may proceed.
	s.router.Use(auth.OptionalMiddleware(jwtManager))
	s.router.Use(s.gateway.Middleware())

	// Auth routes
	authHandlers := auth.NewHandlers(s.authService, s.refresher)
	authGroup := s.router.Group("/api/auth")
	authHandlers.RegisterRoutes(authGroup, jwtManager)

	// Public plan catalog
	s.router.GET("/api/plans", s.handleListPlans)

	// Subscription routes (authenticated, reachable for expired users so
	// they can resubscribe)
	sub := s.router.Group("/api/subscription")
	sub.Use(auth.Middleware(jwtManager))
	{
		sub.GET("/me", s.handleGetMySubscription)
		sub.POST("/checkout", s.handleStartCheckout)
		sub.POST("/cancel", s.handleCancelSubscription)
	}

	// Admin routes
	admin := s.router.Group("/api/admin")
	admin.Use(auth.Middleware(jwtManager))
	admin.Use(auth.RequireAdmin())
	{
		admin.GET("/users", s.handleAdminListUsers)
		admin.GET("/users/:id", s.handleAdminGetUser)
		admin.POST("/users/:id/ban", s.handleAdminBanUser)
		admin.POST("/users/:id/unban", s.handleAdminUnbanUser)
		admin.GET("/users/:id/audit", s.handleAdminGetUserAudit)
		admin.GET("/users/:id/subscriptions", s.handleAdminGetUserSubscriptions)
		admin.POST("/users/:id/grant", s.handleAdminGrantSubscription)

		admin.GET("/plans", s.handleAdminListPlans)
		admin.POST("/plans", s.handleAdminCreatePlan)
		admin.POST("/plans/:id/activate", s.handleAdminSetPlanActive)

		admin.POST("/subscriptions/:id/cancel", s.handleAdminCancelSubscription)

		admin.GET("/system/flags", s.handleAdminGetSystemFlags)
		admin.POST("/system/maintenance", s.handleAdminSetMaintenance)
		admin.POST("/system/subscription-enabled", s.handleAdminSetSubscriptionEnabled)

		admin.GET("/sweeper/status", s.handleAdminSweeperStatus)
		admin.POST("/sweeper/run", s.handleAdminRunSweep)

		admin.GET("/cache/stats", s.handleAdminCacheStats)

		// Lifecycle event stream for the admin dashboard
		admin.GET("/events/ws", s.handleLifecycleWebSocket)
	}

	// Catch-all: API paths get JSON 404, everything else is a page path
	// owned by the frontend
	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "NOT_FOUND",
				"message": "endpoint does not exist",
				"path":    c.Request.URL.Path,
			})
			return
		}
		c.Status(http.StatusNotFound)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	readTimeout := s.config.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := s.config.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 15 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	cacheStatus := "disabled"
	if s.cacheService != nil {
		cacheStatus = "degraded"
		if s.cacheService.IsHealthy() {
			cacheStatus = "healthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
		"cache":    cacheStatus,
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"error":   code,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
