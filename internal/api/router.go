// Package api wires together all HTTP routes for the shopcn backend.
//
// Route grouping philosophy:
//   - The install endpoint (/install/:slug) is intentionally unauthenticated at
//     the transport level. The install key travels as a query parameter because
//     the shadcn-style CLI fetches registry items with a bare GET; entitlement
//     is decided inside the handler, not by middleware.
//   - API routes under /api/v1/ carry a Bearer token (session JWT or CLI key).
//     Admin routes additionally require the admin role, checked against the
//     database on every request.
//   - The payment webhook is public; authenticity comes from the provider's
//     signature over the raw body.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopcn/shopcn/internal/api/accounts"
	"github.com/shopcn/shopcn/internal/api/checkout"
	"github.com/shopcn/shopcn/internal/api/install"
	"github.com/shopcn/shopcn/internal/api/store"
	"github.com/shopcn/shopcn/internal/api/webhooks"
	"github.com/shopcn/shopcn/internal/config"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/entitlement"
	"github.com/shopcn/shopcn/internal/jobs"
	"github.com/shopcn/shopcn/internal/middleware"
	"github.com/shopcn/shopcn/internal/payments"
)

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown()
// when the process receives a termination signal.
type BackgroundServices struct {
	keySweeper   *jobs.KeySweeper
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.keySweeper != nil {
		bg.keySweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewAccessKeyRepository(db)
	productRepo := repositories.NewProductRepository(db)
	artifactRepo := repositories.NewArtifactRepository(db)
	ledgerRepo := repositories.NewLedgerRepository(db)

	// Wrap *sql.DB with sqlx for the listing and stats repositories
	sqlxDB := sqlx.NewDb(db, "postgres")

	// Payment provider and the entitlement core built on it
	provider := payments.NewStripeProvider(
		cfg.Payments.SecretKey,
		cfg.Payments.WebhookSecret,
		cfg.Payments.RequestTimeout,
	)
	issuer := entitlement.NewIssuer(keyRepo, entitlement.IssuerConfig{
		InstallPrefix: cfg.Auth.InstallKeys.Prefix,
		InstallTTL:    cfg.Auth.InstallKeys.TTL,
		CLIPrefix:     cfg.Auth.CLIKeys.Prefix,
	})
	authorizer := entitlement.NewAuthorizer(issuer, productRepo, artifactRepo, ledgerRepo)
	reconciler := entitlement.NewReconciler(provider, ledgerRepo)

	// Sweep expired install keys. Every install mints a new short-lived key,
	// so the table accumulates dead rows without this.
	keySweeper := jobs.NewKeySweeper(keyRepo, time.Hour)
	keySweeper.Start(context.Background())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	installHandler := install.NewHandler(authorizer)
	accountHandlers := accounts.NewHandlers(cfg, db)
	keyHandlers := accounts.NewKeyHandlers(cfg, db)
	checkoutHandlers := checkout.NewHandlers(cfg, db, provider)
	productHandlers := store.NewProductHandlers(sqlxDB)
	draftHandlers := store.NewDraftHandlers(cfg, db)
	purchaseHandlers := store.NewPurchaseHandlers(db)
	statsHandler := store.NewStatsHandler(sqlxDB)
	webhookHandler := webhooks.NewHandler(reconciler)

	// Initialize rate limiters
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	installRateLimiter := middleware.NewRateLimiter(middleware.InstallRateLimitConfig())

	// Install endpoint. Keyed per client IP: the caller holds no account
	// credential at this point, only the install key under test.
	router.GET("/install/:slug",
		middleware.RateLimitMiddleware(installRateLimiter),
		installHandler.InstallHandler())

	// Webhook endpoint (public, authentication via signature validation)
	router.POST("/webhooks/payment", webhookHandler.PaymentWebhookHandler())

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, but rate limited)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/register", accountHandlers.RegisterHandler())
			authGroup.POST("/login", accountHandlers.LoginHandler())
		}

		// Public catalog endpoints (no auth required, but rate limited)
		publicGroup := apiV1.Group("")
		publicGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			publicGroup.GET("/products", productHandlers.ListProductsHandler())
			publicGroup.GET("/products/:slug", productHandlers.GetProductHandler())
		}

		// Authenticated-only endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.AuthMiddleware(userRepo, keyRepo))
		authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			authenticatedGroup.GET("/auth/me", accountHandlers.MeHandler())

			authenticatedGroup.POST("/checkout", checkoutHandlers.CreateCheckoutHandler())
			authenticatedGroup.GET("/checkout/:id/status", checkoutHandlers.CheckoutStatusHandler())

			authenticatedGroup.POST("/keys/install", keyHandlers.IssueInstallKeyHandler())
			authenticatedGroup.GET("/keys", keyHandlers.ListKeysHandler())
			authenticatedGroup.DELETE("/keys/:id", keyHandlers.RevokeKeyHandler())

			authenticatedGroup.GET("/me/purchases", purchaseHandlers.ListMyPurchasesHandler())

			// CLI publishing endpoints, authenticated with a CLI key
			authenticatedGroup.POST("/cli/drafts", draftHandlers.CreateDraftHandler())
			authenticatedGroup.GET("/cli/validate", draftHandlers.ValidateKeyHandler())

			// Admin endpoints (admin role checked against the database)
			adminGroup := authenticatedGroup.Group("/admin")
			adminGroup.Use(middleware.RequireAdmin())
			{
				adminGroup.GET("/drafts", draftHandlers.ListDraftsHandler())
				adminGroup.GET("/drafts/:id", draftHandlers.GetDraftHandler())
				adminGroup.POST("/products", draftHandlers.PromoteDraftHandler())
				adminGroup.GET("/stats", statsHandler.GetStatsHandler())
				adminGroup.POST("/keys/cli", keyHandlers.IssueCLIKeyHandler())
			}
		}
	}

	bg := &BackgroundServices{
		keySweeper:   keySweeper,
		rateLimiters: []*middleware.RateLimiter{generalRateLimiter, authRateLimiter, installRateLimiter},
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logRequest(c, latency, path, query)
	}
}

// logRequest logs a request as a structured slog record. The output format
// (JSON or text) follows the global handler configured in telemetry.SetupLogger.
func logRequest(c *gin.Context, latency time.Duration, path, query string) {
	requestID := c.GetString(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", requestID),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
