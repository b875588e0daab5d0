// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS, and
// security headers.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The webhook path is exempt from rate limiting and admin auth: the
//     platform authenticates by secret path token and controls its own rate
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/telegive/bot-service/internal/config"
	"github.com/telegive/bot-service/internal/http/handlers"
	"github.com/telegive/bot-service/internal/http/middleware"
	"github.com/telegive/bot-service/internal/repo"
	"github.com/telegive/bot-service/internal/services"
)

// statsShim adapts the repo free function to the handlers.Stats interface,
// keeping handlers decoupled from the repo package.
type statsShim struct{ db *gorm.DB }

func (s statsShim) DeliveryStats(ctx context.Context, campaignID int64) (map[string]int64, error) {
	return repo.DeliveryStats(ctx, s.db, campaignID)
}

// Deps carries the constructed services the router mounts.
type Deps struct {
	DB        *gorm.DB
	Intake    *services.IntakeService
	Delivery  *services.DeliveryService
	Broadcast *services.BroadcastService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order:
//  1. OpenTelemetry tracing
//  2. RequestID (correlate requests and logs)
//  3. Logger (structured access logs, webhook token redacted)
//  4. Recovery (panics to JSON 500)
//  5. Body size limit
//  6. Prometheus metrics
//  7. CORS and security headers
//
// Rate limiting and admin auth are applied per-group, not globally, so the
// webhook route never 401s or 429s back at the platform.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderAdminToken},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Intake, deps.Broadcast, deps.Delivery, statsShim{db: deps.DB}, cfg.BotToken)

	// Platform webhook: authenticated by its secret path token.
	r.POST("/webhook/:token", h.Webhook)

	// Internal admin API: shared-secret auth plus per-IP rate limiting.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	api := r.Group("/api/v1", middleware.AdminAuth(cfg.AdminToken), rl.Handler())
	{
		api.POST("/broadcast", h.Broadcast)
		api.POST("/send", h.Send)
		api.GET("/deliveries/:campaign", h.Deliveries)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; reads past the cap error downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
