package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/qotd/internal/adapters/http/handlers"
	"github.com/jsamuelsen/qotd/internal/adapters/http/middleware"
	"github.com/jsamuelsen/qotd/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds /api/v1 requests when RouterConfig.Timeout is zero.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// ServiceName names the server spans.
	ServiceName string

	// HealthHandler serves /-/ routes. Optional.
	HealthHandler *handlers.HealthHandler

	// QuoteHandler serves /api/v1/quotes. Optional.
	QuoteHandler *handlers.QuoteHandler

	// FavoritesHandler serves /api/v1/favorites. Optional.
	FavoritesHandler *handlers.FavoritesHandler

	// Timeout is the /api/v1 request deadline. Negative disables it.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware runs in this order:
//  1. Recovery
//  2. Request ID
//  3. Correlation ID
//  4. OpenTelemetry span and metrics
//  5. Logging (skips /-/)
//  6. Timeout (/api/v1 only)
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.ServiceName)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutes(engine.Group("/-"))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	apiV1 := engine.Group("/api/v1")
	apiV1.Use(middleware.Timeout(timeout))

	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterRoutes(apiV1)
	}

	if cfg.FavoritesHandler != nil {
		cfg.FavoritesHandler.RegisterRoutes(apiV1)
	}
}
