package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/api/http/handlers"
	"github.com/spec-kit/talent-client/internal/auth"
	"github.com/spec-kit/talent-client/internal/config"
	"github.com/spec-kit/talent-client/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Upload       *handlers.UploadHandler
	Metrics      *observability.Metrics
	CookieName   string
	UploadLimits config.UploadConfig
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	upload := app.Group("/upload",
		RateLimitMiddleware(cfg.UploadLimits.RatePerSecond, cfg.UploadLimits.Burst),
		auth.CredentialMiddleware(cfg.CookieName),
	)
	upload.Post("/*", cfg.Upload.Forward)
	upload.Put("/*", cfg.Upload.Forward)
}

// NewApp builds the fiber app with global middlewares and routes.
func NewApp(cfg *config.Config, routes RouteConfig, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             cfg.Upload.MaxBodyBytes,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, routes.Metrics, cfg.App.RequestTimeout())
	RegisterRoutes(app, routes)
	return app
}
