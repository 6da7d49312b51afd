package bootstrap

import (
	"crm-backend/internal/config"
	"crm-backend/internal/interfaces/router"
	"crm-backend/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless deployments. The api handler
// imports this package because it cannot reach internal/ directly.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	observability.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
