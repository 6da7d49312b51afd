package router

import (

	cssvc "crm-backend/internal/application/commissionsplits"
	evsvc "crm-backend/internal/application/dealevents"
	dealsvc "crm-backend/internal/application/deals"
	healthsvc "crm-backend/internal/application/health"
	paysvc "crm-backend/internal/application/payments"
	"crm-backend/internal/application/splitcheck"
	"crm-backend/internal/config"
	"crm-backend/internal/infrastructure/cache"
	"crm-backend/internal/infrastructure/database"
	cshandler "crm-backend/internal/interfaces/handlers/commissionsplits"
	evhandler "crm-backend/internal/interfaces/handlers/dealevents"
	dealhandler "crm-backend/internal/interfaces/handlers/deals"
	healthhandler "crm-backend/internal/interfaces/handlers/health"
	payhandler "crm-backend/internal/interfaces/handlers/payments"
	"crm-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with global middleware, health routes and,
// when a database is configured, the /api/v1 routes.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := database.AutoMigrate(db); err != nil {
				return nil, nil, nil, err
			}
			log.Info().Msg("Database schema migrated")
		}
	}
	rdb, err := cache.Open(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewApp(cfg, db, rdb), db, rdb, nil
}

// NewApp wires routes onto already opened connections. Either may be nil:
// without Redis the health counters are off, without a database only the
// health routes are mounted.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
		Production:    cfg.IsProduction(),
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Metrics())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if db != nil {
		hh.DB = &healthsvc.GormStore{DB: db}
	}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if db == nil {
		log.Warn().Msg("No database configured, API routes disabled")
		return app
	}

	api := app.Group("/api/v1")

	// Deals
	dh := &dealhandler.Handlers{
		Service: &dealsvc.Service{DB: db},
		Checker: &splitcheck.Service{DB: db},
	}
	dg := api.Group("/deals")
	dg.Post("/", dh.Create)
	dg.Get("/", dh.List)
	dg.Get("/:deal_id", dh.Get)
	dg.Patch("/:deal_id", dh.Update)
	dg.Delete("/:deal_id", dh.Delete)
	dg.Get("/:deal_id/summary", dh.Summary)
	dg.Get("/:deal_id/validate", dh.Validate)

	// Deal activity
	eh := &evhandler.Handlers{Service: &evsvc.Service{DB: db}}
	dg.Get("/:deal_id/events", eh.List)

	// Payments
	ph := &payhandler.Handlers{Service: &paysvc.Service{DB: db}}
	dg.Post("/:deal_id/payments/generate", ph.Generate)
	dg.Get("/:deal_id/payments", ph.List)
	dg.Post("/:deal_id/payments", ph.Add)
	api.Patch("/payments/:payment_id/amount", ph.Override)
	api.Delete("/payments/:payment_id/amount-override", ph.ClearOverride)
	api.Patch("/payments/:payment_id/referral", ph.SetReferral)
	api.Delete("/payments/:payment_id", ph.Delete)
	api.Patch("/payment-splits/:payment_split_id/paid", ph.SetSplitPaid)

	// Broker commission splits
	ch := &cshandler.Handlers{Service: &cssvc.Service{DB: db}}
	dg.Get("/:deal_id/commission-splits", ch.List)
	dg.Post("/:deal_id/commission-splits", ch.Create)
	api.Patch("/commission-splits/:commission_split_id", ch.Update)
	api.Delete("/commission-splits/:commission_split_id", ch.Delete)

	return app
}
