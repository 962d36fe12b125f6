package bootstrap

import (
	"strings"

	"calndr/adapter/in/http"
	"calndr/config"
	"calndr/infra/middleware"
	"calndr/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "calndr-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	middleware.InitTokenBlacklist(deps.Redis)
	middleware.InitAuditLogger(deps.Redis)

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             10 * 1024 * 1024,
		ServerHeader:          "",
		DisableDefaultDate:    true,
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.PreventPathTraversal())
	app.Use(middleware.InputSanitizer())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(middleware.ETag())

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	healthHandler := http.NewHealthHandlerWithDeps(deps.DB, deps.SQLDB, deps.Redis)
	healthHandler.Register(app)

	api := app.Group("/api/v1")

	rateLimiter := middleware.NewAdvancedRateLimiter(middleware.DefaultRateLimitConfig())
	api.Use(rateLimiter.Handler())
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	api.Use(middleware.AuditMiddleware())

	if deps.MutationEngine != nil {
		http.NewCustodyHandler(deps.MutationEngine).Register(api)
	}
	if deps.MonthlyQuery != nil && deps.Aggregator != nil {
		http.NewMonthlyHandler(deps.MonthlyQuery, deps.Aggregator).Register(api)
	}
	if deps.TemplateRepo != nil && deps.Generator != nil {
		http.NewTemplateHandler(deps.TemplateRepo, deps.Generator).Register(api)
	}
	if deps.Auditor != nil {
		http.NewIntegrityHandler(deps.Auditor).Register(api)
	}
	if deps.SyncPipeline != nil && deps.Discoverer != nil && deps.ProviderRepo != nil {
		http.NewSyncHandler(deps.SyncPipeline, deps.Discoverer, deps.ProviderRepo).Register(api)
	}

	logger.Info("API server initialized successfully")

	return app, cleanup, nil
}
