package api

import (
	"context"
	"time"

	"review-responder/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// HealthCheck probes one dependency for /health.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Version     string
	Env         string
	CORSOrigins string
	Checks      map[string]HealthCheck
}

func NewApp(appName string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      appName,
		ErrorHandler: ErrorHandler,
		ReadTimeout:  30 * time.Second,
		// Batches run sequentially with a pause per item.
		WriteTimeout: 5 * time.Minute,
	})
}

func SetupRouter(app *fiber.App, cfg RouterConfig, reviews *ReviewHandler, auth *AuthHandler, verifier TokenVerifier) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(metrics.Middleware())

	app.Get("/health", healthHandler(cfg))
	app.Get("/metrics", metrics.Handler())

	// API Versioning
	v1 := app.Group("/v1")

	authGroup := v1.Group("/auth")
	authGroup.Post("/register", auth.Register)
	authGroup.Post("/login", auth.Login)
	authGroup.Post("/refresh", auth.Refresh)
	authGroup.Post("/logout", RequireAuth(verifier), auth.Logout)

	responses := v1.Group("/responses", RequireAuth(verifier))
	responses.Post("/generate", reviews.Generate)
	responses.Post("/generate-single", reviews.GenerateSingle)
	responses.Post("/batch", reviews.Batch)
	responses.Get("/similar", reviews.Similar)
	responses.Get("/", reviews.History)

	v1.Get("/me/usage", RequireAuth(verifier), reviews.Usage)
}

func healthHandler(cfg RouterConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status, code := "healthy", fiber.StatusOK
		deps := make(map[string]string, len(cfg.Checks))
		for name, check := range cfg.Checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status, code = "degraded", fiber.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status":       status,
			"version":      cfg.Version,
			"env":          cfg.Env,
			"dependencies": deps,
		})
	}
}
