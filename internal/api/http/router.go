package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-access-service/internal/api/http/handlers"
	"github.com/spec-kit/gate-access-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Gate           *handlers.GateHandler
	Auth           *handlers.AuthHandler
	Logs           *handlers.LogsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/change",
		cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.ChangePassword)

	gate := app.Group("/gate")
	// The gate device authenticates with the QR credential itself.
	gate.Post("/verify-entry", cfg.Gate.VerifyEntry)
	gate.Get("/my-qr", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Gate.MyQR)
	gate.Post("/register-biometrics",
		cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Gate.RegisterBiometrics)

	logs := app.Group("/logs", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	logs.Get("/", cfg.Logs.List)
	logs.Get("/stats", cfg.Logs.Stats)
}
