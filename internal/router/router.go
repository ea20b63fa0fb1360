package router // package router defines how HTTP routes are registered

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/handler"
	"github.com/iliyamo/qslx/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the JSON authentication endpoints under /api/auth.
// Signup, login and logout work without a session; /me requires one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, gate middleware.SessionConfig) {
	g := e.Group("/api/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	// Logout accepts expired or missing sessions so a client can always
	// clear its cookie.
	g.POST("/logout", a.Logout)

	gate.Deny = middleware.DenyJSON
	g.GET("/me", a.Me, middleware.SessionAuth(gate))
}
