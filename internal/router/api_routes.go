package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/handler"
	"github.com/iliyamo/qslx/internal/middleware"
)

// RegisterAPI registers the user-scoped JSON API under /api. Every route
// requires a session; failures answer 401 JSON.
func RegisterAPI(e *echo.Echo, h *handler.ContactHandler, gate middleware.SessionConfig) {
	gate.Deny = middleware.DenyJSON
	g := e.Group("/api", middleware.SessionAuth(gate))

	// ---- Contacts ----
	g.POST("/contacts", h.Create)
	g.GET("/contacts", h.List)
	g.GET("/contacts/:id", h.Get)
	g.PATCH("/contacts/:id", h.Update)
	g.PUT("/contacts/:id", h.Update) // same partial semantics as PATCH
	g.DELETE("/contacts/:id", h.Delete)

	// ---- Derived views ----
	g.GET("/stats", h.Stats)
	g.GET("/map", h.Map)
	g.GET("/calendar", h.Calendar)
}
