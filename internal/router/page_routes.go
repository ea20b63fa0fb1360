package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/handler"
	"github.com/iliyamo/qslx/internal/middleware"
)

// RegisterPages registers the HTML pages. Login and signup are public and
// bounce signed-in users to the dashboard; everything else redirects to
// /login without a session.
func RegisterPages(e *echo.Echo, p *handler.PageHandler, gate middleware.SessionConfig) {
	guest := middleware.RedirectIfSignedIn(gate, "/")
	e.GET("/login", p.LoginForm, guest)
	e.POST("/login", p.Login)
	e.GET("/signup", p.SignupForm, guest)
	e.POST("/signup", p.Signup)
	e.POST("/logout", p.Logout)

	gate.Deny = middleware.DenyRedirect("/login")
	g := e.Group("", middleware.SessionAuth(gate))
	g.GET("/", p.Dashboard)
	g.GET("/contacts", p.Contacts)
	g.POST("/contacts", p.CreateContact)
	g.GET("/contacts/:id/edit", p.EditContact)
	g.POST("/contacts/:id", p.UpdateContact)
	g.POST("/contacts/:id/delete", p.DeleteContact)
	g.GET("/map", p.Map)
	g.GET("/calendar", p.Calendar)
	g.GET("/analytics", p.Analytics)
}
