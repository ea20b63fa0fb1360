package middleware

// identity.go holds accessors for the values SessionAuth stores on the
// context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/utils"
)

// UserID returns the authenticated user id, or "" when the request carries
// no session.
func UserID(c echo.Context) string {
	if v, ok := c.Get(KeyUserID).(string); ok {
		return v
	}
	return ""
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(KeyUser).(*model.User)
	return u
}

// Claims returns the verified token claims or nil.
func Claims(c echo.Context) *utils.SessionClaims {
	cl, _ := c.Get(KeyClaims).(*utils.SessionClaims)
	return cl
}
