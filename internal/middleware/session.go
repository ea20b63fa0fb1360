package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/logging"
	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/repository"
	"github.com/iliyamo/qslx/internal/session"
	"github.com/iliyamo/qslx/internal/utils"
)

// CookieName is the session cookie set at login and signup.
const CookieName = "auth-token"

// Context keys set by SessionAuth.
const (
	KeyUserID = "user_id"
	KeyUser   = "user"
	KeyClaims = "claims"
)

// UserLoader loads the account a token refers to.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// SessionConfig configures SessionAuth.
type SessionConfig struct {
	Secret  string
	Users   UserLoader
	Revoker session.Revoker // optional
	Log     logging.Logger
	// Deny produces the response for a request without a valid session.
	// DenyJSON is used when nil.
	Deny echo.HandlerFunc
}

// SessionAuth returns an Echo middleware that requires a valid session.
// The token is read from a Bearer Authorization header or from the session
// cookie. It must be an unexpired HS256 token signed with the configured
// secret, not revoked, and refer to an existing user. On success the user
// id, the user and the token claims are stored on the context.
func SessionAuth(cfg SessionConfig) echo.MiddlewareFunc {
	deny := cfg.Deny
	if deny == nil {
		deny = DenyJSON
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, claims, err := cfg.authenticate(c)
			if err != nil {
				if errors.Is(err, errNoSession) {
					return deny(c)
				}
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
			c.Set(KeyUserID, user.ID)
			c.Set(KeyUser, user)
			c.Set(KeyClaims, claims)
			return next(c)
		}
	}
}

// RedirectIfSignedIn sends requests that already carry a valid session to
// path. It guards the login and signup pages.
func RedirectIfSignedIn(cfg SessionConfig, path string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, _, err := cfg.authenticate(c); err == nil {
				return c.Redirect(http.StatusSeeOther, path)
			}
			return next(c)
		}
	}
}

var errNoSession = errors.New("no valid session")

// authenticate resolves the request's session. It returns errNoSession for
// any missing, invalid, revoked or orphaned token; other errors come from
// the user store.
func (cfg SessionConfig) authenticate(c echo.Context) (*model.User, *utils.SessionClaims, error) {
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	raw := TokenFromRequest(c)
	if raw == "" {
		return nil, nil, errNoSession
	}
	claims, err := utils.ParseSessionToken(cfg.Secret, raw)
	if err != nil {
		return nil, nil, errNoSession
	}

	ctx := c.Request().Context()
	if cfg.Revoker != nil {
		revoked, err := cfg.Revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Signature and expiry were verified; an unreachable denylist
			// does not lock everyone out.
			log.Warn(ctx, "revocation check failed", "err", err)
		} else if revoked {
			return nil, nil, errNoSession
		}
	}

	user, err := cfg.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errNoSession
		}
		log.Error(ctx, "load session user", "user_id", claims.Subject, "err", err)
		return nil, nil, err
	}
	return user, claims, nil
}

// TokenFromRequest returns the session token carried by the request, or "".
// A Bearer header takes precedence over the cookie.
func TokenFromRequest(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(CookieName); err == nil {
		return ck.Value
	}
	return ""
}

// DenyJSON replies 401 with a JSON error body.
func DenyJSON(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
}

// DenyRedirect returns a deny function that sends browsers to path.
func DenyRedirect(path string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, path)
	}
}
