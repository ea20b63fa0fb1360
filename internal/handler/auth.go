package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/config"
	"github.com/iliyamo/qslx/internal/logging"
	"github.com/iliyamo/qslx/internal/middleware"
	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/repository"
	"github.com/iliyamo/qslx/internal/session"
	"github.com/iliyamo/qslx/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Users        UserStore
	Revoker      session.Revoker
	Secret       string
	TTL          time.Duration
	CookieSecure bool
	BcryptCost   int
	Log          logging.Logger
}

func NewAuthHandler(cfg config.Config, users UserStore, revoker session.Revoker, log logging.Logger) *AuthHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &AuthHandler{
		Users:        users,
		Revoker:      revoker,
		Secret:       cfg.SessionSecret,
		TTL:          cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
		BcryptCost:   cfg.BcryptCost,
		Log:          log,
	}
}

// ----- DTOs -----

type signupReq struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type userPart struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type authResp struct {
	Message   string    `json:"message"`
	User      userPart  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toUserPart(u *model.User) userPart {
	return userPart{ID: u.ID, Name: u.Name, Email: u.Email}
}

var errInvalidCredentials = errors.New("invalid credentials")

func (r *signupReq) validate() error {
	verr := &model.ValidationError{}
	if strings.TrimSpace(r.Name) == "" {
		verr.Add("name", "is required")
	}
	email := repository.NormalizeEmail(r.Email)
	switch {
	case email == "":
		verr.Add("email", "is required")
	case !strings.Contains(email, "@"):
		verr.Add("email", "must be an email address")
	}
	switch {
	case r.Password == "":
		verr.Add("password", "is required")
	case len(r.Password) < utils.MinPasswordLength:
		verr.Add("password", "must be at least 8 characters")
	}
	return verr.OrNil()
}

func (r *loginReq) validate() error {
	verr := &model.ValidationError{}
	if repository.NormalizeEmail(r.Email) == "" {
		verr.Add("email", "is required")
	}
	if r.Password == "" {
		verr.Add("password", "is required")
	}
	return verr.OrNil()
}

// register creates the account and starts a session for it.
func (h *AuthHandler) register(ctx context.Context, req signupReq) (*model.User, utils.SessionToken, error) {
	if err := req.validate(); err != nil {
		return nil, utils.SessionToken{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	u, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, h.BcryptCost)
	if err != nil {
		return nil, utils.SessionToken{}, err
	}
	tok, err := utils.NewSessionToken(h.Secret, u.ID, u.Email, h.TTL)
	if err != nil {
		return nil, utils.SessionToken{}, err
	}
	return u, tok, nil
}

// authenticate verifies credentials and starts a session. Unknown email
// and wrong password both yield errInvalidCredentials.
func (h *AuthHandler) authenticate(ctx context.Context, req loginReq) (*model.User, utils.SessionToken, error) {
	if err := req.validate(); err != nil {
		return nil, utils.SessionToken{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.SessionToken{}, errInvalidCredentials
		}
		return nil, utils.SessionToken{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return nil, utils.SessionToken{}, errInvalidCredentials
	}
	tok, err := utils.NewSessionToken(h.Secret, u.ID, u.Email, h.TTL)
	if err != nil {
		return nil, utils.SessionToken{}, err
	}
	return u, tok, nil
}

// endSession revokes the request's token, if it carries a valid one, and
// clears the cookie.
func (h *AuthHandler) endSession(c echo.Context) {
	ctx := c.Request().Context()
	if raw := middleware.TokenFromRequest(c); raw != "" {
		if claims, err := utils.ParseSessionToken(h.Secret, raw); err == nil {
			switch {
			case h.Revoker == nil || !h.Revoker.Enabled():
				h.Log.Warn(ctx, "session revocation unavailable; clearing cookie only", "user_id", claims.Subject)
			default:
				if err := h.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
					h.Log.Error(ctx, "revoke session", "user_id", claims.Subject, "err", err)
				}
			}
		}
	}
	h.clearCookie(c)
}

func (h *AuthHandler) setCookie(c echo.Context, tok utils.SessionToken) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    tok.Token,
		Path:     "/",
		MaxAge:   int(h.TTL / time.Second),
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAuthError maps register/authenticate failures to JSON.
func (h *AuthHandler) writeAuthError(c echo.Context, err error) error {
	if verr, ok := model.AsValidationError(err); ok {
		return c.JSON(http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: verr.Fields})
	}
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "email already exists"})
	case errors.Is(err, errInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}
	h.Log.Error(c.Request().Context(), "auth failed", "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// Signup handles POST /api/auth/signup: create the user and sign them in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	u, tok, err := h.register(c.Request().Context(), req)
	if err != nil {
		return h.writeAuthError(c, err)
	}
	h.setCookie(c, tok)
	h.Log.Info(c.Request().Context(), "user signed up", "user_id", u.ID)
	return c.JSON(http.StatusCreated, authResp{
		Message:   "user created",
		User:      toUserPart(u),
		Token:     tok.Token,
		ExpiresAt: tok.Exp,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	u, tok, err := h.authenticate(c.Request().Context(), req)
	if err != nil {
		return h.writeAuthError(c, err)
	}
	h.setCookie(c, tok)
	return c.JSON(http.StatusOK, authResp{
		Message:   "logged in",
		User:      toUserPart(u),
		Token:     tok.Token,
		ExpiresAt: tok.Exp,
	})
}

// Logout handles POST /api/auth/logout. It succeeds with or without a
// session.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.endSession(c)
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusOK, map[string]any{"user": toUserPart(u)})
}
