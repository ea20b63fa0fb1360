package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/middleware"
	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/repository"
)

// storeTimeout bounds every store call made while serving a request.
const storeTimeout = 5 * time.Second

// ContactStore is the contact persistence used by the handlers.
// *repository.ContactRepo implements it.
type ContactStore interface {
	Create(ctx context.Context, userID string, in model.ContactInput) (*model.Contact, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Contact, error)
	GetByIDAndUser(ctx context.Context, id, userID string) (*model.Contact, error)
	Update(ctx context.Context, id, userID string, p model.ContactPatch) (*model.Contact, error)
	Delete(ctx context.Context, id, userID string) error
	ListWithCoordinates(ctx context.Context, userID string) ([]model.ContactLocation, error)
}

// UserStore is the account persistence used by the auth handlers.
// *repository.UserRepo implements it.
type UserStore interface {
	Create(ctx context.Context, name, email, password string, cost int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

var errNoUser = errors.New("no authenticated user in context")

// getUserID returns the id SessionAuth stored on the context.
func getUserID(c echo.Context) (string, error) {
	if id := middleware.UserID(c); id != "" {
		return id, nil
	}
	return "", errNoUser
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}

// validationResponse is the 400 body for rejected input.
type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// writeContactError maps a contact store error to a JSON response. Driver
// errors are logged and never echoed to the client.
func (h *ContactHandler) writeContactError(c echo.Context, op string, err error) error {
	if verr, ok := model.AsValidationError(err); ok {
		return c.JSON(http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: verr.Fields})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "contact not found"})
	}
	h.Log.Error(c.Request().Context(), "contact store failed", "op", op, "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
