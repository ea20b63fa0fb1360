package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/calendar"
	"github.com/iliyamo/qslx/internal/events"
	"github.com/iliyamo/qslx/internal/logging"
	"github.com/iliyamo/qslx/internal/metrics"
	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/stats"
)

// ContactHandler serves the contact, statistics, map and calendar API.
type ContactHandler struct {
	Contacts ContactStore
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Log      logging.Logger
	Now      func() time.Time
}

// NewContactHandler wires a ContactHandler. pub and m may be nil.
func NewContactHandler(store ContactStore, pub events.Publisher, m *metrics.Metrics, log logging.Logger) *ContactHandler {
	if store == nil {
		panic("nil contact store passed to NewContactHandler")
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ContactHandler{Contacts: store, Events: pub, Metrics: m, Log: log, Now: time.Now}
}

// contactBody is the JSON shape accepted when creating a contact.
type contactBody struct {
	Callsign    string   `json:"callsign"`
	Date        string   `json:"date"`
	Frequency   *float64 `json:"frequency"`
	Mode        string   `json:"mode"`
	Band        string   `json:"band"`
	SignalType  string   `json:"signalType"`
	PathType    string   `json:"pathType"`
	RSTSent     string   `json:"rstSent"`
	RSTReceived string   `json:"rstReceived"`
	GridSquare  string   `json:"gridSquare"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Country     string   `json:"country"`
	State       string   `json:"state"`
	Notes       string   `json:"notes"`
}

const dateFormatHint = "must be a date (YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)"

func (b *contactBody) input() (model.ContactInput, error) {
	in := model.ContactInput{
		Callsign:    b.Callsign,
		Frequency:   b.Frequency,
		Mode:        b.Mode,
		Band:        b.Band,
		SignalType:  b.SignalType,
		PathType:    b.PathType,
		RSTSent:     b.RSTSent,
		RSTReceived: b.RSTReceived,
		GridSquare:  b.GridSquare,
		Latitude:    b.Latitude,
		Longitude:   b.Longitude,
		Country:     b.Country,
		State:       b.State,
		Notes:       b.Notes,
	}
	verr := &model.ValidationError{}
	if b.Date != "" {
		d, err := model.ParseContactDate(b.Date)
		if err != nil {
			verr.Add("date", dateFormatHint)
		}
		in.Date = d
	}
	in.Normalize()
	mergeValidation(verr, in.Validate())
	return in, verr.OrNil()
}

// decodePatch builds a partial update from the supplied JSON members.
// Unknown members are ignored; null clears an optional field.
func decodePatch(raw map[string]json.RawMessage) (model.ContactPatch, error) {
	var p model.ContactPatch
	verr := &model.ValidationError{}

	text := func(key string) *string {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			verr.Add(key, "must be a string")
			return nil
		}
		if s == nil {
			empty := ""
			return &empty
		}
		return s
	}
	number := func(key string) model.OptionalFloat {
		v, ok := raw[key]
		if !ok {
			return model.OptionalFloat{}
		}
		var f *float64
		if err := json.Unmarshal(v, &f); err != nil {
			verr.Add(key, "must be a number")
			return model.OptionalFloat{}
		}
		return model.OptionalFloat{Set: true, Value: f}
	}

	p.Callsign = text("callsign")
	if s := text("date"); s != nil {
		var d time.Time
		if *s != "" {
			parsed, err := model.ParseContactDate(*s)
			if err != nil {
				verr.Add("date", dateFormatHint)
			} else {
				d = parsed
			}
		}
		p.Date = &d
	}
	p.Frequency = number("frequency")
	p.Mode = text("mode")
	p.Band = text("band")
	p.SignalType = text("signalType")
	p.PathType = text("pathType")
	p.RSTSent = text("rstSent")
	p.RSTReceived = text("rstReceived")
	p.GridSquare = text("gridSquare")
	p.Latitude = number("latitude")
	p.Longitude = number("longitude")
	p.Country = text("country")
	p.State = text("state")
	p.Notes = text("notes")

	p.Normalize()
	mergeValidation(verr, p.Validate())
	return p, verr.OrNil()
}

func mergeValidation(dst *model.ValidationError, err error) {
	if verr, ok := model.AsValidationError(err); ok {
		for k, v := range verr.Fields {
			dst.Add(k, v)
		}
	}
}

// Create handles POST /api/contacts.
func (h *ContactHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	var body contactBody
	if err := c.Echo().JSONSerializer.Deserialize(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	in, err := body.input()
	if err != nil {
		return h.writeContactError(c, "create", err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	contact, err := h.Contacts.Create(ctx, userID, in)
	if err != nil {
		return h.writeContactError(c, "create", err)
	}
	h.afterWrite(c.Request().Context(), events.ContactCreated, contact)
	return c.JSON(http.StatusCreated, contact)
}

// List handles GET /api/contacts. Contacts are newest first.
func (h *ContactHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Contacts.ListByUser(ctx, userID)
	if err != nil {
		return h.writeContactError(c, "list", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Get handles GET /api/contacts/:id.
func (h *ContactHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	contact, err := h.Contacts.GetByIDAndUser(ctx, c.Param("id"), userID)
	if err != nil {
		return h.writeContactError(c, "get", err)
	}
	return c.JSON(http.StatusOK, contact)
}

// Update handles PATCH and PUT /api/contacts/:id. Only the members present
// in the body are changed.
func (h *ContactHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	var raw map[string]json.RawMessage
	if err := c.Echo().JSONSerializer.Deserialize(c, &raw); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	patch, err := decodePatch(raw)
	if err != nil {
		return h.writeContactError(c, "update", err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	contact, err := h.Contacts.Update(ctx, c.Param("id"), userID, patch)
	if err != nil {
		return h.writeContactError(c, "update", err)
	}
	h.afterWrite(c.Request().Context(), events.ContactUpdated, contact)
	return c.JSON(http.StatusOK, contact)
}

// Delete handles DELETE /api/contacts/:id.
func (h *ContactHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	id := c.Param("id")
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Contacts.Delete(ctx, id, userID); err != nil {
		return h.writeContactError(c, "delete", err)
	}
	h.afterWrite(c.Request().Context(), events.ContactDeleted, &model.Contact{ID: id, UserID: userID})
	return c.NoContent(http.StatusNoContent)
}

// Stats handles GET /api/stats.
func (h *ContactHandler) Stats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	s, _, err := h.loadStats(c.Request().Context(), userID)
	if err != nil {
		return h.writeContactError(c, "stats", err)
	}
	return c.JSON(http.StatusOK, s)
}

// Map handles GET /api/map: the user's contacts that have coordinates.
func (h *ContactHandler) Map(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Contacts.ListWithCoordinates(ctx, userID)
	if err != nil {
		return h.writeContactError(c, "map", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Calendar handles GET /api/calendar: the heatmap of the current UTC year.
func (h *ContactHandler) Calendar(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	s, _, err := h.loadStats(c.Request().Context(), userID)
	if err != nil {
		return h.writeContactError(c, "calendar", err)
	}
	return c.JSON(http.StatusOK, calendar.Build(s.ContactsByDate, h.Now().UTC()))
}

// loadStats aggregates the user's full log. The contacts are returned too
// so pages can show them without a second query.
func (h *ContactHandler) loadStats(ctx context.Context, userID string) (stats.Stats, []*model.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	contacts, err := h.Contacts.ListByUser(ctx, userID)
	if err != nil {
		return stats.Stats{}, nil, err
	}
	h.Metrics.StatsComputed()
	return stats.Compute(contacts), contacts, nil
}

// afterWrite records a successful contact write.
func (h *ContactHandler) afterWrite(ctx context.Context, t events.Type, contact *model.Contact) {
	h.Metrics.ContactWritten(string(t))
	h.Log.Info(ctx, "contact written", "type", string(t), "contact_id", contact.ID, "user_id", contact.UserID)
	events.Notify(ctx, h.Events, h.Log, events.NewContactEvent(t, contact, h.Now()))
}
