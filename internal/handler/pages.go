package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/qslx/internal/calendar"
	"github.com/iliyamo/qslx/internal/events"
	"github.com/iliyamo/qslx/internal/middleware"
	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/repository"
	"github.com/iliyamo/qslx/internal/stats"
	"github.com/iliyamo/qslx/internal/view"
)

// recentLimit is the number of contacts listed on the dashboard.
const recentLimit = 10

// PageHandler serves the server-rendered pages. It reuses the API
// handlers' stores and session logic.
type PageHandler struct {
	API  *ContactHandler
	Auth *AuthHandler
}

func NewPageHandler(contacts *ContactHandler, auth *AuthHandler) *PageHandler {
	return &PageHandler{API: contacts, Auth: auth}
}

type dashboardData struct {
	Stats  stats.Stats
	Recent []*model.Contact
}

type contactsData struct {
	ID       string
	Form     ContactForm
	Errors   map[string]string
	Contacts []*model.Contact
}

type mapData struct {
	Total  int
	Mapped int
}

type analyticsSection struct {
	Title   string
	Buckets []stats.Bucket
	Peak    int
}

type analyticsData struct {
	Total    int
	Sections []analyticsSection
}

type credentialsData struct {
	Name  string
	Email string
}

func (h *PageHandler) render(c echo.Context, status int, name string, p view.Page) error {
	p.User = middleware.CurrentUser(c)
	return c.Render(status, name, p)
}

func (h *PageHandler) renderError(c echo.Context, status int, title string) error {
	return h.render(c, status, "error", view.Page{Title: title})
}

// internalError logs err and renders a generic failure page.
func (h *PageHandler) internalError(c echo.Context, op string, err error) error {
	h.API.Log.Error(c.Request().Context(), "page failed", "op", op, "err", err)
	return h.renderError(c, http.StatusInternalServerError, "Something went wrong")
}

// Dashboard handles GET /.
func (h *PageHandler) Dashboard(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	s, contacts, err := h.API.loadStats(c.Request().Context(), userID)
	if err != nil {
		return h.internalError(c, "dashboard", err)
	}
	recent := contacts
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	return h.render(c, http.StatusOK, "dashboard", view.Page{
		Title: "Dashboard",
		Nav:   "dashboard",
		Data:  dashboardData{Stats: s, Recent: recent},
	})
}

// Contacts handles GET /contacts.
func (h *PageHandler) Contacts(c echo.Context) error {
	form := ContactForm{Date: h.API.Now().UTC().Format(datetimeLocal)}
	return h.renderContacts(c, http.StatusOK, form, nil)
}

func (h *PageHandler) renderContacts(c echo.Context, status int, form ContactForm, fields map[string]string) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	contacts, err := h.API.Contacts.ListByUser(ctx, userID)
	if err != nil {
		return h.internalError(c, "contacts", err)
	}
	return h.render(c, status, "contacts", view.Page{
		Title: "Contacts",
		Nav:   "contacts",
		Data:  contactsData{Form: form, Errors: fields, Contacts: contacts},
	})
}

// CreateContact handles POST /contacts.
func (h *PageHandler) CreateContact(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	var form ContactForm
	if err := c.Bind(&form); err != nil {
		return h.renderError(c, http.StatusBadRequest, "Invalid form submission")
	}
	in, err := form.Input()
	if err == nil {
		ctx, cancel := requestContext(c)
		defer cancel()
		var contact *model.Contact
		if contact, err = h.API.Contacts.Create(ctx, userID, in); err == nil {
			h.API.afterWrite(c.Request().Context(), events.ContactCreated, contact)
			return c.Redirect(http.StatusSeeOther, "/contacts")
		}
	}
	if verr, ok := model.AsValidationError(err); ok {
		return h.renderContacts(c, http.StatusBadRequest, form, verr.Fields)
	}
	return h.internalError(c, "create contact", err)
}

// EditContact handles GET /contacts/:id/edit.
func (h *PageHandler) EditContact(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	contact, err := h.API.Contacts.GetByIDAndUser(ctx, c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.renderError(c, http.StatusNotFound, "Contact not found")
		}
		return h.internalError(c, "edit contact", err)
	}
	return h.renderEdit(c, http.StatusOK, contact.ID, formFromContact(contact), nil)
}

func (h *PageHandler) renderEdit(c echo.Context, status int, id string, form ContactForm, fields map[string]string) error {
	return h.render(c, status, "contact_edit", view.Page{
		Title: "Edit contact",
		Nav:   "contacts",
		Data:  contactsData{ID: id, Form: form, Errors: fields},
	})
}

// UpdateContact handles POST /contacts/:id from the edit form.
func (h *PageHandler) UpdateContact(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	id := c.Param("id")
	var form ContactForm
	if err := c.Bind(&form); err != nil {
		return h.renderError(c, http.StatusBadRequest, "Invalid form submission")
	}
	patch, err := form.Patch()
	if err == nil {
		ctx, cancel := requestContext(c)
		defer cancel()
		var contact *model.Contact
		if contact, err = h.API.Contacts.Update(ctx, id, userID, patch); err == nil {
			h.API.afterWrite(c.Request().Context(), events.ContactUpdated, contact)
			return c.Redirect(http.StatusSeeOther, "/contacts")
		}
	}
	if verr, ok := model.AsValidationError(err); ok {
		return h.renderEdit(c, http.StatusBadRequest, id, form, verr.Fields)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return h.renderError(c, http.StatusNotFound, "Contact not found")
	}
	return h.internalError(c, "update contact", err)
}

// DeleteContact handles POST /contacts/:id/delete.
func (h *PageHandler) DeleteContact(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	id := c.Param("id")
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.API.Contacts.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.renderError(c, http.StatusNotFound, "Contact not found")
		}
		return h.internalError(c, "delete contact", err)
	}
	h.API.afterWrite(c.Request().Context(), events.ContactDeleted, &model.Contact{ID: id, UserID: userID})
	return c.Redirect(http.StatusSeeOther, "/contacts")
}

// Map handles GET /map. The markers are loaded by the page from /api/map.
func (h *PageHandler) Map(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	contacts, err := h.API.Contacts.ListByUser(ctx, userID)
	if err != nil {
		return h.internalError(c, "map", err)
	}
	data := mapData{Total: len(contacts)}
	for _, ct := range contacts {
		if ct.HasCoordinates() {
			data.Mapped++
		}
	}
	return h.render(c, http.StatusOK, "map", view.Page{Title: "Map", Nav: "map", Data: data})
}

// Calendar handles GET /calendar.
func (h *PageHandler) Calendar(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	s, _, err := h.API.loadStats(c.Request().Context(), userID)
	if err != nil {
		return h.internalError(c, "calendar", err)
	}
	return h.render(c, http.StatusOK, "calendar", view.Page{
		Title: "Calendar",
		Nav:   "calendar",
		Data:  calendar.Build(s.ContactsByDate, h.API.Now().UTC()),
	})
}

// Analytics handles GET /analytics.
func (h *PageHandler) Analytics(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	s, _, err := h.API.loadStats(c.Request().Context(), userID)
	if err != nil {
		return h.internalError(c, "analytics", err)
	}
	return h.render(c, http.StatusOK, "analytics", view.Page{
		Title: "Analytics",
		Nav:   "analytics",
		Data: analyticsData{
			Total: s.TotalContacts,
			Sections: []analyticsSection{
				section("Bands", stats.Sorted(s.BandCounts)),
				section("Modes", stats.Sorted(s.ModeCounts)),
				section("Path types", stats.Sorted(s.PathTypeCounts)),
				section("Frequency ranges", stats.SortedFrequencies(s.FrequencyRanges)),
			},
		},
	})
}

func section(title string, buckets []stats.Bucket) analyticsSection {
	sec := analyticsSection{Title: title, Buckets: buckets}
	for _, b := range buckets {
		if b.Count > sec.Peak {
			sec.Peak = b.Count
		}
	}
	return sec
}

// LoginForm handles GET /login.
func (h *PageHandler) LoginForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "login", view.Page{Title: "Sign in", Data: credentialsData{}})
}

// Login handles POST /login.
func (h *PageHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return h.renderError(c, http.StatusBadRequest, "Invalid form submission")
	}
	_, tok, err := h.Auth.authenticate(c.Request().Context(), req)
	if err == nil {
		h.Auth.setCookie(c, tok)
		return c.Redirect(http.StatusSeeOther, "/")
	}
	p := view.Page{Title: "Sign in", Data: credentialsData{Email: req.Email}}
	if verr, ok := model.AsValidationError(err); ok {
		p.Errors = verr.Fields
		return h.render(c, http.StatusBadRequest, "login", p)
	}
	if errors.Is(err, errInvalidCredentials) {
		p.Message = "Invalid email or password."
		return h.render(c, http.StatusUnauthorized, "login", p)
	}
	return h.internalError(c, "login", err)
}

// SignupForm handles GET /signup.
func (h *PageHandler) SignupForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "signup", view.Page{Title: "Sign up", Data: credentialsData{}})
}

// Signup handles POST /signup.
func (h *PageHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return h.renderError(c, http.StatusBadRequest, "Invalid form submission")
	}
	_, tok, err := h.Auth.register(c.Request().Context(), req)
	if err == nil {
		h.Auth.setCookie(c, tok)
		return c.Redirect(http.StatusSeeOther, "/")
	}
	p := view.Page{Title: "Sign up", Data: credentialsData{Name: req.Name, Email: req.Email}}
	if verr, ok := model.AsValidationError(err); ok {
		p.Errors = verr.Fields
		return h.render(c, http.StatusBadRequest, "signup", p)
	}
	if errors.Is(err, repository.ErrEmailExists) {
		p.Errors = map[string]string{"email": "is already registered"}
		return h.render(c, http.StatusConflict, "signup", p)
	}
	return h.internalError(c, "signup", err)
}

// Logout handles POST /logout.
func (h *PageHandler) Logout(c echo.Context) error {
	h.Auth.endSession(c)
	return c.Redirect(http.StatusSeeOther, "/login")
}
