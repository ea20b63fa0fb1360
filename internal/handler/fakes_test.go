package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/qslx/internal/events"
	"github.com/iliyamo/qslx/internal/logging"
	"github.com/iliyamo/qslx/internal/middleware"
	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/repository"
	"github.com/iliyamo/qslx/internal/utils"
	"github.com/iliyamo/qslx/internal/view"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// memContacts is an in-memory ContactStore with the same ownership rules
// as the SQL repository.
type memContacts struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*model.Contact
	err  error
}

func newMemContacts() *memContacts { return &memContacts{byID: map[string]*model.Contact{}} }

func clone(c *model.Contact) *model.Contact { cp := *c; return &cp }

func (m *memContacts) Create(_ context.Context, userID string, in model.ContactInput) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.seq++
	c := in.Contact(fmt.Sprintf("c%d", m.seq), userID)
	c.CreatedAt, c.UpdatedAt = testNow, testNow
	m.byID[c.ID] = c
	return clone(c), nil
}

func (m *memContacts) ListByUser(_ context.Context, userID string) ([]*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []*model.Contact{}
	for _, c := range m.byID {
		if c.UserID == userID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *memContacts) GetByIDAndUser(_ context.Context, id, userID string) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byID[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return clone(c), nil
}

func (m *memContacts) Update(_ context.Context, id, userID string, p model.ContactPatch) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c, ok := m.byID[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	p.Apply(c)
	return clone(c), nil
}

func (m *memContacts) Delete(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.byID[id]
	if !ok || c.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memContacts) ListWithCoordinates(ctx context.Context, userID string) ([]model.ContactLocation, error) {
	all, err := m.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []model.ContactLocation{}
	for _, c := range all {
		if loc, ok := c.Location(); ok {
			out = append(out, loc)
		}
	}
	return out, nil
}

// memUsers is an in-memory UserStore.
type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
	err     error
}

func newMemUsers() *memUsers { return &memUsers{byEmail: map[string]*model.User{}} }

func (m *memUsers) Create(_ context.Context, name, email, password string, cost int) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	email = repository.NormalizeEmail(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, repository.ErrEmailExists
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	u := &model.User{ID: "u-" + strings.SplitN(email, "@", 2)[0], Name: strings.TrimSpace(name), Email: email, PasswordHash: hash}
	m.byEmail[email] = u
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.byEmail[repository.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	enabled bool
}

func (r *memRevoker) Revoke(_ context.Context, jti string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = exp
	return nil
}

func (r *memRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[jti]
	return ok, nil
}

func (r *memRevoker) Enabled() bool { return r.enabled }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ContactEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ContactEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// testUser authenticates requests by the X-Test-User header. It stands in
// for SessionAuth, which has its own tests.
func testUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get("X-Test-User")
		if id == "" {
			return middleware.DenyJSON(c)
		}
		c.Set(middleware.KeyUserID, id)
		c.Set(middleware.KeyUser, &model.User{ID: id, Name: "Test " + id, Email: id + "@example.com"})
		return next(c)
	}
}

type testEnv struct {
	e        *echo.Echo
	contacts *memContacts
	users    *memUsers
	revoker  *memRevoker
	pub      *recordingPublisher
	api      *ContactHandler
	auth     *AuthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		e:        echo.New(),
		contacts: newMemContacts(),
		users:    newMemUsers(),
		revoker:  &memRevoker{revoked: map[string]time.Time{}, enabled: true},
		pub:      &recordingPublisher{},
	}
	r, err := view.New()
	require.NoError(t, err)
	env.e.Renderer = r

	env.api = NewContactHandler(env.contacts, env.pub, nil, logging.Nop())
	env.api.Now = func() time.Time { return testNow }
	env.auth = &AuthHandler{
		Users:      env.users,
		Revoker:    env.revoker,
		Secret:     "test-secret",
		TTL:        time.Hour,
		BcryptCost: bcrypt.MinCost,
		Log:        logging.Nop(),
	}
	pages := NewPageHandler(env.api, env.auth)

	api := env.e.Group("/api", testUser)
	api.POST("/contacts", env.api.Create)
	api.GET("/contacts", env.api.List)
	api.GET("/contacts/:id", env.api.Get)
	api.PATCH("/contacts/:id", env.api.Update)
	api.PUT("/contacts/:id", env.api.Update)
	api.DELETE("/contacts/:id", env.api.Delete)
	api.GET("/stats", env.api.Stats)
	api.GET("/map", env.api.Map)
	api.GET("/calendar", env.api.Calendar)

	env.e.POST("/auth/signup", env.auth.Signup)
	env.e.POST("/auth/login", env.auth.Login)
	env.e.POST("/auth/logout", env.auth.Logout)
	env.e.GET("/auth/me", env.auth.Me, testUser)

	env.e.GET("/login", pages.LoginForm)
	env.e.POST("/login", pages.Login)
	env.e.GET("/signup", pages.SignupForm)
	env.e.POST("/signup", pages.Signup)
	env.e.POST("/logout", pages.Logout)
	g := env.e.Group("/pages", testUser)
	g.GET("/", pages.Dashboard)
	g.GET("/contacts", pages.Contacts)
	g.POST("/contacts", pages.CreateContact)
	g.GET("/contacts/:id/edit", pages.EditContact)
	g.POST("/contacts/:id", pages.UpdateContact)
	g.POST("/contacts/:id/delete", pages.DeleteContact)
	g.GET("/map", pages.Map)
	g.GET("/calendar", pages.Calendar)
	g.GET("/analytics", pages.Analytics)
	return env
}

func (env *testEnv) do(method, path, user, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) json(method, path, user, body string) *httptest.ResponseRecorder {
	return env.do(method, path, user, echo.MIMEApplicationJSON, body)
}

func (env *testEnv) form(path, user, body string) *httptest.ResponseRecorder {
	return env.do(http.MethodPost, path, user, echo.MIMEApplicationForm, body)
}

var errDBDown = errors.New("dial tcp 10.0.0.5:3306: connection refused")
