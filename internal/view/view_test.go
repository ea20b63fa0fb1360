package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/qslx/internal/calendar"
	"github.com/iliyamo/qslx/internal/model"
	"github.com/iliyamo/qslx/internal/stats"
)

type testForm struct {
	Callsign, Date, Frequency, Mode, Band, SignalType, PathType string
	RSTSent, RSTReceived, GridSquare, Latitude, Longitude        string
	Country, State, Notes                                        string
}

type testContactsData struct {
	ID       string
	Form     testForm
	Errors   map[string]string
	Contacts []*model.Contact
}

func render(t *testing.T, name string, p Page) string {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, name, p, nil))
	return buf.String()
}

func TestRender_Dashboard(t *testing.T) {
	s := stats.Compute([]*model.Contact{{Callsign: "W1ABC", Band: "20m", Country: "USA"}})
	out := render(t, "dashboard", Page{
		Title: "Dashboard",
		Nav:   "dashboard",
		User:  &model.User{Name: "Alice"},
		Data: struct {
			Stats  stats.Stats
			Recent []*model.Contact
		}{Stats: s, Recent: []*model.Contact{{Callsign: "W1ABC", Date: time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC)}}},
	})
	assert.Contains(t, out, "Bands active")
	assert.Contains(t, out, "W1ABC")
	assert.Contains(t, out, "2024-06-01 14:30")
	assert.Contains(t, out, `class="active"`)
}

func TestRender_ContactsEscapesInput(t *testing.T) {
	f := 14.074
	out := render(t, "contacts", Page{
		Title: "Contacts",
		User:  &model.User{Name: "Alice"},
		Data: testContactsData{
			Form:     testForm{Callsign: `<script>alert(1)</script>`},
			Errors:   map[string]string{"date": "is required"},
			Contacts: []*model.Contact{{ID: "c1", Callsign: "K2DEF", Frequency: &f}},
		},
	})
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "is required")
	assert.Contains(t, out, "14.074")
	assert.Contains(t, out, "/contacts/c1/delete")
}

func TestRender_Calendar(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	out := render(t, "calendar", Page{
		Title: "Calendar",
		User:  &model.User{},
		Data:  calendar.Build(map[string]int{"2024-06-15": 2}, now),
	})
	assert.Contains(t, out, "Jun 2024")
	assert.Contains(t, out, `class="cell l5 today"`)
	assert.Contains(t, out, `class="cell future"`)
}

func TestRender_Analytics(t *testing.T) {
	type section struct {
		Title   string
		Buckets []stats.Bucket
		Peak    int
	}
	out := render(t, "analytics", Page{
		Title: "Analytics",
		User:  &model.User{},
		Data: struct {
			Total    int
			Sections []section
		}{Total: 3, Sections: []section{
			{Title: "Bands", Buckets: []stats.Bucket{{Key: "20m", Count: 2}, {Key: "40m", Count: 1}}, Peak: 2},
			{Title: "Modes"},
		}},
	})
	assert.Contains(t, out, "width:100%")
	assert.Contains(t, out, "width:50%")
	assert.Contains(t, out, "No data.")
}

func TestRender_LoginWithoutUserHasNoNav(t *testing.T) {
	out := render(t, "login", Page{
		Title:  "Sign in",
		Errors: map[string]string{"email": "is required"},
		Data:   struct{ Email string }{"a@b.c"},
	})
	assert.NotContains(t, out, "<nav>")
	assert.Contains(t, out, "is required")
}

func TestFuncs(t *testing.T) {
	f := 7.0
	assert.Equal(t, "7", formatNumber(&f))
	assert.Equal(t, "", formatNumber(nil))
	assert.Equal(t, "", formatDate(time.Time{}))
	assert.Equal(t, 33, percent(1, 3))
	assert.Equal(t, 0, percent(1, 0))
}
