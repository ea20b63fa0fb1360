package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/qslx/internal/events"
	"github.com/iliyamo/qslx/internal/stats"
)

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func (env *testEnv) create(t *testing.T, user, body string) map[string]any {
	t.Helper()
	rec := env.json(http.MethodPost, "/api/contacts", user, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec.Body.Bytes())
}

func TestCreateContact(t *testing.T) {
	env := newTestEnv(t)

	got := env.create(t, "alice", `{"callsign":" w1abc ","date":"2024-06-01T14:30","frequency":14.074,
		"mode":"FT8","band":"20m","gridSquare":"fn31","latitude":41.7,"longitude":-72.7,"country":"USA"}`)

	assert.NotEmpty(t, got["id"])
	assert.Equal(t, "W1ABC", got["callsign"])
	assert.Equal(t, "FN31", got["gridSquare"])
	assert.Equal(t, "2024-06-01T14:30:00Z", got["date"])
	assert.Equal(t, 14.074, got["frequency"])
	assert.NotContains(t, got, "userId")
	assert.Equal(t, []events.Type{events.ContactCreated}, env.pub.types())
}

func TestCreateContact_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.json(http.MethodPost, "/api/contacts", "alice", `{"band":"20m"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[validationResponse](t, rec.Body.Bytes())
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "is required", body.Fields["callsign"])
	assert.Equal(t, "is required", body.Fields["date"])

	rec = env.json(http.MethodPost, "/api/contacts", "alice", `{"callsign":"W1ABC","date":"last tuesday"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[validationResponse](t, rec.Body.Bytes())
	assert.Equal(t, dateFormatHint, body.Fields["date"])

	rec = env.json(http.MethodPost, "/api/contacts", "alice", `{"callsign":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, env.contacts.byID, "nothing may be stored on validation failure")
	assert.Empty(t, env.pub.types())
}

func TestCreateContact_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	rec := env.json(http.MethodPost, "/api/contacts", "", `{"callsign":"W1ABC","date":"2024-06-01"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
}

func TestListContacts_ScopedAndOrdered(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "alice", `{"callsign":"OLD1","date":"2024-01-01"}`)
	env.create(t, "alice", `{"callsign":"NEW1","date":"2024-06-01"}`)
	env.create(t, "bob", `{"callsign":"BOB1","date":"2024-03-01"}`)

	rec := env.json(http.MethodGet, "/api/contacts", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Items []map[string]any `json:"items"`
	}](t, rec.Body.Bytes())
	require.Len(t, body.Items, 2)
	assert.Equal(t, "NEW1", body.Items[0]["callsign"])
	assert.Equal(t, "OLD1", body.Items[1]["callsign"])

	rec = env.json(http.MethodGet, "/api/contacts", "carol", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestGetContact_OtherUserIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	c := env.create(t, "alice", `{"callsign":"W1ABC","date":"2024-06-01"}`)
	id := c["id"].(string)

	rec := env.json(http.MethodGet, "/api/contacts/"+id, "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	other := env.json(http.MethodGet, "/api/contacts/"+id, "bob", "")
	missing := env.json(http.MethodGet, "/api/contacts/nope", "bob", "")
	assert.Equal(t, http.StatusNotFound, other.Code)
	assert.Equal(t, missing.Code, other.Code)
	assert.Equal(t, missing.Body.String(), other.Body.String())
}

func TestUpdateContact_Partial(t *testing.T) {
	env := newTestEnv(t)
	c := env.create(t, "alice", `{"callsign":"W1ABC","date":"2024-06-01","band":"20m","mode":"FT8","frequency":14.074,"notes":"first"}`)
	id := c["id"].(string)

	rec := env.json(http.MethodPatch, "/api/contacts/"+id, "alice", `{"band":"40m"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec.Body.Bytes())
	assert.Equal(t, "40m", got["band"])
	assert.Equal(t, "W1ABC", got["callsign"])
	assert.Equal(t, "FT8", got["mode"])
	assert.Equal(t, 14.074, got["frequency"])
	assert.Equal(t, "first", got["notes"])

	rec = env.json(http.MethodPut, "/api/contacts/"+id, "alice", `{"frequency":null,"notes":null,"callsign":"k2def"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[map[string]any](t, rec.Body.Bytes())
	assert.NotContains(t, got, "frequency")
	assert.NotContains(t, got, "notes")
	assert.Equal(t, "K2DEF", got["callsign"])
	assert.Equal(t, "40m", got["band"])

	assert.Equal(t, []events.Type{events.ContactCreated, events.ContactUpdated, events.ContactUpdated}, env.pub.types())
}

func TestUpdateContact_Errors(t *testing.T) {
	env := newTestEnv(t)
	c := env.create(t, "alice", `{"callsign":"W1ABC","date":"2024-06-01"}`)
	id := c["id"].(string)

	rec := env.json(http.MethodPatch, "/api/contacts/"+id, "alice", `{"callsign":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must not be empty", decode[validationResponse](t, rec.Body.Bytes()).Fields["callsign"])

	rec = env.json(http.MethodPatch, "/api/contacts/"+id, "alice", `{"frequency":"fast"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be a number", decode[validationResponse](t, rec.Body.Bytes()).Fields["frequency"])

	rec = env.json(http.MethodPatch, "/api/contacts/"+id, "bob", `{"band":"40m"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.json(http.MethodPatch, "/api/contacts/"+id, "alice", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.json(http.MethodGet, "/api/contacts/"+id, "alice", "")
	assert.Equal(t, "W1ABC", decode[map[string]any](t, rec.Body.Bytes())["callsign"])
}

func TestDeleteContact(t *testing.T) {
	env := newTestEnv(t)
	c := env.create(t, "alice", `{"callsign":"W1ABC","date":"2024-06-01"}`)
	id := c["id"].(string)

	assert.Equal(t, http.StatusNotFound, env.json(http.MethodDelete, "/api/contacts/"+id, "bob", "").Code)
	assert.Equal(t, http.StatusNoContent, env.json(http.MethodDelete, "/api/contacts/"+id, "alice", "").Code)
	assert.Equal(t, http.StatusNotFound, env.json(http.MethodDelete, "/api/contacts/"+id, "alice", "").Code)
	assert.Equal(t, http.StatusNotFound, env.json(http.MethodGet, "/api/contacts/"+id, "alice", "").Code)
	assert.Equal(t, []events.Type{events.ContactCreated, events.ContactDeleted}, env.pub.types())
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "alice", `{"callsign":"W1ABC","date":"2024-06-01T10:00","band":"20m","mode":"FT8","frequency":14.074,"country":"USA"}`)
	env.create(t, "alice", `{"callsign":"W1ABC","date":"2024-06-01T20:00","band":"20m","mode":"SSB","frequency":14.25,"country":"USA"}`)
	env.create(t, "alice", `{"callsign":"JA1XYZ","date":"2024-06-02","band":"40m","frequency":0,"pathType":"F2","country":"Japan"}`)
	env.create(t, "bob", `{"callsign":"BOB1","date":"2024-06-02","band":"10m"}`)

	rec := env.json(http.MethodGet, "/api/stats", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[stats.Stats](t, rec.Body.Bytes())
	assert.Equal(t, 3, s.TotalContacts)
	assert.Equal(t, 2, s.UniqueCallsigns)
	assert.Equal(t, 2, s.UniqueCountries)
	assert.Equal(t, map[string]int{"20m": 2, "40m": 1}, s.BandCounts)
	assert.Equal(t, map[string]int{"FT8": 1, "SSB": 1}, s.ModeCounts)
	assert.Equal(t, map[string]int{"F2": 1}, s.PathTypeCounts)
	assert.Equal(t, map[string]int{"14MHz": 2}, s.FrequencyRanges)
	assert.Equal(t, map[string]int{"2024-06-01": 2, "2024-06-02": 1}, s.ContactsByDate)

	rec = env.json(http.MethodGet, "/api/stats", "carol", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s = decode[stats.Stats](t, rec.Body.Bytes())
	assert.Zero(t, s.TotalContacts)
	assert.Empty(t, s.BandCounts)
}

func TestMap_OnlyContactsWithBothCoordinates(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "alice", `{"callsign":"JA1XYZ","date":"2024-06-01","latitude":35.68,"longitude":139.69,"band":"20m"}`)
	env.create(t, "alice", `{"callsign":"HALF","date":"2024-06-01","latitude":10}`)
	env.create(t, "alice", `{"callsign":"NONE","date":"2024-06-01"}`)

	rec := env.json(http.MethodGet, "/api/map", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Items []map[string]any `json:"items"`
	}](t, rec.Body.Bytes())
	require.Len(t, body.Items, 1)
	assert.Equal(t, "JA1XYZ", body.Items[0]["callsign"])
	assert.Equal(t, 35.68, body.Items[0]["latitude"])
	assert.NotContains(t, body.Items[0], "notes")
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "alice", `{"callsign":"A","date":"2024-06-14"}`)
	env.create(t, "alice", `{"callsign":"B","date":"2024-06-16"}`)

	rec := env.json(http.MethodGet, "/api/calendar", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Year   int `json:"year"`
		Max    int `json:"max"`
		Months []struct {
			Name string `json:"name"`
			Days []struct {
				Date  string `json:"date"`
				Count int    `json:"count"`
				Level string `json:"level"`
			} `json:"days"`
		} `json:"months"`
	}](t, rec.Body.Bytes())

	assert.Equal(t, 2024, body.Year)
	assert.Equal(t, 1, body.Max)
	require.Len(t, body.Months, 12)
	june := body.Months[5]
	assert.Equal(t, "Jun 2024", june.Name)
	assert.Equal(t, "l5", june.Days[13].Level)
	assert.Equal(t, "future", june.Days[15].Level)
	assert.Equal(t, 1, june.Days[15].Count)
}

func TestStoreErrorsAreNotLeaked(t *testing.T) {
	env := newTestEnv(t)
	env.contacts.err = errDBDown

	for _, path := range []string{"/api/contacts", "/api/stats", "/api/map", "/api/calendar"} {
		rec := env.json(http.MethodGet, path, "alice", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5", path)
	}
}
