package model

import (
	"math"
	"strings"
	"time"
)

// Contact represents one logged QSO as stored in the `contacts` table.
// Every contact belongs to exactly one user and is only ever read or
// written through queries scoped by that user.
//
// Fields:
//  ID          – opaque identifier (uuid) assigned at creation.
//  UserID      – owning user (users.id).
//  Callsign    – station worked, upper-cased at ingestion.
//  Date        – date and time of the contact (UTC).
//  Frequency   – frequency in MHz (nullable).
//  Mode        – modulation, e.g. SSB, CW, FT8.
//  Band        – band name, e.g. 20m.
//  SignalType  – free classification of the signal.
//  PathType    – propagation path, e.g. ground wave, F2, EME.
//  RSTSent     – signal report sent.
//  RSTReceived – signal report received.
//  GridSquare  – Maidenhead locator.
//  Latitude    – latitude in degrees (nullable).
//  Longitude   – longitude in degrees (nullable).
//  Country     – country of the station worked.
//  State       – state or province.
//  Notes       – free text.
type Contact struct {
	ID          string    `json:"id"`                    // contacts.id
	UserID      string    `json:"-"`                     // contacts.user_id
	Callsign    string    `json:"callsign"`              // contacts.callsign
	Date        time.Time `json:"date"`                  // contacts.date
	Frequency   *float64  `json:"frequency,omitempty"`   // contacts.frequency (nullable)
	Mode        string    `json:"mode,omitempty"`        // contacts.mode
	Band        string    `json:"band,omitempty"`        // contacts.band
	SignalType  string    `json:"signalType,omitempty"`  // contacts.signal_type
	PathType    string    `json:"pathType,omitempty"`    // contacts.path_type
	RSTSent     string    `json:"rstSent,omitempty"`     // contacts.rst_sent
	RSTReceived string    `json:"rstReceived,omitempty"` // contacts.rst_received
	GridSquare  string    `json:"gridSquare,omitempty"`  // contacts.grid_square
	Latitude    *float64  `json:"latitude,omitempty"`    // contacts.latitude (nullable)
	Longitude   *float64  `json:"longitude,omitempty"`   // contacts.longitude (nullable)
	Country     string    `json:"country,omitempty"`     // contacts.country
	State       string    `json:"state,omitempty"`       // contacts.state
	Notes       string    `json:"notes,omitempty"`       // contacts.notes
	CreatedAt   time.Time `json:"createdAt"`             // contacts.created_at
	UpdatedAt   time.Time `json:"updatedAt"`             // contacts.updated_at
}

// HasCoordinates reports whether both latitude and longitude are recorded.
// A contact with only one of them cannot be placed on the map.
func (c *Contact) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Location projects the contact onto the reduced map field set. The second
// return value is false when the contact has no complete coordinate pair.
func (c *Contact) Location() (ContactLocation, bool) {
	if !c.HasCoordinates() {
		return ContactLocation{}, false
	}
	return ContactLocation{
		ID:        c.ID,
		Callsign:  c.Callsign,
		Date:      c.Date,
		Latitude:  *c.Latitude,
		Longitude: *c.Longitude,
		Country:   c.Country,
		Band:      c.Band,
		Mode:      c.Mode,
	}, true
}

// ContactLocation is the projection of a contact returned for map display.
type ContactLocation struct {
	ID        string    `json:"id"`
	Callsign  string    `json:"callsign"`
	Date      time.Time `json:"date"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Country   string    `json:"country,omitempty"`
	Band      string    `json:"band,omitempty"`
	Mode      string    `json:"mode,omitempty"`
}

// ContactInput carries the fields of a contact being created.
type ContactInput struct {
	Callsign    string
	Date        time.Time
	Frequency   *float64
	Mode        string
	Band        string
	SignalType  string
	PathType    string
	RSTSent     string
	RSTReceived string
	GridSquare  string
	Latitude    *float64
	Longitude   *float64
	Country     string
	State       string
	Notes       string
}

// Normalize trims every text field and upper-cases the callsign and grid
// square.
func (in *ContactInput) Normalize() {
	in.Callsign = normalizeCallsign(in.Callsign)
	in.GridSquare = normalizeCallsign(in.GridSquare)
	for _, s := range []*string{&in.Mode, &in.Band, &in.SignalType, &in.PathType,
		&in.RSTSent, &in.RSTReceived, &in.Country, &in.State} {
		*s = strings.TrimSpace(*s)
	}
	in.Notes = strings.TrimSpace(in.Notes)
}

// Validate checks the required fields. It returns a *ValidationError or nil.
func (in *ContactInput) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(in.Callsign) == "" {
		verr.Add("callsign", "is required")
	}
	if in.Date.IsZero() {
		verr.Add("date", "is required")
	}
	checkNumber(verr, "frequency", in.Frequency)
	checkNumber(verr, "latitude", in.Latitude)
	checkNumber(verr, "longitude", in.Longitude)
	return verr.OrNil()
}

// Contact builds the record that will be stored for userID under id.
func (in *ContactInput) Contact(id, userID string) *Contact {
	return &Contact{
		ID:          id,
		UserID:      userID,
		Callsign:    in.Callsign,
		Date:        in.Date.UTC(),
		Frequency:   in.Frequency,
		Mode:        in.Mode,
		Band:        in.Band,
		SignalType:  in.SignalType,
		PathType:    in.PathType,
		RSTSent:     in.RSTSent,
		RSTReceived: in.RSTReceived,
		GridSquare:  in.GridSquare,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Country:     in.Country,
		State:       in.State,
		Notes:       in.Notes,
	}
}

// OptionalFloat is a partial-update value for a nullable numeric column.
// Set reports whether the caller supplied the field at all; a supplied nil
// Value clears the column.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// SetFloat returns a supplied OptionalFloat holding v.
func SetFloat(v float64) OptionalFloat { return OptionalFloat{Set: true, Value: &v} }

// ContactPatch carries a partial update. Nil pointers and unset
// OptionalFloats leave the stored value untouched; a supplied empty string
// clears an optional text column.
type ContactPatch struct {
	Callsign    *string
	Date        *time.Time
	Frequency   OptionalFloat
	Mode        *string
	Band        *string
	SignalType  *string
	PathType    *string
	RSTSent     *string
	RSTReceived *string
	GridSquare  *string
	Latitude    OptionalFloat
	Longitude   OptionalFloat
	Country     *string
	State       *string
	Notes       *string
}

// IsEmpty reports whether the patch supplies no field.
func (p *ContactPatch) IsEmpty() bool {
	return p.Callsign == nil && p.Date == nil && !p.Frequency.Set && p.Mode == nil &&
		p.Band == nil && p.SignalType == nil && p.PathType == nil && p.RSTSent == nil &&
		p.RSTReceived == nil && p.GridSquare == nil && !p.Latitude.Set && !p.Longitude.Set &&
		p.Country == nil && p.State == nil && p.Notes == nil
}

// Normalize applies the same ingestion rules as ContactInput.Normalize to
// the supplied fields.
func (p *ContactPatch) Normalize() {
	if p.Callsign != nil {
		v := normalizeCallsign(*p.Callsign)
		p.Callsign = &v
	}
	if p.GridSquare != nil {
		v := normalizeCallsign(*p.GridSquare)
		p.GridSquare = &v
	}
	for _, s := range []**string{&p.Mode, &p.Band, &p.SignalType, &p.PathType,
		&p.RSTSent, &p.RSTReceived, &p.Country, &p.State, &p.Notes} {
		if *s != nil {
			v := strings.TrimSpace(**s)
			*s = &v
		}
	}
	if p.Date != nil {
		d := p.Date.UTC()
		p.Date = &d
	}
}

// Validate rejects a supplied but empty callsign or a supplied zero date.
func (p *ContactPatch) Validate() error {
	verr := &ValidationError{}
	if p.Callsign != nil && strings.TrimSpace(*p.Callsign) == "" {
		verr.Add("callsign", "must not be empty")
	}
	if p.Date != nil && p.Date.IsZero() {
		verr.Add("date", "must not be empty")
	}
	checkNumber(verr, "frequency", p.Frequency.Value)
	checkNumber(verr, "latitude", p.Latitude.Value)
	checkNumber(verr, "longitude", p.Longitude.Value)
	return verr.OrNil()
}

// Apply copies the supplied fields onto c.
func (p *ContactPatch) Apply(c *Contact) {
	if p.Callsign != nil {
		c.Callsign = *p.Callsign
	}
	if p.Date != nil {
		c.Date = *p.Date
	}
	if p.Frequency.Set {
		c.Frequency = p.Frequency.Value
	}
	if p.Latitude.Set {
		c.Latitude = p.Latitude.Value
	}
	if p.Longitude.Set {
		c.Longitude = p.Longitude.Value
	}
	applyString(&c.Mode, p.Mode)
	applyString(&c.Band, p.Band)
	applyString(&c.SignalType, p.SignalType)
	applyString(&c.PathType, p.PathType)
	applyString(&c.RSTSent, p.RSTSent)
	applyString(&c.RSTReceived, p.RSTReceived)
	applyString(&c.GridSquare, p.GridSquare)
	applyString(&c.Country, p.Country)
	applyString(&c.State, p.State)
	applyString(&c.Notes, p.Notes)
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func normalizeCallsign(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func checkNumber(verr *ValidationError, field string, v *float64) {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		verr.Add(field, "must be a finite number")
	}
}
