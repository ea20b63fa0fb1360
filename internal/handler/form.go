package handler

import (
	"strconv"
	"time"

	"github.com/iliyamo/qslx/internal/model"
)

// ContactForm holds the raw values of the HTML contact form so they can be
// redisplayed after a validation error.
type ContactForm struct {
	Callsign    string `form:"callsign"`
	Date        string `form:"date"`
	Frequency   string `form:"frequency"`
	Mode        string `form:"mode"`
	Band        string `form:"band"`
	SignalType  string `form:"signalType"`
	PathType    string `form:"pathType"`
	RSTSent     string `form:"rstSent"`
	RSTReceived string `form:"rstReceived"`
	GridSquare  string `form:"gridSquare"`
	Latitude    string `form:"latitude"`
	Longitude   string `form:"longitude"`
	Country     string `form:"country"`
	State       string `form:"state"`
	Notes       string `form:"notes"`
}

const datetimeLocal = "2006-01-02T15:04"

func formFromContact(c *model.Contact) ContactForm {
	return ContactForm{
		Callsign:    c.Callsign,
		Date:        c.Date.UTC().Format(datetimeLocal),
		Frequency:   formatFloat(c.Frequency),
		Mode:        c.Mode,
		Band:        c.Band,
		SignalType:  c.SignalType,
		PathType:    c.PathType,
		RSTSent:     c.RSTSent,
		RSTReceived: c.RSTReceived,
		GridSquare:  c.GridSquare,
		Latitude:    formatFloat(c.Latitude),
		Longitude:   formatFloat(c.Longitude),
		Country:     c.Country,
		State:       c.State,
		Notes:       c.Notes,
	}
}

// numbers parses the three numeric fields, recording failures in verr.
func (f *ContactForm) numbers(verr *model.ValidationError) (freq, lat, lon *float64) {
	parse := func(field, raw string) *float64 {
		v, err := model.ParseOptionalFloat(raw)
		if err != nil {
			verr.Add(field, "must be a number")
		}
		return v
	}
	return parse("frequency", f.Frequency), parse("latitude", f.Latitude), parse("longitude", f.Longitude)
}

// Input converts the form into a new contact.
func (f *ContactForm) Input() (model.ContactInput, error) {
	verr := &model.ValidationError{}
	in := model.ContactInput{
		Callsign:    f.Callsign,
		Mode:        f.Mode,
		Band:        f.Band,
		SignalType:  f.SignalType,
		PathType:    f.PathType,
		RSTSent:     f.RSTSent,
		RSTReceived: f.RSTReceived,
		GridSquare:  f.GridSquare,
		Country:     f.Country,
		State:       f.State,
		Notes:       f.Notes,
	}
	if f.Date != "" {
		d, err := model.ParseContactDate(f.Date)
		if err != nil {
			verr.Add("date", dateFormatHint)
		}
		in.Date = d
	}
	in.Frequency, in.Latitude, in.Longitude = f.numbers(verr)
	in.Normalize()
	mergeValidation(verr, in.Validate())
	return in, verr.OrNil()
}

// Patch converts the edit form into an update that replaces every field;
// blank optional inputs clear the stored value.
func (f *ContactForm) Patch() (model.ContactPatch, error) {
	verr := &model.ValidationError{}
	str := func(s string) *string { return &s }
	p := model.ContactPatch{
		Callsign:    str(f.Callsign),
		Mode:        str(f.Mode),
		Band:        str(f.Band),
		SignalType:  str(f.SignalType),
		PathType:    str(f.PathType),
		RSTSent:     str(f.RSTSent),
		RSTReceived: str(f.RSTReceived),
		GridSquare:  str(f.GridSquare),
		Country:     str(f.Country),
		State:       str(f.State),
		Notes:       str(f.Notes),
	}
	date := new(time.Time)
	if f.Date != "" {
		parsed, err := model.ParseContactDate(f.Date)
		if err != nil {
			verr.Add("date", dateFormatHint)
		} else {
			*date = parsed
		}
	}
	p.Date = date
	freq, lat, lon := f.numbers(verr)
	p.Frequency = model.OptionalFloat{Set: true, Value: freq}
	p.Latitude = model.OptionalFloat{Set: true, Value: lat}
	p.Longitude = model.OptionalFloat{Set: true, Value: lon}
	p.Normalize()
	mergeValidation(verr, p.Validate())
	return p, verr.OrNil()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
