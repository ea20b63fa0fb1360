// Package repository contains data access logic separated from HTTP handlers.
// This file holds the contact store. Every statement is scoped by user_id so
// a user can only ever read or mutate their own log.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/qslx/internal/model"
)

const contactColumns = `id, user_id, callsign, date, frequency, mode, band, signal_type, path_type,
	rst_sent, rst_received, grid_square, latitude, longitude, country, state, notes, created_at, updated_at`

// ContactRepo encapsulates all database queries related to contacts.
type ContactRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewContactRepo constructs a ContactRepo with the provided DB handle.
func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }}
}

// Create validates in, assigns a new id and inserts the contact for userID.
// Validation failures are returned as *model.ValidationError and nothing is
// written.
func (r *ContactRepo) Create(ctx context.Context, userID string, in model.ContactInput) (*model.Contact, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c := in.Contact(uuid.NewString(), userID)
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt

	const q = `INSERT INTO contacts (` + contactColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.UserID, c.Callsign, c.Date, nullFloat(c.Frequency),
		nullString(c.Mode), nullString(c.Band), nullString(c.SignalType), nullString(c.PathType),
		nullString(c.RSTSent), nullString(c.RSTReceived), nullString(c.GridSquare),
		nullFloat(c.Latitude), nullFloat(c.Longitude),
		nullString(c.Country), nullString(c.State), nullString(c.Notes),
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

// ListByUser returns all contacts of userID, newest first.
func (r *ContactRepo) ListByUser(ctx context.Context, userID string) ([]*model.Contact, error) {
	const q = `SELECT ` + contactColumns + `
	           FROM contacts WHERE user_id = ? ORDER BY date DESC, created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	out := []*model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return out, nil
}

// GetByIDAndUser fetches a contact by id but only if it belongs to userID.
// ErrNotFound is returned otherwise.
func (r *ContactRepo) GetByIDAndUser(ctx context.Context, id, userID string) (*model.Contact, error) {
	const q = `SELECT ` + contactColumns + ` FROM contacts WHERE id = ? AND user_id = ?`
	c, err := scanContact(r.db.QueryRowContext(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Update applies the supplied fields of p to the contact and returns the
// stored result. Fields absent from p are left unchanged. ErrNotFound is
// returned when the contact does not exist or belongs to someone else.
func (r *ContactRepo) Update(ctx context.Context, id, userID string, p model.ContactPatch) (*model.Contact, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		return r.GetByIDAndUser(ctx, id, userID)
	}

	sets, args := patchAssignments(&p)
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now(), id, userID)

	q := "UPDATE contacts SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetByIDAndUser(ctx, id, userID)
}

// Delete removes the contact. Deleting an id that does not exist or is not
// owned by userID returns ErrNotFound, so a repeated delete fails.
func (r *ContactRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWithCoordinates returns the map projection of every contact of userID
// that has both latitude and longitude, newest first.
func (r *ContactRepo) ListWithCoordinates(ctx context.Context, userID string) ([]model.ContactLocation, error) {
	const q = `SELECT id, callsign, date, latitude, longitude, country, band, mode
	           FROM contacts
	           WHERE user_id = ? AND latitude IS NOT NULL AND longitude IS NOT NULL
	           ORDER BY date DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list map contacts: %w", err)
	}
	defer rows.Close()

	out := []model.ContactLocation{}
	for rows.Next() {
		var (
			l                   model.ContactLocation
			country, band, mode sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Callsign, &l.Date, &l.Latitude, &l.Longitude, &country, &band, &mode); err != nil {
			return nil, fmt.Errorf("scan map contact: %w", err)
		}
		l.Date = l.Date.UTC()
		l.Country, l.Band, l.Mode = country.String, band.String, mode.String
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list map contacts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(s rowScanner) (*model.Contact, error) {
	var (
		c                       model.Contact
		freq, lat, lon          sql.NullFloat64
		mode, band, sig, path   sql.NullString
		rstS, rstR, grid        sql.NullString
		country, state, notes   sql.NullString
	)
	err := s.Scan(&c.ID, &c.UserID, &c.Callsign, &c.Date, &freq, &mode, &band, &sig, &path,
		&rstS, &rstR, &grid, &lat, &lon, &country, &state, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Date = c.Date.UTC()
	c.Frequency = floatPtr(freq)
	c.Latitude = floatPtr(lat)
	c.Longitude = floatPtr(lon)
	c.Mode, c.Band, c.SignalType, c.PathType = mode.String, band.String, sig.String, path.String
	c.RSTSent, c.RSTReceived, c.GridSquare = rstS.String, rstR.String, grid.String
	c.Country, c.State, c.Notes = country.String, state.String, notes.String
	return &c, nil
}

// patchAssignments turns the supplied fields of p into SET clauses in a
// fixed column order.
func patchAssignments(p *model.ContactPatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	str := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, nullString(*v))
		}
	}
	num := func(col string, v model.OptionalFloat) {
		if v.Set {
			sets = append(sets, col+" = ?")
			args = append(args, nullFloat(v.Value))
		}
	}

	if p.Callsign != nil {
		sets = append(sets, "callsign = ?")
		args = append(args, *p.Callsign)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *p.Date)
	}
	num("frequency", p.Frequency)
	str("mode", p.Mode)
	str("band", p.Band)
	str("signal_type", p.SignalType)
	str("path_type", p.PathType)
	str("rst_sent", p.RSTSent)
	str("rst_received", p.RSTReceived)
	str("grid_square", p.GridSquare)
	num("latitude", p.Latitude)
	num("longitude", p.Longitude)
	str("country", p.Country)
	str("state", p.State)
	str("notes", p.Notes)
	return sets, args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
