// Package events defines the contact lifecycle messages published to the
// message broker and the publishers that deliver them.
package events

import (
	"time"

	"github.com/iliyamo/qslx/internal/model"
)

// Type names a contact lifecycle event. It doubles as the AMQP message type.
type Type string

const (
	ContactCreated Type = "contact.created"
	ContactUpdated Type = "contact.updated"
	ContactDeleted Type = "contact.deleted"
)

// ContactEvent is published after a contact is created, updated or
// deleted. It carries enough for downstream consumers (award trackers,
// QSL card queues) to act without querying the primary database.
type ContactEvent struct {
	Type       Type      `json:"type"`
	ContactID  string    `json:"contact_id"`
	UserID     string    `json:"user_id"`
	Callsign   string    `json:"callsign,omitempty"`
	Band       string    `json:"band,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	Date       string    `json:"date,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewContactEvent describes c. For deletions only the ids are known.
func NewContactEvent(t Type, c *model.Contact, now time.Time) ContactEvent {
	ev := ContactEvent{
		Type:       t,
		ContactID:  c.ID,
		UserID:     c.UserID,
		OccurredAt: now.UTC(),
	}
	if t != ContactDeleted {
		ev.Callsign = c.Callsign
		ev.Band = c.Band
		ev.Mode = c.Mode
		ev.Date = c.Date.UTC().Format(time.RFC3339)
	}
	return ev
}
