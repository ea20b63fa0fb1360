package events

import (
	"context"
	"time"

	"github.com/iliyamo/qslx/internal/logging"
)

// PublishTimeout bounds a single best-effort publish.
const PublishTimeout = 2 * time.Second

// Publisher delivers contact events.
type Publisher interface {
	Publish(ctx context.Context, ev ContactEvent) error
}

// Nop discards every event. It is used when events are disabled.
type Nop struct{}

func (Nop) Publish(context.Context, ContactEvent) error { return nil }

// Notify publishes ev with PublishTimeout and logs a failure instead of
// returning it. The request that caused the event has already succeeded.
func Notify(ctx context.Context, p Publisher, log logging.Logger, ev ContactEvent) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn(ctx, "contact event not published",
			"type", string(ev.Type), "contact_id", ev.ContactID, "err", err)
	}
}
