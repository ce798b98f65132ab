// Package external implements the collaborator interfaces consumed by the
// scheduling core: notification channels, the calendar bridge and the
// payment service client. Everything here is best-effort from the core's
// perspective.
package external

import (
	"context"
	"fmt"
	"strings"

	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/service"
)

// Directory resolves a user id to its notification addresses.
type Directory interface {
	Contact(ctx context.Context, userID int64) (*model.Contact, error)
}

// FanoutDispatcher delivers each notification through every configured
// channel. A channel failure is reported but does not stop the others.
type FanoutDispatcher struct {
	channels []service.NotificationDispatcher
}

func NewFanoutDispatcher(channels ...service.NotificationDispatcher) *FanoutDispatcher {
	return &FanoutDispatcher{channels: channels}
}

func (d *FanoutDispatcher) Notify(ctx context.Context, userID int64, event string, payload map[string]interface{}) error {
	var errs []string
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, userID, event, payload); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify user %d: %s", userID, strings.Join(errs, "; "))
	}
	return nil
}

// renderNotice formats a user-facing message for an event.
func renderNotice(event string, payload map[string]interface{}) (subject, body string) {
	switch event {
	case service.EventBookingConfirmed:
		subject = "Your session is confirmed"
	case service.EventBookingCanceled:
		subject = "Your session was canceled"
	case service.EventBookingRescheduled:
		subject = "Your session was rescheduled"
	default:
		subject = "Session update"
	}

	var b strings.Builder
	b.WriteString(subject)
	b.WriteString("\n")
	if v, ok := payload["start_at"]; ok {
		fmt.Fprintf(&b, "Starts: %v\n", v)
	}
	if v, ok := payload["end_at"]; ok {
		fmt.Fprintf(&b, "Ends: %v\n", v)
	}
	if v, ok := payload["booking_id"]; ok {
		fmt.Fprintf(&b, "Booking: %v\n", v)
	}
	return subject, b.String()
}
