package service

import (
	"context"
	"time"

	"github.com/tutorhive/tutorhive-server/internal/model"
)

// PaymentAuthority is the opaque charge/refund capability. Authorization
// checks happen before slot state changes to booked; refunds run after
// the cancellation transaction commits.
type PaymentAuthority interface {
	// VerifyAuthorization confirms that ref is a successful authorization
	// for amountCents on behalf of userID.
	VerifyAuthorization(ctx context.Context, userID int64, amountCents int64, ref string) error
	Refund(ctx context.Context, bookingID int64, reason string) error
}

// CalendarBusyTimeSource reports externally booked intervals for a tutor.
// Callers treat a failed fetch as an empty list: over-availability beats
// taking the whole read path down.
type CalendarBusyTimeSource interface {
	BusyIntervals(ctx context.Context, tutorID int64, from, to time.Time) ([]model.Interval, error)
}

// CalendarEventSink mirrors bookings into the parties' calendars.
// Best-effort: failures are logged, never propagated.
type CalendarEventSink interface {
	CreateEvent(ctx context.Context, partyID int64, booking *model.Booking) (string, error)
	DeleteEvent(ctx context.Context, partyID int64, eventID string) error
}

// NotificationDispatcher delivers user-facing event notices. Fire and
// forget from the core's perspective.
type NotificationDispatcher interface {
	Notify(ctx context.Context, userID int64, event string, payload map[string]interface{}) error
}

// Notification event names shared with dispatch implementations.
const (
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingCanceled    = "booking_canceled"
	EventBookingRescheduled = "booking_rescheduled"
)
