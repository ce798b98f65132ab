package model

import "time"

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCanceled       BookingStatus = "canceled"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusRefunded       BookingStatus = "refunded"
)

// Terminal reports whether a booking status permits no further transition.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCanceled || s == BookingStatusCompleted
}

type PaymentMethod string

const (
	PaymentMethodCredit PaymentMethod = "credit"
	PaymentMethodCard   PaymentMethod = "card"
)

// Booking is a confirmed (or historical) session. Reschedules create a new
// booking and cancel the old one; times of a confirmed booking are never
// mutated in place.
type Booking struct {
	ID                     int64         `json:"id"`
	StudentID              int64         `json:"student_id"`
	TutorID                int64         `json:"tutor_id"`
	StartAt                time.Time     `json:"start_at"`
	EndAt                  time.Time     `json:"end_at"`
	Status                 BookingStatus `json:"status"`
	PriceCents             int64         `json:"price_cents"`
	PaymentMethod          PaymentMethod `json:"payment_method"`
	PaymentRef             *string       `json:"payment_ref,omitempty"`
	SlotID                 *int64        `json:"slot_id,omitempty"`
	CalendarEventIDTutor   *string       `json:"calendar_event_id_tutor,omitempty"`
	CalendarEventIDStudent *string       `json:"calendar_event_id_student,omitempty"`
	JoinLink               *string       `json:"join_link,omitempty"`
	Notes                  string        `json:"notes,omitempty"`
	CancellationReason     *string       `json:"cancellation_reason,omitempty"`
	CanceledAt             *time.Time    `json:"canceled_at,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}
