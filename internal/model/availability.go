package model

import "time"

// AvailabilityBlock is a tutor-declared open window, either one-off or
// recurring via an iCalendar RRULE string. Blocks are never booked
// directly; they are the source for slot generation.
type AvailabilityBlock struct {
	ID          int64      `json:"id"`
	TutorID     int64      `json:"tutor_id"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       time.Time  `json:"end_at"`
	IsRecurring bool       `json:"is_recurring"`
	RRule       *string    `json:"rrule,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// TimeOffBlock is a tutor-declared blackout window. Generated slots must
// never overlap one.
type TimeOffBlock struct {
	ID        int64      `json:"id"`
	TutorID   int64      `json:"tutor_id"`
	StartAt   time.Time  `json:"start_at"`
	EndAt     time.Time  `json:"end_at"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
