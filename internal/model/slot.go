package model

import (
	"errors"
	"time"
)

// ErrDuplicateSlot reports an insert colliding with an existing slot for
// the same tutor and start time.
var ErrDuplicateSlot = errors.New("slot already exists")

type SlotStatus string

const (
	SlotStatusOpen   SlotStatus = "open"
	SlotStatusHeld   SlotStatus = "held"
	SlotStatusBooked SlotStatus = "booked"
	SlotStatusClosed SlotStatus = "closed"
)

// Slot is the bookable unit generated from an availability block.
// Hold metadata lives on the row itself so the open->held transition
// and the token write are one atomic update.
type Slot struct {
	ID            int64      `json:"id"`
	TutorID       int64      `json:"tutor_id"`
	StartAt       time.Time  `json:"start_at"`
	EndAt         time.Time  `json:"end_at"`
	Status        SlotStatus `json:"status"`
	HoldToken     *string    `json:"hold_token,omitempty"`
	HeldBy        *int64     `json:"held_by,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// HoldExpired reports whether the slot carries a hold whose lease has run out.
func (s *Slot) HoldExpired(now time.Time) bool {
	return s.Status == SlotStatusHeld && s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now)
}

func (s *Slot) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}
