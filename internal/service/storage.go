package service

import (
	"context"
	"time"

	"github.com/tutorhive/tutorhive-server/internal/model"
)

// TxRunner executes fn inside one store transaction. The transaction
// travels in the context fn receives; every store call made with that
// context joins it. Services never hold in-process locks across store or
// collaborator calls — all coordination is the store's.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AvailabilityStore persists availability and time-off blocks and answers
// temporal-overlap queries for them. Overlap semantics are half-open
// [start, end), matching model.Overlaps.
type AvailabilityStore interface {
	CreateAvailabilityBlock(ctx context.Context, block *model.AvailabilityBlock) error
	CreateTimeOffBlock(ctx context.Context, block *model.TimeOffBlock) error
	HasTimeOffOverlap(ctx context.Context, tutorID int64, startAt, endAt time.Time) (bool, error)
	ActiveRecurringBlocks(ctx context.Context) ([]*model.AvailabilityBlock, error)
}

// SlotStore persists slots. Status transitions are single guarded
// updates: each mutation returns false when the guard did not match, so
// exactly one of any set of concurrent callers observes success.
type SlotStore interface {
	// Create inserts an OPEN slot; ErrDuplicateSlot when a slot for the
	// same (tutor, start_at) already exists.
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	OpenSlotsInRange(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Slot, error)

	// Hold transitions open->held, writing token, holder and expiry in the
	// same statement. Returns false when the slot was not open.
	Hold(ctx context.Context, slotID, studentID int64, token string, expiresAt time.Time) (bool, error)
	// GetHeldByToken locks and returns the held slot carrying token, nil
	// when no such hold exists.
	GetHeldByToken(ctx context.Context, token string) (*model.Slot, error)
	// MarkBooked transitions held->booked and clears the hold. Returns
	// false when the slot is no longer held.
	MarkBooked(ctx context.Context, slotID int64) (bool, error)
	// Release transitions held->open and clears the hold, guarded by the
	// token: a stale release can never touch a newer hold. Returns false
	// when no live hold carries the token (release is idempotent upstream).
	Release(ctx context.Context, token string) (bool, error)
	// BookOpen transitions open->booked directly (reschedule target).
	BookOpen(ctx context.Context, slotID int64) (bool, error)
	// Reopen transitions booked->open (cancellation).
	Reopen(ctx context.Context, slotID int64) (bool, error)

	// CloseOverlapping closes every OPEN slot of the tutor overlapping
	// [startAt, endAt) and returns how many were closed. One-way.
	CloseOverlapping(ctx context.Context, tutorID int64, startAt, endAt time.Time) (int64, error)
	// ReleaseExpired reopens every held slot whose expiry is before now.
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
	// SoftDeletePastBefore retires open/closed slots ending before cutoff.
	SoftDeletePastBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	// GetByIDForUpdate locks the booking row for the current transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Booking, error)
	SetCanceled(ctx context.Context, id int64, reason string, at time.Time) error
	// SetCalendarEventIDs records external event ids after the booking is
	// committed; best-effort bookkeeping.
	SetCalendarEventIDs(ctx context.Context, id int64, tutorEventID, studentEventID *string) error
}

type TutorStore interface {
	GetProfile(ctx context.Context, tutorID int64) (*model.TutorProfile, error)
}

// CreditStore is the prepaid-credit ledger. Balance reads and debit
// appends run inside the caller's transaction so a credit-paid booking
// and its ledger entry commit together.
type CreditStore interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Append(ctx context.Context, entry *model.CreditEntry) error
}
