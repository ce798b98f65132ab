package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/repository/base"
)

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(b *base.Repository) *SlotRepository {
	return &SlotRepository{Repository: b}
}

const slotColumns = `id, tutor_id, start_at, end_at, status, hold_token, held_by, hold_expires_at, created_at, updated_at, deleted_at`

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.TutorID,
		&slot.StartAt,
		&slot.EndAt,
		&slot.Status,
		&slot.HoldToken,
		&slot.HeldBy,
		&slot.HoldExpiresAt,
		&slot.CreatedAt,
		&slot.UpdatedAt,
		&slot.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create inserts an OPEN slot. A (tutor_id, start_at) duplicate maps to
// model.ErrDuplicateSlot so the generator can skip it.
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (tutor_id, start_at, end_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.Q(ctx).QueryRow(
		ctx, query,
		slot.TutorID,
		slot.StartAt,
		slot.EndAt,
		slot.Status,
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return model.ErrDuplicateSlot
		}
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID returns the slot or nil when it does not exist.
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE id = $1 AND deleted_at IS NULL
	`

	slot, err := scanSlot(r.Q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// OpenSlotsInRange returns the tutor's OPEN slots starting in [from, to).
func (r *SlotRepository) OpenSlotsInRange(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE tutor_id = $1
		  AND status = 'open'
		  AND start_at >= $2
		  AND start_at < $3
		  AND deleted_at IS NULL
		ORDER BY start_at
	`

	rows, err := r.Q(ctx).Query(ctx, query, tutorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get open slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// Hold flips open->held and records token, holder and expiry in the same
// statement. The status guard makes this a compare-and-swap: of N
// concurrent callers exactly one sees a row affected.
func (r *SlotRepository) Hold(ctx context.Context, slotID, studentID int64, token string, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'held', hold_token = $1, held_by = $2, hold_expires_at = $3, updated_at = now()
		WHERE id = $4 AND status = 'open' AND deleted_at IS NULL
	`

	tag, err := r.Q(ctx).Exec(ctx, query, token, studentID, expiresAt, slotID)
	if err != nil {
		return false, fmt.Errorf("hold slot: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetHeldByToken returns the held slot carrying token, locking the row
// when called inside a transaction. Nil when no live hold matches.
func (r *SlotRepository) GetHeldByToken(ctx context.Context, token string) (*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE hold_token = $1 AND status = 'held' AND deleted_at IS NULL
		FOR UPDATE
	`

	slot, err := scanSlot(r.Q(ctx).QueryRow(ctx, query, token))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get held slot by token: %w", err)
	}

	return slot, nil
}

// MarkBooked flips held->booked and clears the hold sidecar.
func (r *SlotRepository) MarkBooked(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'booked', hold_token = NULL, held_by = NULL, hold_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'held'
	`

	tag, err := r.Q(ctx).Exec(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("mark slot booked: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Release flips held->open and clears the hold sidecar. The token guard
// makes this a compare-and-swap like Hold: a release racing the reaper
// and a fresh hold matches zero rows instead of clobbering the new hold.
func (r *SlotRepository) Release(ctx context.Context, token string) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'open', hold_token = NULL, held_by = NULL, hold_expires_at = NULL, updated_at = now()
		WHERE hold_token = $1 AND status = 'held'
	`

	tag, err := r.Q(ctx).Exec(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// BookOpen flips open->booked directly; used when rescheduling onto an
// open slot, where no hold phase exists.
func (r *SlotRepository) BookOpen(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'booked', updated_at = now()
		WHERE id = $1 AND status = 'open' AND deleted_at IS NULL
	`

	tag, err := r.Q(ctx).Exec(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("book open slot: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Reopen flips booked->open after a cancellation.
func (r *SlotRepository) Reopen(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'open', updated_at = now()
		WHERE id = $1 AND status = 'booked'
	`

	tag, err := r.Q(ctx).Exec(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("reopen slot: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CloseOverlapping closes every OPEN slot of the tutor intersecting the
// half-open window [startAt, endAt).
func (r *SlotRepository) CloseOverlapping(ctx context.Context, tutorID int64, startAt, endAt time.Time) (int64, error) {
	query := `
		UPDATE slots
		SET status = 'closed', updated_at = now()
		WHERE tutor_id = $1
		  AND status = 'open'
		  AND start_at < $2
		  AND end_at > $3
		  AND deleted_at IS NULL
	`

	tag, err := r.Q(ctx).Exec(ctx, query, tutorID, endAt, startAt)
	if err != nil {
		return 0, fmt.Errorf("close overlapping slots: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ReleaseExpired reopens every held slot whose lease expired before now.
// The status guard means a confirm that just flipped the slot to booked
// is never clobbered back to open.
func (r *SlotRepository) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE slots
		SET status = 'open', hold_token = NULL, held_by = NULL, hold_expires_at = NULL, updated_at = now()
		WHERE status = 'held' AND hold_expires_at < $1
	`

	tag, err := r.Q(ctx).Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}

	return tag.RowsAffected(), nil
}

// SoftDeletePastBefore retires open and closed slots whose end passed the
// cutoff. Booked slots keep their rows while a booking references them.
func (r *SlotRepository) SoftDeletePastBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE slots
		SET deleted_at = now()
		WHERE status IN ('open', 'closed')
		  AND end_at < $1
		  AND deleted_at IS NULL
	`

	tag, err := r.Q(ctx).Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("soft delete past slots: %w", err)
	}

	return tag.RowsAffected(), nil
}
