package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/repository/base"
)

type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(b *base.Repository) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: b}
}

func (r *AvailabilityRepository) CreateAvailabilityBlock(ctx context.Context, block *model.AvailabilityBlock) error {
	query := `
		INSERT INTO availability_blocks (tutor_id, start_at, end_at, is_recurring, rrule)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.Q(ctx).QueryRow(
		ctx, query,
		block.TutorID,
		block.StartAt,
		block.EndAt,
		block.IsRecurring,
		block.RRule,
	).Scan(&block.ID, &block.CreatedAt)

	if err != nil {
		return fmt.Errorf("create availability block: %w", err)
	}

	return nil
}

func (r *AvailabilityRepository) CreateTimeOffBlock(ctx context.Context, block *model.TimeOffBlock) error {
	query := `
		INSERT INTO time_off_blocks (tutor_id, start_at, end_at, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.Q(ctx).QueryRow(
		ctx, query,
		block.TutorID,
		block.StartAt,
		block.EndAt,
		block.Reason,
	).Scan(&block.ID, &block.CreatedAt)

	if err != nil {
		return fmt.Errorf("create time-off block: %w", err)
	}

	return nil
}

// HasTimeOffOverlap reports whether any live time-off block of the tutor
// intersects the half-open window [startAt, endAt).
func (r *AvailabilityRepository) HasTimeOffOverlap(ctx context.Context, tutorID int64, startAt, endAt time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM time_off_blocks
			WHERE tutor_id = $1
			  AND start_at < $2
			  AND end_at > $3
			  AND deleted_at IS NULL
		)
	`

	var exists bool
	err := r.Q(ctx).QueryRow(ctx, query, tutorID, endAt, startAt).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check time-off overlap: %w", err)
	}

	return exists, nil
}

// ActiveRecurringBlocks returns every live recurring availability block,
// for the periodic horizon refill.
func (r *AvailabilityRepository) ActiveRecurringBlocks(ctx context.Context) ([]*model.AvailabilityBlock, error) {
	query := `
		SELECT id, tutor_id, start_at, end_at, is_recurring, rrule, created_at, deleted_at
		FROM availability_blocks
		WHERE is_recurring = TRUE AND deleted_at IS NULL
		ORDER BY id
	`

	rows, err := r.Q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get recurring blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*model.AvailabilityBlock
	for rows.Next() {
		var block model.AvailabilityBlock
		err := rows.Scan(
			&block.ID,
			&block.TutorID,
			&block.StartAt,
			&block.EndAt,
			&block.IsRecurring,
			&block.RRule,
			&block.CreatedAt,
			&block.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan availability block: %w", err)
		}
		blocks = append(blocks, &block)
	}

	return blocks, rows.Err()
}
