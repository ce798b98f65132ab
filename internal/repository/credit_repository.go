package repository

import (
	"context"
	"fmt"

	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/repository/base"
)

type CreditRepository struct {
	*base.Repository
}

func NewCreditRepository(b *base.Repository) *CreditRepository {
	return &CreditRepository{Repository: b}
}

// Balance returns the user's current credit balance: the balance_after of
// the latest ledger row, or zero for a user with no ledger history.
func (r *CreditRepository) Balance(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT COALESCE(
			(SELECT balance_after
			 FROM credit_ledger
			 WHERE user_id = $1 AND deleted_at IS NULL
			 ORDER BY id DESC
			 LIMIT 1),
			0)
	`

	var balance int64
	if err := r.Q(ctx).QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("get credit balance: %w", err)
	}

	return balance, nil
}

// Append writes one ledger row, computing balance_after from the previous
// row. Callers run it inside the transaction of the state change it pays
// for, so the debit and the booking commit together.
func (r *CreditRepository) Append(ctx context.Context, entry *model.CreditEntry) error {
	query := `
		INSERT INTO credit_ledger (user_id, delta, reason, booking_id, balance_after)
		VALUES ($1, $2, $3, $4,
			COALESCE(
				(SELECT balance_after
				 FROM credit_ledger
				 WHERE user_id = $1 AND deleted_at IS NULL
				 ORDER BY id DESC
				 LIMIT 1),
				0) + $2)
		RETURNING id, balance_after, created_at
	`

	err := r.Q(ctx).QueryRow(
		ctx, query,
		entry.UserID,
		entry.Delta,
		entry.Reason,
		entry.BookingID,
	).Scan(&entry.ID, &entry.BalanceAfter, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("append credit entry: %w", err)
	}

	return nil
}
