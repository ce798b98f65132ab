package repository

import (
	"context"
	"fmt"

	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/repository/base"
)

type TutorRepository struct {
	*base.Repository
}

func NewTutorRepository(b *base.Repository) *TutorRepository {
	return &TutorRepository{Repository: b}
}

// GetProfile returns the tutor's profile or nil when none exists.
func (r *TutorRepository) GetProfile(ctx context.Context, tutorID int64) (*model.TutorProfile, error) {
	query := `
		SELECT id, tutor_id, display_name, hourly_rate_cents, created_at
		FROM tutor_profiles
		WHERE tutor_id = $1
	`

	var p model.TutorProfile
	err := r.Q(ctx).QueryRow(ctx, query, tutorID).Scan(
		&p.ID,
		&p.TutorID,
		&p.DisplayName,
		&p.HourlyRateCents,
		&p.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tutor profile: %w", err)
	}

	return &p, nil
}

// Contact returns the user's notification addresses or nil when unknown.
func (r *TutorRepository) Contact(ctx context.Context, userID int64) (*model.Contact, error) {
	query := `
		SELECT user_id, email, telegram_chat_id
		FROM user_contacts
		WHERE user_id = $1
	`

	var c model.Contact
	err := r.Q(ctx).QueryRow(ctx, query, userID).Scan(
		&c.UserID,
		&c.Email,
		&c.TelegramChatID,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user contact: %w", err)
	}

	return &c, nil
}
