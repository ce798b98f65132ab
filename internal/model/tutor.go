package model

import "time"

// TutorProfile carries the pricing data the booking flow needs.
type TutorProfile struct {
	ID              int64     `json:"id"`
	TutorID         int64     `json:"tutor_id"`
	DisplayName     string    `json:"display_name"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

// Contact is the notification address book entry for a user. Either
// channel may be absent.
type Contact struct {
	UserID         int64  `json:"user_id"`
	Email          string `json:"email,omitempty"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
}
