package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/repository/base"
)

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(b *base.Repository) *BookingRepository {
	return &BookingRepository{Repository: b}
}

const bookingColumns = `id, student_id, tutor_id, start_at, end_at, status, price_cents,
	payment_method, payment_ref, slot_id, calendar_event_id_tutor, calendar_event_id_student,
	join_link, notes, cancellation_reason, canceled_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.TutorID,
		&b.StartAt,
		&b.EndAt,
		&b.Status,
		&b.PriceCents,
		&b.PaymentMethod,
		&b.PaymentRef,
		&b.SlotID,
		&b.CalendarEventIDTutor,
		&b.CalendarEventIDStudent,
		&b.JoinLink,
		&b.Notes,
		&b.CancellationReason,
		&b.CanceledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (student_id, tutor_id, start_at, end_at, status, price_cents,
			payment_method, payment_ref, slot_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.Q(ctx).QueryRow(
		ctx, query,
		booking.StudentID,
		booking.TutorID,
		booking.StartAt,
		booking.EndAt,
		booking.Status,
		booking.PriceCents,
		booking.PaymentMethod,
		booking.PaymentRef,
		booking.SlotID,
		booking.Notes,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.Q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// GetByIDForUpdate locks the booking row for the current transaction.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	booking, err := scanBooking(r.Q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking for update: %w", err)
	}

	return booking, nil
}

func (r *BookingRepository) SetCanceled(ctx context.Context, id int64, reason string, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = 'canceled', cancellation_reason = $1, canceled_at = $2, updated_at = now()
		WHERE id = $3
	`

	tag, err := r.Q(ctx).Exec(ctx, query, reason, at, id)
	if err != nil {
		return fmt.Errorf("set booking canceled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking not found")
	}

	return nil
}

func (r *BookingRepository) SetCalendarEventIDs(ctx context.Context, id int64, tutorEventID, studentEventID *string) error {
	query := `
		UPDATE bookings
		SET calendar_event_id_tutor = $1, calendar_event_id_student = $2, updated_at = now()
		WHERE id = $3
	`

	tag, err := r.Q(ctx).Exec(ctx, query, tutorEventID, studentEventID, id)
	if err != nil {
		return fmt.Errorf("set calendar event ids: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking not found")
	}

	return nil
}
