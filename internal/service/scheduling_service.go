package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhive/tutorhive-server/internal/model"
	"go.uber.org/zap"
)

// SchedulingService owns the slot hold lifecycle and the booking state
// machine. Correctness rests on guarded single-statement status
// transitions in the slot store: under concurrent callers exactly one
// write succeeds and everyone else fails fast.
type SchedulingService struct {
	tx          TxRunner
	slotRepo    SlotStore
	bookingRepo BookingStore
	tutorRepo   TutorStore
	creditRepo  CreditStore

	payment    PaymentAuthority
	busySource CalendarBusyTimeSource
	calendar   CalendarEventSink
	notifier   NotificationDispatcher

	holdTTL      time.Duration
	cancelNotice time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// SchedulingDeps bundles the collaborators of SchedulingService.
type SchedulingDeps struct {
	Tx           TxRunner
	Slots        SlotStore
	Bookings     BookingStore
	Tutors       TutorStore
	Credits      CreditStore
	Payment      PaymentAuthority
	BusySource   CalendarBusyTimeSource
	Calendar     CalendarEventSink
	Notifier     NotificationDispatcher
	HoldTTL      time.Duration
	CancelNotice time.Duration
	Logger       *zap.Logger
}

func NewSchedulingService(deps SchedulingDeps) *SchedulingService {
	return &SchedulingService{
		tx:           deps.Tx,
		slotRepo:     deps.Slots,
		bookingRepo:  deps.Bookings,
		tutorRepo:    deps.Tutors,
		creditRepo:   deps.Credits,
		payment:      deps.Payment,
		busySource:   deps.BusySource,
		calendar:     deps.Calendar,
		notifier:     deps.Notifier,
		holdTTL:      deps.HoldTTL,
		cancelNotice: deps.CancelNotice,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

// GetAvailableSlots returns the tutor's open slots in [from, to),
// excluding those colliding with externally reported busy intervals.
// A failed busy-time fetch degrades to "no busy intervals": the student
// may be offered a slot a human conflict resolves later, but the read
// path stays up.
func (s *SchedulingService) GetAvailableSlots(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Slot, error) {
	slots, err := s.slotRepo.OpenSlotsInRange(ctx, tutorID, from, to)
	if err != nil {
		return nil, &AvailabilityError{Msg: "list open slots", Err: err}
	}

	busy, err := s.busySource.BusyIntervals(ctx, tutorID, from, to)
	if err != nil {
		s.logger.Warn("Busy-time source unavailable, serving unfiltered slots",
			zap.Int64("tutor_id", tutorID),
			zap.Error(err),
		)
		busy = nil
	}

	available := slots[:0]
	for _, slot := range slots {
		conflict := false
		for _, iv := range busy {
			if model.OverlapsInterval(slot.StartAt, slot.EndAt, iv) {
				conflict = true
				break
			}
		}
		if !conflict {
			available = append(available, slot)
		}
	}

	return available, nil
}

// HoldReceipt is what a successful hold hands back. The token, not the
// slot id, is the capability required to confirm.
type HoldReceipt struct {
	SlotID    int64     `json:"slot_id"`
	Token     string    `json:"hold_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HoldSlot reserves an open slot for the student for the configured TTL.
// The open->held transition is a single guarded update: of any number of
// concurrent callers exactly one wins, the rest get a slot-unavailable
// error. No queueing.
func (s *SchedulingService) HoldSlot(ctx context.Context, slotID, studentID int64) (*HoldReceipt, error) {
	now := s.now()

	slot, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, bookingErr(ReasonNotFound, "slot %d not found", slotID)
	}
	if slot.StartAt.Before(now) {
		return nil, bookingErr(ReasonSlotUnavailable, "slot %d is in the past", slotID)
	}

	token := uuid.NewString()
	expiresAt := now.Add(s.holdTTL)

	ok, err := s.slotRepo.Hold(ctx, slotID, studentID, token, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("hold slot: %w", err)
	}
	if !ok {
		return nil, bookingErr(ReasonSlotUnavailable, "slot %d is not available", slotID)
	}

	s.logger.Info("Slot held",
		zap.Int64("slot_id", slotID),
		zap.Int64("student_id", studentID),
		zap.Time("expires_at", expiresAt),
	)

	return &HoldReceipt{SlotID: slotID, Token: token, ExpiresAt: expiresAt}, nil
}

// ReleaseHold returns a held slot to open. One token-guarded update:
// an unknown, already-released or already-booked token matches nothing,
// so client retries are harmless and a stale release arriving after the
// reaper reclaimed the hold can never undo another student's fresh hold.
func (s *SchedulingService) ReleaseHold(ctx context.Context, token string) error {
	released, err := s.slotRepo.Release(ctx, token)
	if err != nil {
		return fmt.Errorf("release hold: %w", err)
	}
	if released {
		s.logger.Info("Hold released", zap.String("hold_token", token))
	}
	return nil
}

// ConfirmBooking turns a valid hold into a confirmed booking. Payment is
// settled before the slot flips to booked: a card authorization is
// verified up front, a credit debit commits in the same transaction as
// the booking row and the slot update. Calendar events and notifications
// run after commit and never undo a paid booking.
func (s *SchedulingService) ConfirmBooking(
	ctx context.Context,
	token string,
	studentID int64,
	method model.PaymentMethod,
	paymentRef string,
) (*model.Booking, error) {
	now := s.now()

	slot, err := s.slotRepo.GetHeldByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve hold token: %w", err)
	}
	if slot == nil {
		return nil, bookingErr(ReasonInvalidHold, "hold token is invalid or already consumed")
	}
	if slot.HeldBy == nil || *slot.HeldBy != studentID {
		return nil, bookingErr(ReasonInvalidHold, "hold belongs to a different student")
	}
	if slot.HoldExpired(now) {
		return nil, bookingErr(ReasonExpiredHold, "hold on slot %d has expired", slot.ID)
	}

	price, err := s.bookingPrice(ctx, slot)
	if err != nil {
		return nil, err
	}

	switch method {
	case model.PaymentMethodCard:
		if paymentRef == "" {
			return nil, bookingErr(ReasonPayment, "card payment requires an authorization reference")
		}
		if err := s.payment.VerifyAuthorization(ctx, studentID, price, paymentRef); err != nil {
			return nil, bookingErr(ReasonPayment, "payment authorization rejected: %v", err)
		}
	case model.PaymentMethodCredit:
		// Balance check and debit happen inside the transaction below.
	default:
		return nil, bookingErr(ReasonPayment, "unsupported payment method %q", method)
	}

	booking := &model.Booking{
		StudentID:     studentID,
		TutorID:       slot.TutorID,
		StartAt:       slot.StartAt,
		EndAt:         slot.EndAt,
		Status:        model.BookingStatusConfirmed,
		PriceCents:    price,
		PaymentMethod: method,
		SlotID:        &slot.ID,
	}
	if paymentRef != "" {
		booking.PaymentRef = &paymentRef
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		// Re-read under lock: the reaper or a concurrent confirm may have
		// raced us between validation and here.
		locked, err := s.slotRepo.GetHeldByToken(ctx, token)
		if err != nil {
			return fmt.Errorf("lock held slot: %w", err)
		}
		if locked == nil || locked.HeldBy == nil || *locked.HeldBy != studentID {
			return bookingErr(ReasonInvalidHold, "hold token is invalid or already consumed")
		}
		if locked.HoldExpired(s.now()) {
			return bookingErr(ReasonExpiredHold, "hold on slot %d has expired", locked.ID)
		}

		if method == model.PaymentMethodCredit {
			balance, err := s.creditRepo.Balance(ctx, studentID)
			if err != nil {
				return fmt.Errorf("read credit balance: %w", err)
			}
			if balance < price {
				return bookingErr(ReasonPayment, "insufficient credit: have %d, need %d", balance, price)
			}
			entry := &model.CreditEntry{
				UserID: studentID,
				Delta:  -price,
				Reason: model.CreditReasonBooking,
			}
			if err := s.creditRepo.Append(ctx, entry); err != nil {
				return fmt.Errorf("debit credit: %w", err)
			}
		}

		if err := s.bookingRepo.Create(ctx, booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		booked, err := s.slotRepo.MarkBooked(ctx, locked.ID)
		if err != nil {
			return fmt.Errorf("mark slot booked: %w", err)
		}
		if !booked {
			return bookingErr(ReasonSlotUnavailable, "slot %d is no longer held", locked.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking confirmed",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("tutor_id", booking.TutorID),
		zap.Int64("price_cents", price),
		zap.String("payment_method", string(method)),
	)

	s.publishCalendarEvents(ctx, booking)
	s.notify(ctx, booking.StudentID, EventBookingConfirmed, booking)
	s.notify(ctx, booking.TutorID, EventBookingConfirmed, booking)

	return booking, nil
}

// bookingPrice computes hourly rate x slot duration in integer cents.
// Truncation toward zero, applied uniformly.
func (s *SchedulingService) bookingPrice(ctx context.Context, slot *model.Slot) (int64, error) {
	profile, err := s.tutorRepo.GetProfile(ctx, slot.TutorID)
	if err != nil {
		return 0, fmt.Errorf("get tutor profile: %w", err)
	}
	if profile == nil {
		return 0, bookingErr(ReasonNotFound, "tutor %d has no profile", slot.TutorID)
	}

	minutes := int64(slot.Duration() / time.Minute)
	return profile.HourlyRateCents * minutes / 60, nil
}

// publishCalendarEvents mirrors a committed booking into both parties'
// calendars. Best-effort: a confirmed, paid booking is never undone by a
// downstream failure here.
func (s *SchedulingService) publishCalendarEvents(ctx context.Context, booking *model.Booking) {
	var tutorEventID, studentEventID *string

	if id, err := s.calendar.CreateEvent(ctx, booking.TutorID, booking); err != nil {
		s.logger.Warn("Failed to create tutor calendar event",
			zap.Int64("booking_id", booking.ID), zap.Error(err))
	} else {
		tutorEventID = &id
	}

	if id, err := s.calendar.CreateEvent(ctx, booking.StudentID, booking); err != nil {
		s.logger.Warn("Failed to create student calendar event",
			zap.Int64("booking_id", booking.ID), zap.Error(err))
	} else {
		studentEventID = &id
	}

	if tutorEventID != nil || studentEventID != nil {
		booking.CalendarEventIDTutor = tutorEventID
		booking.CalendarEventIDStudent = studentEventID
		if err := s.bookingRepo.SetCalendarEventIDs(ctx, booking.ID, tutorEventID, studentEventID); err != nil {
			s.logger.Warn("Failed to record calendar event ids",
				zap.Int64("booking_id", booking.ID), zap.Error(err))
		}
	}
}

// CancelBooking cancels a confirmed booking, releases its slot and
// settles the refund. The minimum-notice policy is a configured window,
// checked against the session start.
func (s *SchedulingService) CancelBooking(ctx context.Context, bookingID int64, reason string) (*model.Booking, error) {
	now := s.now()
	var booking *model.Booking

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookingRepo.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return bookingErr(ReasonNotFound, "booking %d not found", bookingID)
		}
		if booking.Status.Terminal() {
			return bookingErr(ReasonPolicy, "booking %d is already %s", bookingID, booking.Status)
		}
		if booking.StartAt.Sub(now) < s.cancelNotice {
			return bookingErr(ReasonPolicy,
				"cancellation requires at least %s notice", s.cancelNotice)
		}

		if err := s.bookingRepo.SetCanceled(ctx, bookingID, reason, now); err != nil {
			return fmt.Errorf("set booking canceled: %w", err)
		}

		if booking.SlotID != nil {
			reopened, err := s.slotRepo.Reopen(ctx, *booking.SlotID)
			if err != nil {
				return fmt.Errorf("reopen slot: %w", err)
			}
			if !reopened {
				s.logger.Warn("Canceled booking's slot was not in booked state",
					zap.Int64("booking_id", bookingID),
					zap.Int64("slot_id", *booking.SlotID),
				)
			}
		}

		if booking.PaymentMethod == model.PaymentMethodCredit {
			entry := &model.CreditEntry{
				UserID:    booking.StudentID,
				Delta:     booking.PriceCents,
				Reason:    model.CreditReasonRefund,
				BookingID: &booking.ID,
			}
			if err := s.creditRepo.Append(ctx, entry); err != nil {
				return fmt.Errorf("refund credit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Status = model.BookingStatusCanceled
	booking.CancellationReason = &reason
	booking.CanceledAt = &now

	s.logger.Info("Booking canceled",
		zap.Int64("booking_id", bookingID),
		zap.String("reason", reason),
	)

	if booking.PaymentMethod == model.PaymentMethodCard {
		if err := s.payment.Refund(ctx, booking.ID, reason); err != nil {
			s.logger.Error("Refund request failed",
				zap.Int64("booking_id", booking.ID), zap.Error(err))
		}
	}

	s.retractCalendarEvents(ctx, booking)
	s.notify(ctx, booking.StudentID, EventBookingCanceled, booking)
	s.notify(ctx, booking.TutorID, EventBookingCanceled, booking)

	return booking, nil
}

// RescheduleBooking moves a booking to a new open slot. Cancel-then-create
// in one transaction: either the old booking is canceled AND the new one
// exists, or neither change commits. Price and payment reference carry
// over; the audit trail keeps both bookings.
func (s *SchedulingService) RescheduleBooking(ctx context.Context, bookingID, newSlotID int64, reason string) (*model.Booking, error) {
	now := s.now()
	var old, newBooking *model.Booking

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		old, err = s.bookingRepo.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if old == nil {
			return bookingErr(ReasonNotFound, "booking %d not found", bookingID)
		}
		if old.Status.Terminal() {
			return bookingErr(ReasonPolicy, "booking %d is already %s", bookingID, old.Status)
		}
		if old.StartAt.Sub(now) < s.cancelNotice {
			return bookingErr(ReasonPolicy,
				"reschedule requires at least %s notice", s.cancelNotice)
		}

		newSlot, err := s.slotRepo.GetByID(ctx, newSlotID)
		if err != nil {
			return fmt.Errorf("get new slot: %w", err)
		}
		if newSlot == nil {
			return bookingErr(ReasonNotFound, "slot %d not found", newSlotID)
		}
		if newSlot.TutorID != old.TutorID {
			return bookingErr(ReasonPolicy, "slot %d belongs to a different tutor", newSlotID)
		}

		cancelNote := fmt.Sprintf("rescheduled to %s: %s", newSlot.StartAt.Format(time.RFC3339), reason)
		if err := s.bookingRepo.SetCanceled(ctx, bookingID, cancelNote, now); err != nil {
			return fmt.Errorf("cancel old booking: %w", err)
		}
		if old.SlotID != nil {
			if _, err := s.slotRepo.Reopen(ctx, *old.SlotID); err != nil {
				return fmt.Errorf("reopen old slot: %w", err)
			}
		}

		booked, err := s.slotRepo.BookOpen(ctx, newSlotID)
		if err != nil {
			return fmt.Errorf("book new slot: %w", err)
		}
		if !booked {
			// Aborts the whole transaction, restoring the old booking.
			return bookingErr(ReasonSlotUnavailable, "slot %d is not available", newSlotID)
		}

		newBooking = &model.Booking{
			StudentID:     old.StudentID,
			TutorID:       old.TutorID,
			StartAt:       newSlot.StartAt,
			EndAt:         newSlot.EndAt,
			Status:        model.BookingStatusConfirmed,
			PriceCents:    old.PriceCents,
			PaymentMethod: old.PaymentMethod,
			PaymentRef:    old.PaymentRef,
			SlotID:        &newSlot.ID,
			Notes:         fmt.Sprintf("rescheduled from %s: %s", old.StartAt.Format(time.RFC3339), reason),
		}
		if err := s.bookingRepo.Create(ctx, newBooking); err != nil {
			return fmt.Errorf("create new booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking rescheduled",
		zap.Int64("old_booking_id", bookingID),
		zap.Int64("new_booking_id", newBooking.ID),
		zap.Int64("new_slot_id", newSlotID),
	)

	s.retractCalendarEvents(ctx, old)
	s.publishCalendarEvents(ctx, newBooking)
	s.notify(ctx, newBooking.StudentID, EventBookingRescheduled, newBooking)
	s.notify(ctx, newBooking.TutorID, EventBookingRescheduled, newBooking)

	return newBooking, nil
}

// ReleaseExpiredHolds reopens every held slot whose lease ran out. The
// store guards the write with a status-still-held precondition, so a
// confirm completing at the same instant is never clobbered.
func (s *SchedulingService) ReleaseExpiredHolds(ctx context.Context) error {
	n, err := s.slotRepo.ReleaseExpired(ctx, s.now())
	if err != nil {
		return fmt.Errorf("release expired holds: %w", err)
	}
	if n > 0 {
		s.logger.Info("Reclaimed expired holds", zap.Int64("count", n))
	}
	return nil
}

func (s *SchedulingService) retractCalendarEvents(ctx context.Context, booking *model.Booking) {
	if booking.CalendarEventIDTutor != nil {
		if err := s.calendar.DeleteEvent(ctx, booking.TutorID, *booking.CalendarEventIDTutor); err != nil {
			s.logger.Warn("Failed to delete tutor calendar event",
				zap.Int64("booking_id", booking.ID), zap.Error(err))
		}
	}
	if booking.CalendarEventIDStudent != nil {
		if err := s.calendar.DeleteEvent(ctx, booking.StudentID, *booking.CalendarEventIDStudent); err != nil {
			s.logger.Warn("Failed to delete student calendar event",
				zap.Int64("booking_id", booking.ID), zap.Error(err))
		}
	}
}

func (s *SchedulingService) notify(ctx context.Context, userID int64, event string, booking *model.Booking) {
	payload := map[string]interface{}{
		"booking_id": booking.ID,
		"tutor_id":   booking.TutorID,
		"student_id": booking.StudentID,
		"start_at":   booking.StartAt,
		"end_at":     booking.EndAt,
		"status":     string(booking.Status),
	}
	if err := s.notifier.Notify(ctx, userID, event, payload); err != nil {
		s.logger.Warn("Notification dispatch failed",
			zap.Int64("user_id", userID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
