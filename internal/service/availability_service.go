package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tutorhive/tutorhive-server/internal/model"
	"github.com/tutorhive/tutorhive-server/internal/recurrence"
	"go.uber.org/zap"
)

// AvailabilityService turns tutor-declared availability into bookable
// slots and keeps the slot inventory consistent with time off, external
// calendars and the retention window.
type AvailabilityService struct {
	tx               TxRunner
	availabilityRepo AvailabilityStore
	slotRepo         SlotStore
	busySource       CalendarBusyTimeSource
	expander         recurrence.Expander
	horizonWeeks     int
	retention        time.Duration
	logger           *zap.Logger
	now              func() time.Time
}

func NewAvailabilityService(
	tx TxRunner,
	availabilityRepo AvailabilityStore,
	slotRepo SlotStore,
	busySource CalendarBusyTimeSource,
	expander recurrence.Expander,
	horizonWeeks int,
	retention time.Duration,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		tx:               tx,
		availabilityRepo: availabilityRepo,
		slotRepo:         slotRepo,
		busySource:       busySource,
		expander:         expander,
		horizonWeeks:     horizonWeeks,
		retention:        retention,
		logger:           logger,
		now:              time.Now,
	}
}

// CreateAvailabilityBlock validates and persists a block, then generates
// its slots over the forward horizon. The recurrence rule is expanded
// before anything is written, so a malformed rule commits nothing.
func (s *AvailabilityService) CreateAvailabilityBlock(
	ctx context.Context,
	tutorID int64,
	startAt, endAt time.Time,
	isRecurring bool,
	rrule string,
) (*model.AvailabilityBlock, error) {
	now := s.now()

	if !startAt.Before(endAt) {
		return nil, schedulingErr("start time must be before end time")
	}
	if startAt.Before(now) {
		return nil, schedulingErr("cannot create availability in the past")
	}
	if isRecurring && rrule == "" {
		return nil, schedulingErr("recurring availability requires a recurrence rule")
	}

	block := &model.AvailabilityBlock{
		TutorID:     tutorID,
		StartAt:     startAt.UTC(),
		EndAt:       endAt.UTC(),
		IsRecurring: isRecurring,
	}
	if isRecurring {
		block.RRule = &rrule
	}

	// Expand first: a later-failing expansion must not leave a partial
	// batch of slots behind.
	starts, err := s.occurrenceStarts(block, now)
	if err != nil {
		return nil, &SchedulingError{
			Msg: fmt.Sprintf("invalid recurrence rule for block starting %s", startAt.Format(time.RFC3339)),
			Err: err,
		}
	}

	var created int
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.availabilityRepo.CreateAvailabilityBlock(ctx, block); err != nil {
			return fmt.Errorf("create availability block: %w", err)
		}

		created, err = s.materializeSlots(ctx, block, starts)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Availability block created",
		zap.Int64("block_id", block.ID),
		zap.Int64("tutor_id", tutorID),
		zap.Bool("recurring", isRecurring),
		zap.Int("slots_created", created),
	)

	return block, nil
}

// occurrenceStarts resolves the candidate slot start times for a block
// within [now, now + horizon].
func (s *AvailabilityService) occurrenceStarts(block *model.AvailabilityBlock, now time.Time) ([]time.Time, error) {
	if !block.IsRecurring {
		return []time.Time{block.StartAt}, nil
	}

	horizon := now.Add(time.Duration(s.horizonWeeks) * 7 * 24 * time.Hour)
	starts, err := s.expander.Expand(*block.RRule, block.StartAt, now, horizon)
	if err != nil {
		return nil, err
	}
	return starts, nil
}

// materializeSlots persists OPEN slots for the given start times,
// skipping time-off conflicts and already-generated slots. Safe to
// re-run: the (tutor, start_at) uniqueness constraint dedupes.
func (s *AvailabilityService) materializeSlots(ctx context.Context, block *model.AvailabilityBlock, starts []time.Time) (int, error) {
	duration := block.EndAt.Sub(block.StartAt)
	created := 0

	for _, start := range starts {
		end := start.Add(duration)

		conflict, err := s.availabilityRepo.HasTimeOffOverlap(ctx, block.TutorID, start, end)
		if err != nil {
			return created, &AvailabilityError{Msg: "check time-off overlap", Err: err}
		}
		if conflict {
			s.logger.Debug("Slot suppressed by time off",
				zap.Int64("tutor_id", block.TutorID),
				zap.Time("start_at", start),
			)
			continue
		}

		slot := &model.Slot{
			TutorID: block.TutorID,
			StartAt: start,
			EndAt:   end,
			Status:  model.SlotStatusOpen,
		}

		err = s.slotRepo.Create(ctx, slot)
		if errors.Is(err, ErrDuplicateSlot) {
			s.logger.Debug("Slot already exists, skipping",
				zap.Int64("tutor_id", block.TutorID),
				zap.Time("start_at", start),
			)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create slot: %w", err)
		}
		created++
	}

	return created, nil
}

// CreateTimeOffBlock records a blackout window and closes every open slot
// it overlaps, so the blackout takes effect on already-generated slots too.
func (s *AvailabilityService) CreateTimeOffBlock(ctx context.Context, tutorID int64, startAt, endAt time.Time, reason string) (*model.TimeOffBlock, error) {
	if !startAt.Before(endAt) {
		return nil, schedulingErr("start time must be before end time")
	}

	block := &model.TimeOffBlock{
		TutorID: tutorID,
		StartAt: startAt.UTC(),
		EndAt:   endAt.UTC(),
		Reason:  reason,
	}

	var closed int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.availabilityRepo.CreateTimeOffBlock(ctx, block); err != nil {
			return fmt.Errorf("create time-off block: %w", err)
		}

		var err error
		closed, err = s.slotRepo.CloseOverlapping(ctx, tutorID, block.StartAt, block.EndAt)
		if err != nil {
			return fmt.Errorf("close overlapping slots: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Time-off block created",
		zap.Int64("block_id", block.ID),
		zap.Int64("tutor_id", tutorID),
		zap.Int64("slots_closed", closed),
	)

	return block, nil
}

// RegenerateRecurring re-runs slot generation for every active recurring
// block, keeping the forward horizon filled. Called daily by the
// background scheduler; idempotent per slot.
func (s *AvailabilityService) RegenerateRecurring(ctx context.Context) error {
	blocks, err := s.availabilityRepo.ActiveRecurringBlocks(ctx)
	if err != nil {
		return &AvailabilityError{Msg: "list recurring blocks", Err: err}
	}

	now := s.now()
	total := 0
	for _, block := range blocks {
		starts, err := s.occurrenceStarts(block, now)
		if err != nil {
			s.logger.Error("Skipping block with bad recurrence rule",
				zap.Int64("block_id", block.ID),
				zap.Error(err),
			)
			continue
		}

		created, err := s.materializeSlots(ctx, block, starts)
		if err != nil {
			s.logger.Error("Failed to generate slots for block",
				zap.Int64("block_id", block.ID),
				zap.Error(err),
			)
			continue
		}
		total += created
	}

	s.logger.Info("Recurring slot generation completed",
		zap.Int("blocks", len(blocks)),
		zap.Int("slots_created", total),
	)

	return nil
}

// ReconcileBusyTimes closes open slots that collide with freshly reported
// external busy intervals. One-way: a closed slot is never auto-reopened.
func (s *AvailabilityService) ReconcileBusyTimes(ctx context.Context, tutorID int64, from, to time.Time) error {
	busy, err := s.busySource.BusyIntervals(ctx, tutorID, from, to)
	if err != nil {
		return &AvailabilityError{Msg: "fetch busy intervals", Err: err}
	}

	var closed int64
	for _, iv := range busy {
		n, err := s.slotRepo.CloseOverlapping(ctx, tutorID, iv.Start, iv.End)
		if err != nil {
			return fmt.Errorf("close slots overlapping busy interval: %w", err)
		}
		closed += n
	}

	if closed > 0 {
		s.logger.Info("Closed slots conflicting with external calendar",
			zap.Int64("tutor_id", tutorID),
			zap.Int64("slots_closed", closed),
		)
	}

	return nil
}

// SweepRetention soft-deletes open and closed slots whose end passed the
// retention window. Slots referenced by bookings keep their rows.
func (s *AvailabilityService) SweepRetention(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)

	n, err := s.slotRepo.SoftDeletePastBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}

	if n > 0 {
		s.logger.Info("Retired past slots",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff),
		)
	}

	return nil
}
