package app

import (
	"context"
	"time"

	"github.com/tutorhive/tutorhive-server/internal/service"
	"go.uber.org/zap"
)

// Scheduler runs the background maintenance loops: the expired-hold
// reaper, the daily recurring-slot refill and the retention sweep.
type Scheduler struct {
	availability   *service.AvailabilityService
	scheduling     *service.SchedulingService
	reaperInterval time.Duration
	logger         *zap.Logger
	stopChan       chan struct{}
}

func NewScheduler(
	availability *service.AvailabilityService,
	scheduling *service.SchedulingService,
	reaperInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		availability:   availability,
		scheduling:     scheduling,
		reaperInterval: reaperInterval,
		logger:         logger,
		stopChan:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("reaper_interval", s.reaperInterval))

	go s.runHoldReaper(ctx)
	go s.runDailyMaintenance(ctx)
}

func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

// runHoldReaper reclaims expired holds so an abandoned checkout cannot
// starve a slot past its TTL.
func (s *Scheduler) runHoldReaper(ctx context.Context) {
	ticker := time.NewTicker(s.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.scheduling.ReleaseExpiredHolds(ctx); err != nil {
				s.logger.Error("Hold reaper sweep failed", zap.Error(err))
			}
		case <-s.stopChan:
			s.logger.Info("Hold reaper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Hold reaper cancelled")
			return
		}
	}
}

// runDailyMaintenance refills the slot horizon for recurring availability
// and retires slots past the retention window. First run happens at
// startup so a restarted process catches up immediately.
func (s *Scheduler) runDailyMaintenance(ctx context.Context) {
	s.runMaintenance(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runMaintenance(ctx)
		case <-s.stopChan:
			s.logger.Info("Daily maintenance stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Daily maintenance cancelled")
			return
		}
	}
}

func (s *Scheduler) runMaintenance(ctx context.Context) {
	if err := s.availability.RegenerateRecurring(ctx); err != nil {
		s.logger.Error("Recurring slot generation failed", zap.Error(err))
	}
	if err := s.availability.SweepRetention(ctx); err != nil {
		s.logger.Error("Retention sweep failed", zap.Error(err))
	}
}
