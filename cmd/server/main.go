package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutorhive/tutorhive-server/internal/app"
	"github.com/tutorhive/tutorhive-server/internal/config"
	"github.com/tutorhive/tutorhive-server/internal/external"
	"github.com/tutorhive/tutorhive-server/internal/recurrence"
	"github.com/tutorhive/tutorhive-server/internal/repository"
	"github.com/tutorhive/tutorhive-server/internal/repository/base"
	"github.com/tutorhive/tutorhive-server/internal/service"
	"github.com/tutorhive/tutorhive-server/internal/transport/web"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	baseRepo := base.NewRepository(pool)
	availabilityRepo := repository.NewAvailabilityRepository(baseRepo)
	slotRepo := repository.NewSlotRepository(baseRepo)
	bookingRepo := repository.NewBookingRepository(baseRepo)
	tutorRepo := repository.NewTutorRepository(baseRepo)
	creditRepo := repository.NewCreditRepository(baseRepo)

	calendarBridge := external.NewCalendarBridge(cfg.CalendarBridgeURL)
	paymentClient := external.NewPaymentClient(cfg.PaymentServiceURL)

	var channels []service.NotificationDispatcher
	if cfg.SMTPHost != "" {
		channels = append(channels, external.NewEmailNotifier(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom,
			tutorRepo, logger,
		))
	}
	if cfg.TelegramToken != "" {
		tg, err := external.NewTelegramNotifier(cfg.TelegramToken, tutorRepo, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram notifier", zap.Error(err))
		}
		channels = append(channels, tg)
	}
	notifier := external.NewFanoutDispatcher(channels...)

	availabilityService := service.NewAvailabilityService(
		baseRepo,
		availabilityRepo,
		slotRepo,
		calendarBridge,
		recurrence.NewRRuleExpander(),
		cfg.SlotHorizonWeeks,
		time.Duration(cfg.RetentionDays)*24*time.Hour,
		logger,
	)

	schedulingService := service.NewSchedulingService(service.SchedulingDeps{
		Tx:           baseRepo,
		Slots:        slotRepo,
		Bookings:     bookingRepo,
		Tutors:       tutorRepo,
		Credits:      creditRepo,
		Payment:      paymentClient,
		BusySource:   calendarBridge,
		Calendar:     calendarBridge,
		Notifier:     notifier,
		HoldTTL:      cfg.HoldTTL,
		CancelNotice: cfg.CancelNotice,
		Logger:       logger,
	})

	scheduler := app.NewScheduler(availabilityService, schedulingService, cfg.ReaperInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := web.NewServer(cfg.HTTPAddress, availabilityService, schedulingService, logger)

	logger.Info("Starting tutorhive server",
		zap.String("environment", cfg.Environment),
		zap.String("address", cfg.HTTPAddress),
	)

	if err := server.Run(); err != nil {
		logger.Fatal("HTTP server stopped", zap.Error(err))
	}
}
