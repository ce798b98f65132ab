package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string
	Environment string
	HTTPAddress string

	// Scheduling knobs.
	HoldTTL          time.Duration
	CancelNotice     time.Duration
	SlotHorizonWeeks int
	ReaperInterval   time.Duration
	RetentionDays    int
	MigrationsPath   string

	// Collaborators.
	CalendarBridgeURL string
	PaymentServiceURL string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SMTPFrom          string
	TelegramToken     string
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables win in production.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:             os.Getenv("DB_DSN"),
		Environment:       getEnv("ENV", "development"),
		HTTPAddress:       getEnv("HTTP_ADDRESS", ":8080"),
		HoldTTL:           time.Duration(getEnvInt("HOLD_TTL_MINUTES", 10)) * time.Minute,
		CancelNotice:      time.Duration(getEnvInt("CANCEL_NOTICE_HOURS", 2)) * time.Hour,
		SlotHorizonWeeks:  getEnvInt("SLOT_HORIZON_WEEKS", 8),
		ReaperInterval:    time.Duration(getEnvInt("REAPER_INTERVAL_SECONDS", 60)) * time.Second,
		RetentionDays:     getEnvInt("RETENTION_DAYS", 90),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "migrations"),
		CalendarBridgeURL: os.Getenv("CALENDAR_BRIDGE_URL"),
		PaymentServiceURL: os.Getenv("PAYMENT_SERVICE_URL"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnvInt("SMTP_PORT", 587),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:          getEnv("SMTP_FROM", "bookings@tutorhive.io"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.HoldTTL <= 0 {
		return nil, fmt.Errorf("HOLD_TTL_MINUTES must be positive")
	}
	if cfg.SlotHorizonWeeks <= 0 {
		return nil, fmt.Errorf("SLOT_HORIZON_WEEKS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
