package config

import (
	"time"
)

// BookingConfig tunes slot generation and the scheduled jobs.
type BookingConfig struct {
	SlotStep        time.Duration // spacing between candidate slot starts
	IdempotencyTTL  time.Duration // how long Redis remembers an idempotency key
	ReminderWindow  time.Duration // send reminders this far ahead of start
	ReminderSpec    string        // cron spec for the reminder job
	FinishSpec      string        // cron spec for the finish job
	Timezone        string        // zone used when a resource has none
	DefaultDuration time.Duration // slot length when a request names none
}

// LoadBookingConfig reads BOOKING_* variables with defaults.
func LoadBookingConfig() BookingConfig {
	cfg := BookingConfig{
		SlotStep:        envDur("BOOKING_SLOT_STEP", 30*time.Minute),
		IdempotencyTTL:  envDur("BOOKING_IDEMPOTENCY_TTL", 24*time.Hour),
		ReminderWindow:  envDur("BOOKING_REMINDER_WINDOW", 24*time.Hour),
		ReminderSpec:    envStr("BOOKING_REMINDER_CRON", "@every 15m"),
		FinishSpec:      envStr("BOOKING_FINISH_CRON", "@every 5m"),
		Timezone:        envStr("BOOKING_TIMEZONE", "UTC"),
		DefaultDuration: envDur("BOOKING_DEFAULT_DURATION", time.Hour),
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = time.Hour
	}
	return cfg
}

// Location resolves Timezone, falling back to UTC.
func (c BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
