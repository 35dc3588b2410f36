// Package settings serves the per-user preference record. Values are fixed at
// startup; updates are acknowledged but not stored.
package settings

import (
	"context"
	"log/slog"
)

// UpdatedMessage acknowledges an update.
const UpdatedMessage = "Settings updated successfully (backend mock)"

// Record holds notification and display preferences.
type Record struct {
	PhoneticName                string `json:"phonetic_name" yaml:"phonetic_name"`
	EmailForNotifications       string `json:"email_for_notifications" yaml:"email_for_notifications"`
	CurrencySymbol              string `json:"currency_symbol" yaml:"currency_symbol"`
	DateFormat                  string `json:"date_format" yaml:"date_format"`
	DarkModeEnabled             bool   `json:"dark_mode_enabled" yaml:"dark_mode_enabled"`
	DesktopNotificationsEnabled bool   `json:"desktop_notifications_enabled" yaml:"desktop_notifications_enabled"`
	SoundEffectsEnabled         bool   `json:"sound_effects_enabled" yaml:"sound_effects_enabled"`
	PhoneNumberForNotifications string `json:"phone_number_for_notifications" yaml:"phone_number_for_notifications"`
}

// Defaults returns the built-in record.
func Defaults() Record {
	return Record{
		PhoneticName:                "Renias",
		EmailForNotifications:       "renias0101@gmail.com",
		CurrencySymbol:              "R",
		DateFormat:                  "YYYY-MM-DD",
		DarkModeEnabled:             true,
		DesktopNotificationsEnabled: false,
		SoundEffectsEnabled:         true,
		PhoneNumberForNotifications: "+27721234567",
	}
}

// Provider answers settings reads for every user with the same record.
type Provider struct {
	record Record
	logger *slog.Logger
}

// NewProvider returns a provider serving record.
func NewProvider(record Record, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{record: record, logger: logger}
}

// Get returns the record for userID.
func (p *Provider) Get(_ context.Context, _ int) Record {
	return p.record
}

// Update acknowledges a change without applying it.
func (p *Provider) Update(ctx context.Context, userID int, in Record) string {
	p.logger.InfoContext(ctx, "settings update ignored", "user_id", userID, "email_for_notifications", in.EmailForNotifications)
	return UpdatedMessage
}
