package domain

import (
	"context"
	"time"
)

// CredentialRepository persists OAuth credentials per (user, provider).
// It holds no refresh logic; deciding when to refresh is the orchestrator's job.
type CredentialRepository interface {
	// Get returns the credential or a NotFound error.
	Get(ctx context.Context, userID string, provider Provider) (*OAuthCredential, error)
	// Upsert inserts or updates the row for (user, provider). An empty
	// incoming refresh token preserves the one already stored, since a
	// repeated code exchange or a refresh response may omit it.
	Upsert(ctx context.Context, cred *OAuthCredential) error
	Delete(ctx context.Context, userID string, provider Provider) error
}

// SelectedCalendarRepository persists which provider calendars feed busy time.
type SelectedCalendarRepository interface {
	ListByUser(ctx context.Context, userID string) ([]SelectedCalendar, error)
	// ReplaceForUser swaps the whole selection set: delete then insert.
	ReplaceForUser(ctx context.Context, userID string, selection []SelectedCalendar) error
	DeleteByUserProvider(ctx context.Context, userID string, provider Provider) error
}

// SlotRepository persists explicit availability overrides.
type SlotRepository interface {
	Create(ctx context.Context, slot *AvailabilitySlot) error
	GetByID(ctx context.Context, id string) (*AvailabilitySlot, error)
	Update(ctx context.Context, slot *AvailabilitySlot) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]AvailabilitySlot, error)
	// ListInRange returns the user's slots overlapping [start, end).
	ListInRange(ctx context.Context, userID string, start, end time.Time) ([]AvailabilitySlot, error)
}

// BusinessHoursRepository persists the per-user working-time policy.
type BusinessHoursRepository interface {
	// Get returns the saved policy or a NotFound error; callers substitute
	// DefaultBusinessHours when none is saved.
	Get(ctx context.Context, userID string) (*BusinessHours, error)
	Upsert(ctx context.Context, hours *BusinessHours) error
}

// WidgetStatsRepository maintains per-user widget counters.
type WidgetStatsRepository interface {
	// Increment bumps one counter, creating the row on first use.
	Increment(ctx context.Context, userID string, kind WidgetEventKind) error
	Get(ctx context.Context, userID string) (*WidgetStats, error)
}
