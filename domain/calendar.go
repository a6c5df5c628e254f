package domain

import "time"

// CalendarDescriptor describes one calendar owned by the user at a provider.
// Descriptors are produced by a live listing against the provider and are
// never persisted or cached.
type CalendarDescriptor struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	IsPrimary  bool     `json:"is_primary"`
	OwnerEmail string   `json:"owner_email,omitempty"`
	Provider   Provider `json:"provider"`
}

// SelectedCalendar marks a provider calendar as consulted for busy time.
// The set is replaced wholesale on every save, never edited incrementally.
type SelectedCalendar struct {
	UserID     string    `bson:"user_id" json:"user_id"`
	CalendarID string    `bson:"calendar_id" json:"calendar_id"`
	Provider   Provider  `bson:"provider" json:"provider"`
	Name       string    `bson:"name" json:"name"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// CalendarEvent is a provider-agnostic busy interval. Events are fetched
// fresh for each query window; the system of record stays with the provider.
// Recurring provider events arrive already expanded to concrete instances.
type CalendarEvent struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	AllDay     bool      `json:"all_day"`
	CalendarID string    `json:"calendar_id"`
	Provider   Provider  `json:"provider"`
}
