package domain

import (
	"fmt"
	"time"
)

// Recurrence is a stored scheduling intent on an explicit slot. The
// reconciliation path consults concrete intervals only and performs no
// expansion; the tag is persisted so a future recurrence feature needs no
// data migration.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence validates a recurrence tag.
func ParseRecurrence(s string) (Recurrence, error) {
	if s == "" {
		return RecurrenceNone, nil
	}
	switch Recurrence(s) {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return Recurrence(s), nil
	}
	return "", fmt.Errorf("unknown recurrence %q", s)
}

// AvailabilitySlot is a user-authored override interval, independent of any
// provider. Available=true slots act as an allow-list: once a user has any
// explicit slot, only explicitly opened time can be offered as free.
type AvailabilitySlot struct {
	ID         string     `bson:"_id" json:"id"`
	UserID     string     `bson:"user_id" json:"user_id"`
	Start      time.Time  `bson:"start" json:"start"`
	End        time.Time  `bson:"end" json:"end"`
	Available  bool       `bson:"available" json:"available"`
	Recurrence Recurrence `bson:"recurrence" json:"recurrence"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}

// BusinessHours is the per-user working-time policy. Times of day are minutes
// since midnight; buffers widen provider events only, never explicit slots.
type BusinessHours struct {
	UserID       string         `bson:"user_id" json:"user_id"`
	StartMinute  int            `bson:"start_minute" json:"start_minute"`
	EndMinute    int            `bson:"end_minute" json:"end_minute"`
	WorkingDays  []time.Weekday `bson:"working_days" json:"working_days"`
	BufferBefore int            `bson:"buffer_before" json:"buffer_before"`
	BufferAfter  int            `bson:"buffer_after" json:"buffer_after"`
	UpdatedAt    time.Time      `bson:"updated_at" json:"updated_at"`
}

// DefaultBusinessHours is the policy applied before a user saves one:
// 09:00-17:00, Monday through Friday, no buffers.
func DefaultBusinessHours(userID string) BusinessHours {
	return BusinessHours{
		UserID:      userID,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

// IsWorkingDay reports whether the weekday is part of the policy.
func (h BusinessHours) IsWorkingDay(d time.Weekday) bool {
	for _, wd := range h.WorkingDays {
		if wd == d {
			return true
		}
	}
	return false
}

// ParseClock converts an "HH:MM" time-of-day into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// DayAvailability is the derived per-date pattern: one flag per bucket within
// business hours, ascending. Recomputed on every request; never persisted.
type DayAvailability struct {
	Date           time.Time `json:"date"`
	Pattern        []bool    `json:"pattern"`
	AvailableCount int       `json:"available_count"`
}

// NewDayAvailability builds a DayAvailability, counting the open buckets.
func NewDayAvailability(date time.Time, pattern []bool) DayAvailability {
	count := 0
	for _, free := range pattern {
		if free {
			count++
		}
	}
	return DayAvailability{Date: date, Pattern: pattern, AvailableCount: count}
}

// Slot is one display bucket in the daily view.
type Slot struct {
	Label     string    `json:"label"`
	Available bool      `json:"available"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// DaySlots partitions a day's buckets for display.
type DaySlots struct {
	Morning   []Slot `json:"morning"`
	Afternoon []Slot `json:"afternoon"`
}
