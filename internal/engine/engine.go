// Package engine implements the pure reconciliation of provider busy events,
// explicit availability slots and business-hour policy into per-bucket
// free/busy decisions. Every rendering surface (month grid, daily list,
// public widget) consumes this package; none re-derives availability on its
// own, so the three views cannot drift apart.
package engine

import (
	"time"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/internal/interval"
)

// Engine computes availability patterns. It performs no I/O; the clock is
// injected so past-date handling is testable.
type Engine struct {
	now func() time.Time
}

// New returns an Engine using the given clock, or time.Now when nil.
func New(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// ComputeDayPattern returns one flag per intervalMin-sized bucket between the
// business-hours start and end on the given date, ascending. Non-working days
// and past dates yield an all-false pattern of the same fixed length.
func (e *Engine) ComputeDayPattern(
	date time.Time,
	events []domain.CalendarEvent,
	slots []domain.AvailabilitySlot,
	hours domain.BusinessHours,
	intervalMin int,
) ([]bool, error) {
	buckets, err := dayBuckets(date, hours, intervalMin)
	if err != nil {
		return nil, err
	}

	pattern := make([]bool, len(buckets))
	if !e.dayInPlay(date, hours) {
		return pattern, nil
	}
	for i, b := range buckets {
		pattern[i] = decideBucket(b, events, slots, hours)
	}
	return pattern, nil
}

// ComputeDaySlots is the daily-list rendering of the same computation as
// ComputeDayPattern: one labelled slot per bucket, partitioned into morning
// (before 12:00) and afternoon, ascending within each partition.
func (e *Engine) ComputeDaySlots(
	date time.Time,
	events []domain.CalendarEvent,
	slots []domain.AvailabilitySlot,
	hours domain.BusinessHours,
	intervalMin int,
) (*domain.DaySlots, error) {
	buckets, err := dayBuckets(date, hours, intervalMin)
	if err != nil {
		return nil, err
	}

	inPlay := e.dayInPlay(date, hours)
	out := &domain.DaySlots{Morning: []domain.Slot{}, Afternoon: []domain.Slot{}}
	for _, b := range buckets {
		free := false
		if inPlay {
			free = decideBucket(b, events, slots, hours)
		}
		slot := domain.Slot{
			Label:     domain.FormatClock(b.startMinute),
			Available: free,
			Start:     b.start,
			End:       b.end,
		}
		if b.startMinute < 12*60 {
			out.Morning = append(out.Morning, slot)
		} else {
			out.Afternoon = append(out.Afternoon, slot)
		}
	}
	return out, nil
}

// FindNextAvailable returns the first date, in the given ascending sequence,
// with at least one open bucket. The second result is false when none has.
func (e *Engine) FindNextAvailable(days []domain.DayAvailability) (time.Time, bool) {
	for _, day := range days {
		if day.AvailableCount > 0 {
			return day.Date, true
		}
	}
	return time.Time{}, false
}

type bucket struct {
	start       time.Time
	end         time.Time
	startMinute int
}

// dayBuckets slices the business-hours window on date into intervalMin-sized
// buckets. The interval must evenly divide the window; a remainder would
// silently shrink the day, so it is rejected instead.
func dayBuckets(date time.Time, hours domain.BusinessHours, intervalMin int) ([]bucket, error) {
	if intervalMin <= 0 {
		return nil, errors.NewValidationError("interval", "must be positive")
	}
	window := hours.EndMinute - hours.StartMinute
	if window <= 0 {
		return nil, errors.NewValidationError("business_hours", "end must be after start")
	}
	if window%intervalMin != 0 {
		return nil, errors.NewValidationError("interval", "must evenly divide the business-hours window")
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	buckets := make([]bucket, 0, window/intervalMin)
	for m := hours.StartMinute; m < hours.EndMinute; m += intervalMin {
		buckets = append(buckets, bucket{
			start:       midnight.Add(time.Duration(m) * time.Minute),
			end:         midnight.Add(time.Duration(m+intervalMin) * time.Minute),
			startMinute: m,
		})
	}
	return buckets, nil
}

// dayInPlay reports whether date can have availability at all: it must be a
// working day and not in the past (date-only comparison).
func (e *Engine) dayInPlay(date time.Time, hours domain.BusinessHours) bool {
	if !hours.IsWorkingDay(date.Weekday()) {
		return false
	}
	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())
	return !day.Before(today)
}

// decideBucket is the single availability decision shared by every view.
// A bucket is open iff no buffered provider event overlaps it, and — when
// the user has any explicit slots at all — some available slot covers it.
// Explicit slots narrow provider-free time; they never override busy time.
func decideBucket(b bucket, events []domain.CalendarEvent, slots []domain.AvailabilitySlot, hours domain.BusinessHours) bool {
	for _, ev := range events {
		start, end := interval.Buffered(ev.Start, ev.End, hours.BufferBefore, hours.BufferAfter)
		if interval.Overlaps(start, end, b.start, b.end) {
			return false
		}
	}
	if len(slots) == 0 {
		return true
	}
	for _, slot := range slots {
		if slot.Available && interval.Overlaps(slot.Start, slot.End, b.start, b.end) {
			return true
		}
	}
	return false
}
