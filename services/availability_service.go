package services

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/internal/engine"
	"github.com/slotgrid/slotgrid/internal/metrics"
)

// DefaultIntervalMinutes is the bucket size used when a request does not ask
// for one. It divides the default business-hours window evenly.
const DefaultIntervalMinutes = 60

// nextAvailableHorizonDays bounds the forward scan of NextAvailable when the
// caller does not ask for a window.
const nextAvailableHorizonDays = 60

// maxRangeDays caps caller-supplied day windows.
const maxRangeDays = 90

// BusyEventSource supplies merged provider events for a user and range.
// Implemented by IntegrationService; narrowed to an interface so availability
// logic is testable without provider plumbing.
type BusyEventSource interface {
	FetchBusyEventsForAllSelected(ctx context.Context, userID string, start, end time.Time) ([]domain.CalendarEvent, error)
}

// AvailabilityService renders the engine's decisions for the month grid, the
// daily list and the next-available probe. All three share one fetch path and
// one decision routine.
type AvailabilityService struct {
	events BusyEventSource
	slots  domain.SlotRepository
	hours  domain.BusinessHoursRepository
	engine *engine.Engine
	now    func() time.Time
}

// NewAvailabilityService creates the service. A nil clock means time.Now.
func NewAvailabilityService(
	events BusyEventSource,
	slots domain.SlotRepository,
	hours domain.BusinessHoursRepository,
	now func() time.Time,
) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		events: events,
		slots:  slots,
		hours:  hours,
		engine: engine.New(now),
		now:    now,
	}
}

// MonthGrid computes one DayAvailability per day of the given month. Events
// and slots are fetched once for the whole range, then reconciled per day.
func (s *AvailabilityService) MonthGrid(ctx context.Context, userID string, year int, month time.Month, intervalMin int) ([]domain.DayAvailability, error) {
	if intervalMin <= 0 {
		intervalMin = DefaultIntervalMinutes
	}
	metrics.AvailabilityRequestsTotal.WithLabelValues("month").Inc()

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	return s.computeRange(ctx, userID, start, end, intervalMin)
}

// DaySlots computes the labelled morning/afternoon buckets for one date.
func (s *AvailabilityService) DaySlots(ctx context.Context, userID string, date time.Time, intervalMin int) (*domain.DaySlots, error) {
	if intervalMin <= 0 {
		intervalMin = DefaultIntervalMinutes
	}
	metrics.AvailabilityRequestsTotal.WithLabelValues("day").Inc()

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := s.events.FetchBusyEventsForAllSelected(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListInRange(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	hours, err := s.businessHours(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.engine.ComputeDaySlots(dayStart, events, slots, hours, intervalMin)
}

// RangeFromToday computes one DayAvailability per day for a window starting
// today. This is the widget embed's read path: the embed passes a display-days
// count and renders whatever comes back.
func (s *AvailabilityService) RangeFromToday(ctx context.Context, userID string, days, intervalMin int) ([]domain.DayAvailability, error) {
	if days <= 0 || days > maxRangeDays {
		return nil, errors.NewValidationError("days", "must be between 1 and 90")
	}
	if intervalMin <= 0 {
		intervalMin = DefaultIntervalMinutes
	}
	metrics.AvailabilityRequestsTotal.WithLabelValues("range").Inc()

	start := s.today()
	return s.computeRange(ctx, userID, start, start.AddDate(0, 0, days), intervalMin)
}

// NextAvailable returns the first date from today with at least one open
// bucket, scanning horizonDays ahead (a 60-day default when zero). ok is
// false when the whole window is closed.
func (s *AvailabilityService) NextAvailable(ctx context.Context, userID string, horizonDays, intervalMin int) (time.Time, bool, error) {
	if horizonDays <= 0 {
		horizonDays = nextAvailableHorizonDays
	}
	if horizonDays > maxRangeDays {
		return time.Time{}, false, errors.NewValidationError("days", "must be at most 90")
	}
	if intervalMin <= 0 {
		intervalMin = DefaultIntervalMinutes
	}
	metrics.AvailabilityRequestsTotal.WithLabelValues("next").Inc()

	start := s.today()
	days, err := s.computeRange(ctx, userID, start, start.AddDate(0, 0, horizonDays), intervalMin)
	if err != nil {
		return time.Time{}, false, err
	}

	date, ok := s.engine.FindNextAvailable(days)
	return date, ok, nil
}

func (s *AvailabilityService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// BusinessHours returns the user's saved policy, or the default when none is.
func (s *AvailabilityService) BusinessHours(ctx context.Context, userID string) (domain.BusinessHours, error) {
	return s.businessHours(ctx, userID)
}

func (s *AvailabilityService) computeRange(ctx context.Context, userID string, start, end time.Time, intervalMin int) ([]domain.DayAvailability, error) {
	events, err := s.events.FetchBusyEventsForAllSelected(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListInRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	hours, err := s.businessHours(ctx, userID)
	if err != nil {
		return nil, err
	}

	days := make([]domain.DayAvailability, 0, int(end.Sub(start).Hours()/24))
	for date := start; date.Before(end); date = date.AddDate(0, 0, 1) {
		pattern, err := s.engine.ComputeDayPattern(date, events, slots, hours, intervalMin)
		if err != nil {
			return nil, err
		}
		days = append(days, domain.NewDayAvailability(date, pattern))
	}
	return days, nil
}

func (s *AvailabilityService) businessHours(ctx context.Context, userID string) (domain.BusinessHours, error) {
	hours, err := s.hours.Get(ctx, userID)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return domain.DefaultBusinessHours(userID), nil
		}
		return domain.BusinessHours{}, err
	}
	return *hours, nil
}
