package services

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
)

// minutesPerDay bounds clock-time fields of the business-hours policy.
const minutesPerDay = 24 * 60

// SlotInput is the caller-supplied shape of an explicit availability slot.
type SlotInput struct {
	Start      time.Time
	End        time.Time
	Available  bool
	Recurrence domain.Recurrence
}

// BusinessHoursInput is the caller-supplied shape of the working-time policy.
type BusinessHoursInput struct {
	StartMinute  int
	EndMinute    int
	WorkingDays  []time.Weekday
	BufferBefore int
	BufferAfter  int
}

// ScheduleService manages the user-authored side of availability: explicit
// slots and the business-hours policy.
type ScheduleService struct {
	slots domain.SlotRepository
	hours domain.BusinessHoursRepository
	now   func() time.Time
}

// NewScheduleService creates the service. A nil clock means time.Now.
func NewScheduleService(slots domain.SlotRepository, hours domain.BusinessHoursRepository, now func() time.Time) *ScheduleService {
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{slots: slots, hours: hours, now: now}
}

// CreateSlot validates and stores a new explicit slot.
func (s *ScheduleService) CreateSlot(ctx context.Context, userID string, in SlotInput) (*domain.AvailabilitySlot, error) {
	if err := validateSlotInput(in); err != nil {
		return nil, err
	}

	slot := &domain.AvailabilitySlot{
		ID:         uuid.NewString(),
		UserID:     userID,
		Start:      in.Start.UTC(),
		End:        in.End.UTC(),
		Available:  in.Available,
		Recurrence: in.Recurrence,
		CreatedAt:  s.now().UTC(),
	}
	if slot.Recurrence == "" {
		slot.Recurrence = domain.RecurrenceNone
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}

	log.Info().Str("userID", userID).Str("slotID", slot.ID).Bool("available", slot.Available).
		Msg("Availability slot created")
	return slot, nil
}

// UpdateSlot replaces a slot the user owns. A slot belonging to another user
// reads as not found, so slot IDs leak nothing across accounts.
func (s *ScheduleService) UpdateSlot(ctx context.Context, userID, slotID string, in SlotInput) (*domain.AvailabilitySlot, error) {
	if err := validateSlotInput(in); err != nil {
		return nil, err
	}

	slot, err := s.ownedSlot(ctx, userID, slotID)
	if err != nil {
		return nil, err
	}

	slot.Start = in.Start.UTC()
	slot.End = in.End.UTC()
	slot.Available = in.Available
	slot.Recurrence = in.Recurrence
	if slot.Recurrence == "" {
		slot.Recurrence = domain.RecurrenceNone
	}
	if err := s.slots.Update(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// DeleteSlot removes a slot the user owns.
func (s *ScheduleService) DeleteSlot(ctx context.Context, userID, slotID string) error {
	if _, err := s.ownedSlot(ctx, userID, slotID); err != nil {
		return err
	}
	return s.slots.Delete(ctx, slotID)
}

// ListSlots returns all the user's slots sorted by start.
func (s *ScheduleService) ListSlots(ctx context.Context, userID string) ([]domain.AvailabilitySlot, error) {
	return s.slots.ListByUser(ctx, userID)
}

// BusinessHours returns the user's policy, or the default when none is saved.
func (s *ScheduleService) BusinessHours(ctx context.Context, userID string) (domain.BusinessHours, error) {
	hours, err := s.hours.Get(ctx, userID)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return domain.DefaultBusinessHours(userID), nil
		}
		return domain.BusinessHours{}, err
	}
	return *hours, nil
}

// UpdateBusinessHours validates and stores the user's working-time policy.
func (s *ScheduleService) UpdateBusinessHours(ctx context.Context, userID string, in BusinessHoursInput) (domain.BusinessHours, error) {
	if in.StartMinute < 0 || in.StartMinute >= minutesPerDay {
		return domain.BusinessHours{}, errors.NewValidationError("start_minute", "out of range")
	}
	if in.EndMinute <= in.StartMinute || in.EndMinute > minutesPerDay {
		return domain.BusinessHours{}, errors.NewValidationError("end_minute", "must be after start and within the day")
	}
	if in.BufferBefore < 0 || in.BufferAfter < 0 {
		return domain.BusinessHours{}, errors.NewValidationError("buffer", "must not be negative")
	}
	if len(in.WorkingDays) == 0 {
		return domain.BusinessHours{}, errors.NewValidationError("working_days", "must not be empty")
	}
	seen := map[time.Weekday]bool{}
	for _, d := range in.WorkingDays {
		if d < time.Sunday || d > time.Saturday {
			return domain.BusinessHours{}, errors.NewValidationError("working_days", fmt.Sprintf("unknown weekday %d", d))
		}
		if seen[d] {
			return domain.BusinessHours{}, errors.NewValidationError("working_days", "duplicate weekday")
		}
		seen[d] = true
	}

	hours := domain.BusinessHours{
		UserID:       userID,
		StartMinute:  in.StartMinute,
		EndMinute:    in.EndMinute,
		WorkingDays:  in.WorkingDays,
		BufferBefore: in.BufferBefore,
		BufferAfter:  in.BufferAfter,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.hours.Upsert(ctx, &hours); err != nil {
		return domain.BusinessHours{}, err
	}

	log.Info().Str("userID", userID).Msg("Business hours updated")
	return hours, nil
}

func (s *ScheduleService) ownedSlot(ctx context.Context, userID, slotID string) (*domain.AvailabilitySlot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.UserID != userID {
		return nil, fmt.Errorf("slot %s: %w", slotID, errors.ErrNotFound)
	}
	return slot, nil
}

func validateSlotInput(in SlotInput) error {
	if in.Start.IsZero() || in.End.IsZero() {
		return errors.NewValidationError("slot", "start and end are required")
	}
	if !in.End.After(in.Start) {
		return errors.NewValidationError("slot", "end must be after start")
	}
	if in.Recurrence != "" {
		if _, err := domain.ParseRecurrence(string(in.Recurrence)); err != nil {
			return errors.NewValidationError("recurrence", err.Error())
		}
	}
	return nil
}
