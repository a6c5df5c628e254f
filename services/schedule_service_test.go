package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
)

func newScheduleFixture() (*ScheduleService, *fakeSlotRepo, *fakeHoursRepo) {
	slots := newFakeSlotRepo()
	hours := newFakeHoursRepo()
	return NewScheduleService(slots, hours, func() time.Time { return testNow }), slots, hours
}

func TestCreateSlot(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	slot, err := svc.CreateSlot(context.Background(), "user-1", SlotInput{
		Start:     testNow.Add(24 * time.Hour),
		End:       testNow.Add(25 * time.Hour),
		Available: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, slot.ID)
	assert.Equal(t, "user-1", slot.UserID)
	assert.Equal(t, domain.RecurrenceNone, slot.Recurrence)

	listed, err := svc.ListSlots(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCreateSlotRejectsInvertedInterval(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	_, err := svc.CreateSlot(context.Background(), "user-1", SlotInput{
		Start: testNow.Add(2 * time.Hour),
		End:   testNow.Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = svc.CreateSlot(context.Background(), "user-1", SlotInput{
		Start: testNow,
		End:   testNow,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestCreateSlotRejectsUnknownRecurrence(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	_, err := svc.CreateSlot(context.Background(), "user-1", SlotInput{
		Start:      testNow,
		End:        testNow.Add(time.Hour),
		Recurrence: domain.Recurrence("fortnightly"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestUpdateSlotOwnership(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	slot, err := svc.CreateSlot(context.Background(), "user-1", SlotInput{
		Start: testNow, End: testNow.Add(time.Hour), Available: true,
	})
	require.NoError(t, err)

	// Another user's update reads as not found.
	_, err = svc.UpdateSlot(context.Background(), "user-2", slot.ID, SlotInput{
		Start: testNow, End: testNow.Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	updated, err := svc.UpdateSlot(context.Background(), "user-1", slot.ID, SlotInput{
		Start: testNow, End: testNow.Add(2 * time.Hour), Available: false,
	})
	require.NoError(t, err)
	assert.False(t, updated.Available)
	assert.Equal(t, testNow.Add(2*time.Hour), updated.End)
}

func TestDeleteSlotOwnership(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	slot, err := svc.CreateSlot(context.Background(), "user-1", SlotInput{
		Start: testNow, End: testNow.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteSlot(context.Background(), "user-2", slot.ID), errors.ErrNotFound)
	require.NoError(t, svc.DeleteSlot(context.Background(), "user-1", slot.ID))
	assert.ErrorIs(t, svc.DeleteSlot(context.Background(), "user-1", slot.ID), errors.ErrNotFound)
}

func TestBusinessHoursDefault(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	hours, err := svc.BusinessHours(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 9*60, hours.StartMinute)
	assert.Equal(t, 17*60, hours.EndMinute)
	assert.Len(t, hours.WorkingDays, 5)
}

func TestUpdateBusinessHours(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	saved, err := svc.UpdateBusinessHours(context.Background(), "user-1", BusinessHoursInput{
		StartMinute:  8 * 60,
		EndMinute:    16 * 60,
		WorkingDays:  []time.Weekday{time.Monday, time.Wednesday},
		BufferBefore: 15,
		BufferAfter:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, saved.BufferBefore)

	hours, err := svc.BusinessHours(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 8*60, hours.StartMinute)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, hours.WorkingDays)
}

func TestUpdateBusinessHoursValidation(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	cases := []struct {
		name string
		in   BusinessHoursInput
	}{
		{"inverted window", BusinessHoursInput{StartMinute: 17 * 60, EndMinute: 9 * 60, WorkingDays: []time.Weekday{time.Monday}}},
		{"negative start", BusinessHoursInput{StartMinute: -1, EndMinute: 17 * 60, WorkingDays: []time.Weekday{time.Monday}}},
		{"end past midnight", BusinessHoursInput{StartMinute: 9 * 60, EndMinute: 25 * 60, WorkingDays: []time.Weekday{time.Monday}}},
		{"negative buffer", BusinessHoursInput{StartMinute: 9 * 60, EndMinute: 17 * 60, WorkingDays: []time.Weekday{time.Monday}, BufferBefore: -5}},
		{"no working days", BusinessHoursInput{StartMinute: 9 * 60, EndMinute: 17 * 60}},
		{"duplicate weekday", BusinessHoursInput{StartMinute: 9 * 60, EndMinute: 17 * 60, WorkingDays: []time.Weekday{time.Monday, time.Monday}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateBusinessHours(context.Background(), "user-1", tc.in)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}
