package echo

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/services"
)

type slotRequest struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  bool      `json:"available"`
	Recurrence string    `json:"recurrence"`
}

func (r slotRequest) toInput() services.SlotInput {
	return services.SlotInput{
		Start:      r.Start,
		End:        r.End,
		Available:  r.Available,
		Recurrence: domain.Recurrence(r.Recurrence),
	}
}

// ListSlotsHandler returns the user's explicit slots.
func (a *AvailabilityAPI) ListSlotsHandler(c echo.Context) error {
	slots, err := a.schedule.ListSlots(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	if slots == nil {
		slots = []domain.AvailabilitySlot{}
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// CreateSlotHandler stores a new explicit slot.
func (a *AvailabilityAPI) CreateSlotHandler(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewValidationError("body", "malformed JSON"))
	}

	slot, err := a.schedule.CreateSlot(c.Request().Context(), userID(c), req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

// UpdateSlotHandler replaces a slot the user owns.
func (a *AvailabilityAPI) UpdateSlotHandler(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewValidationError("body", "malformed JSON"))
	}

	slot, err := a.schedule.UpdateSlot(c.Request().Context(), userID(c), c.Param("id"), req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// DeleteSlotHandler removes a slot the user owns.
func (a *AvailabilityAPI) DeleteSlotHandler(c echo.Context) error {
	if err := a.schedule.DeleteSlot(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type businessHoursRequest struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	WorkingDays  []int  `json:"working_days"`
	BufferBefore int    `json:"buffer_before"`
	BufferAfter  int    `json:"buffer_after"`
}

type businessHoursResponse struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	WorkingDays  []int  `json:"working_days"`
	BufferBefore int    `json:"buffer_before"`
	BufferAfter  int    `json:"buffer_after"`
}

func renderBusinessHours(hours domain.BusinessHours) businessHoursResponse {
	days := make([]int, 0, len(hours.WorkingDays))
	for _, d := range hours.WorkingDays {
		days = append(days, int(d))
	}
	return businessHoursResponse{
		Start:        domain.FormatClock(hours.StartMinute),
		End:          domain.FormatClock(hours.EndMinute),
		WorkingDays:  days,
		BufferBefore: hours.BufferBefore,
		BufferAfter:  hours.BufferAfter,
	}
}

// GetBusinessHoursHandler returns the saved policy, or the default.
func (a *AvailabilityAPI) GetBusinessHoursHandler(c echo.Context) error {
	hours, err := a.schedule.BusinessHours(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, renderBusinessHours(hours))
}

// PutBusinessHoursHandler validates and stores the policy. Clock times come
// in as "HH:MM"; weekdays as 0 (Sunday) through 6 (Saturday).
func (a *AvailabilityAPI) PutBusinessHoursHandler(c echo.Context) error {
	var req businessHoursRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewValidationError("body", "malformed JSON"))
	}

	start, err := domain.ParseClock(req.Start)
	if err != nil {
		return writeError(c, errors.NewValidationError("start", err.Error()))
	}
	end, err := domain.ParseClock(req.End)
	if err != nil {
		return writeError(c, errors.NewValidationError("end", err.Error()))
	}

	days := make([]time.Weekday, 0, len(req.WorkingDays))
	for _, d := range req.WorkingDays {
		days = append(days, time.Weekday(d))
	}

	hours, err := a.schedule.UpdateBusinessHours(c.Request().Context(), userID(c), services.BusinessHoursInput{
		StartMinute:  start,
		EndMinute:    end,
		WorkingDays:  days,
		BufferBefore: req.BufferBefore,
		BufferAfter:  req.BufferAfter,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, renderBusinessHours(hours))
}
