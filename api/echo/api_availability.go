package echo

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotgrid/slotgrid/errors"
)

const dateLayout = "2006-01-02"

func intervalParam(c echo.Context) (int, error) {
	raw := c.QueryParam("interval")
	if raw == "" {
		return 0, nil
	}
	interval, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError("interval", "must be an integer number of minutes")
	}
	return interval, nil
}

func daysParam(c echo.Context) (int, error) {
	raw := c.QueryParam("days")
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError("days", "must be an integer number of days")
	}
	return days, nil
}

// MonthAvailabilityHandler renders the month grid.
func (a *AvailabilityAPI) MonthAvailabilityHandler(c echo.Context) error {
	return a.monthAvailability(c, userID(c))
}

// DayAvailabilityHandler renders the morning/afternoon buckets of one date.
func (a *AvailabilityAPI) DayAvailabilityHandler(c echo.Context) error {
	return a.dayAvailability(c, userID(c))
}

// NextAvailableHandler returns the first upcoming date with an open bucket.
func (a *AvailabilityAPI) NextAvailableHandler(c echo.Context) error {
	interval, err := intervalParam(c)
	if err != nil {
		return writeError(c, err)
	}
	days, err := daysParam(c)
	if err != nil {
		return writeError(c, err)
	}

	date, ok, err := a.availability.NextAvailable(c.Request().Context(), userID(c), days, interval)
	if err != nil {
		return writeError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"available": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"available": true, "date": date.Format(dateLayout)})
}

// WidgetAvailabilityHandler is the public embed's availability view: the
// month grid by default, a forward window when days= is given, or one day's
// buckets when date= is given. It serves whatever availability exists and
// never asks who is looking.
func (a *AvailabilityAPI) WidgetAvailabilityHandler(c echo.Context) error {
	uid := c.Param("userID")
	if c.QueryParam("date") != "" {
		return a.dayAvailability(c, uid)
	}
	if c.QueryParam("days") != "" {
		return a.rangeAvailability(c, uid)
	}
	return a.monthAvailability(c, uid)
}

// WidgetEventHandler records an engagement event from the public embed.
func (a *AvailabilityAPI) WidgetEventHandler(c echo.Context) error {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewValidationError("body", "malformed JSON"))
	}

	if err := a.tracker.RecordEvent(c.Request().Context(), c.Param("userID"), req.Kind); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"recorded": true})
}

// WidgetStatsHandler returns the user's widget engagement counters.
func (a *AvailabilityAPI) WidgetStatsHandler(c echo.Context) error {
	stats, err := a.tracker.Stats(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *AvailabilityAPI) monthAvailability(c echo.Context, uid string) error {
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()

	if raw := c.QueryParam("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return writeError(c, errors.NewValidationError("year", "must be an integer"))
		}
		year = parsed
	}
	if raw := c.QueryParam("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			return writeError(c, errors.NewValidationError("month", "must be 1 through 12"))
		}
		month = time.Month(parsed)
	}
	interval, err := intervalParam(c)
	if err != nil {
		return writeError(c, err)
	}

	days, err := a.availability.MonthGrid(c.Request().Context(), uid, year, month, interval)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"year":  year,
		"month": int(month),
		"days":  days,
	})
}

func (a *AvailabilityAPI) rangeAvailability(c echo.Context, uid string) error {
	days, err := daysParam(c)
	if err != nil {
		return writeError(c, err)
	}
	interval, err := intervalParam(c)
	if err != nil {
		return writeError(c, err)
	}

	window, err := a.availability.RangeFromToday(c.Request().Context(), uid, days, interval)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"days": window})
}

func (a *AvailabilityAPI) dayAvailability(c echo.Context, uid string) error {
	raw := c.QueryParam("date")
	if raw == "" {
		return writeError(c, errors.NewValidationError("date", "required, format YYYY-MM-DD"))
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return writeError(c, errors.NewValidationError("date", "format YYYY-MM-DD"))
	}
	interval, err := intervalParam(c)
	if err != nil {
		return writeError(c, err)
	}

	slots, err := a.availability.DaySlots(c.Request().Context(), uid, date, interval)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":  raw,
		"slots": slots,
	})
}
