// Package echo exposes the availability engine over HTTP.
package echo

import (
	goerrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/services"
)

// userIDHeader identifies the authenticated user. Session handling lives in
// the gateway in front of this service; the header is trusted here.
const userIDHeader = "X-User-ID"

// HealthChecker reports backing-store health for the healthz endpoint.
type HealthChecker func(ctx echo.Context) error

// AvailabilityAPI holds the HTTP handlers and their service dependencies.
type AvailabilityAPI struct {
	integrations *services.IntegrationService
	availability *services.AvailabilityService
	schedule     *services.ScheduleService
	tracker      *services.TrackerService
	health       HealthChecker
}

// NewAvailabilityAPI initializes the API.
func NewAvailabilityAPI(
	integrations *services.IntegrationService,
	availability *services.AvailabilityService,
	schedule *services.ScheduleService,
	tracker *services.TrackerService,
	health HealthChecker,
) *AvailabilityAPI {
	return &AvailabilityAPI{
		integrations: integrations,
		availability: availability,
		schedule:     schedule,
		tracker:      tracker,
		health:       health,
	}
}

// RegisterRoutes registers every route. The widget group is public; the rest
// requires the user identity header.
func (a *AvailabilityAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", a.HealthzHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// The OAuth callback carries identity in the state, not the header.
	e.GET("/integrations/callback", a.CallbackHandler)

	user := e.Group("", a.requireUser)
	user.GET("/integrations", a.ListIntegrationsHandler)
	user.GET("/integrations/:provider/connect", a.ConnectHandler)
	user.DELETE("/integrations/:provider", a.DisconnectHandler)
	user.GET("/integrations/:provider/calendars", a.ListCalendarsHandler)
	user.PUT("/calendars/selection", a.SaveSelectionHandler)
	user.GET("/calendars/selection", a.GetSelectionHandler)

	user.GET("/slots", a.ListSlotsHandler)
	user.POST("/slots", a.CreateSlotHandler)
	user.PUT("/slots/:id", a.UpdateSlotHandler)
	user.DELETE("/slots/:id", a.DeleteSlotHandler)
	user.GET("/business-hours", a.GetBusinessHoursHandler)
	user.PUT("/business-hours", a.PutBusinessHoursHandler)

	user.GET("/availability/month", a.MonthAvailabilityHandler)
	user.GET("/availability/day", a.DayAvailabilityHandler)
	user.GET("/availability/next", a.NextAvailableHandler)

	widget := e.Group("/widget")
	widget.GET("/:userID/availability", a.WidgetAvailabilityHandler)
	widget.POST("/:userID/events", a.WidgetEventHandler)
	widget.GET("/:userID/stats", a.WidgetStatsHandler)
}

func (a *AvailabilityAPI) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Request().Header.Get(userIDHeader)
		if userID == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing_user"})
		}
		c.Set("userID", userID)
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get("userID").(string)
	return id
}

// HealthzHandler reports liveness plus backing-store reachability.
func (a *AvailabilityAPI) HealthzHandler(c echo.Context) error {
	if a.health != nil {
		if err := a.health(c); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// writeError maps the error taxonomy onto HTTP statuses. Unknown errors are
// logged and hidden behind a 500.
func writeError(c echo.Context, err error) error {
	var ve *errors.ValidationError
	if goerrors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "error_description": ve.Error()})
	}
	if goerrors.Is(err, errors.ErrUnsupportedProvider) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported_provider", "error_description": err.Error()})
	}
	if goerrors.Is(err, errors.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}
	if goerrors.Is(err, errors.ErrIntegrationMissing) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "integration_missing", "error_description": err.Error()})
	}
	if goerrors.Is(err, errors.ErrInterruptedFlow) {
		return c.JSON(http.StatusGone, echo.Map{"error": "flow_interrupted", "error_description": err.Error()})
	}
	if errors.IsAuthError(err) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reauthorization_required", "error_description": err.Error()})
	}
	var pe *errors.ProviderError
	if goerrors.As(err, &pe) {
		return c.JSON(http.StatusBadGateway, pe)
	}
	if errors.IsTransientFetchError(err) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "provider_unavailable"})
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server_error"})
}

func parseProviderParam(c echo.Context) (domain.Provider, error) {
	p, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return "", errors.NewValidationError("provider", err.Error())
	}
	return p, nil
}

// ConnectHandler starts an OAuth flow and redirects to the provider.
func (a *AvailabilityAPI) ConnectHandler(c echo.Context) error {
	p, err := parseProviderParam(c)
	if err != nil {
		return writeError(c, err)
	}

	authURL, err := a.integrations.BeginConnect(c.Request().Context(), userID(c), p)
	if err != nil {
		return writeError(c, err)
	}
	return c.Redirect(http.StatusFound, authURL)
}

// CallbackHandler completes an OAuth flow. Provider-reported denials arrive
// as error/error_description query parameters instead of a code.
func (a *AvailabilityAPI) CallbackHandler(c echo.Context) error {
	if provErr := c.QueryParam("error"); provErr != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             provErr,
			"error_description": c.QueryParam("error_description"),
		})
	}

	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if state == "" || code == "" {
		return writeError(c, errors.NewValidationError("callback", "state and code are required"))
	}

	result, err := a.integrations.CompleteConnect(c.Request().Context(), state, code)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"provider":  result.Provider,
		"connected": true,
		"calendars": result.Calendars,
	})
}

// ListIntegrationsHandler reports which providers the user has connected.
func (a *AvailabilityAPI) ListIntegrationsHandler(c echo.Context) error {
	connected, err := a.integrations.ConnectedProviders(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"connected": connected})
}

// DisconnectHandler revokes and removes one integration.
func (a *AvailabilityAPI) DisconnectHandler(c echo.Context) error {
	p, err := parseProviderParam(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := a.integrations.Disconnect(c.Request().Context(), userID(c), p); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCalendarsHandler returns the user's calendars at the provider.
func (a *AvailabilityAPI) ListCalendarsHandler(c echo.Context) error {
	p, err := parseProviderParam(c)
	if err != nil {
		return writeError(c, err)
	}
	calendars, err := a.integrations.ListCalendars(c.Request().Context(), userID(c), p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"calendars": calendars})
}

type selectionRequest struct {
	Calendars []struct {
		CalendarID string `json:"calendar_id"`
		Provider   string `json:"provider"`
		Name       string `json:"name"`
	} `json:"calendars"`
}

// SaveSelectionHandler replaces the user's selected calendar set.
func (a *AvailabilityAPI) SaveSelectionHandler(c echo.Context) error {
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewValidationError("body", "malformed JSON"))
	}

	uid := userID(c)
	selection := make([]domain.SelectedCalendar, 0, len(req.Calendars))
	for _, cal := range req.Calendars {
		p, err := domain.ParseProvider(cal.Provider)
		if err != nil {
			return writeError(c, errors.NewValidationError("provider", err.Error()))
		}
		selection = append(selection, domain.SelectedCalendar{
			UserID:     uid,
			CalendarID: cal.CalendarID,
			Provider:   p,
			Name:       cal.Name,
		})
	}

	if err := a.integrations.SaveSelectedCalendars(c.Request().Context(), uid, selection); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"calendars": selection})
}

// GetSelectionHandler returns the user's current calendar selection.
func (a *AvailabilityAPI) GetSelectionHandler(c echo.Context) error {
	selection, err := a.integrations.ListSelectedCalendars(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"calendars": selection})
}
