package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// Endpoints are variables so adapter tests can point them at a local server.
var (
	GoogleCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
	GoogleRevokeEndpoint  = "https://oauth2.googleapis.com/revoke"
)

const googleCalendarScope = "https://www.googleapis.com/auth/calendar.readonly"

// GoogleProvider adapts the Google Calendar v3 API.
type GoogleProvider struct {
	cfg         Config
	oauthConfig *oauth2.Config
}

// NewGoogleProvider builds the Google adapter from an OAuth client registration.
func NewGoogleProvider(cfg Config) *GoogleProvider {
	return &GoogleProvider{
		cfg: cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{googleCalendarScope},
			Endpoint:     googleoauth.Endpoint,
		},
	}
}

func (g *GoogleProvider) Name() domain.Provider { return domain.ProviderGoogle }

// RequiresPKCE is false for Google: the confidential client flow carries a
// client secret instead.
func (g *GoogleProvider) RequiresPKCE() bool { return false }

// BuildAuthorizationURL requests offline access so a refresh token is granted
// on first consent.
func (g *GoogleProvider) BuildAuthorizationURL(state, _ string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *GoogleProvider) ExchangeCode(ctx context.Context, code, _ string) (*TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.timeout())
	defer cancel()

	tok, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, exchangeError(domain.ProviderGoogle, err)
	}
	return tokenResult(tok), nil
}

func (g *GoogleProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.timeout())
	defer cancel()

	src := g.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, refreshError(domain.ProviderGoogle, err)
	}
	return tokenResult(tok), nil
}

func (g *GoogleProvider) ListCalendars(ctx context.Context, accessToken string) ([]domain.CalendarDescriptor, error) {
	body, err := g.get(ctx, accessToken, GoogleCalendarBaseURL+"/users/me/calendarList", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
			Primary bool   `json:"primary"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewTransientFetchError("google", err)
	}

	calendars := make([]domain.CalendarDescriptor, 0, len(result.Items))
	for _, item := range result.Items {
		owner := ""
		if strings.Contains(item.ID, "@") {
			owner = item.ID
		}
		calendars = append(calendars, domain.CalendarDescriptor{
			ID:         item.ID,
			Name:       item.Summary,
			IsPrimary:  item.Primary,
			OwnerEmail: owner,
			Provider:   domain.ProviderGoogle,
		})
	}
	return calendars, nil
}

func (g *GoogleProvider) ListEvents(ctx context.Context, accessToken, calendarID string, rangeStart, rangeEnd time.Time) ([]domain.CalendarEvent, error) {
	params := url.Values{}
	params.Set("timeMin", rangeStart.UTC().Format(time.RFC3339))
	params.Set("timeMax", rangeEnd.UTC().Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", "2500")

	endpoint := GoogleCalendarBaseURL + "/calendars/" + url.PathEscape(calendarID) + "/events"
	body, err := g.get(ctx, accessToken, endpoint, params)
	if err != nil {
		if isNotFound(err) {
			// Calendar deleted at the provider since selection.
			return []domain.CalendarEvent{}, nil
		}
		return nil, err
	}

	var result struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
			Status  string `json:"status"`
			Start   struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"end"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewTransientFetchError("google", err)
	}

	events := make([]domain.CalendarEvent, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Status == "cancelled" {
			continue
		}
		start, allDay, err := parseGoogleTime(item.Start.DateTime, item.Start.Date)
		if err != nil {
			continue
		}
		end, _, err := parseGoogleTime(item.End.DateTime, item.End.Date)
		if err != nil {
			continue
		}
		events = append(events, domain.CalendarEvent{
			ID:         item.ID,
			Title:      item.Summary,
			Start:      start,
			End:        end,
			AllDay:     allDay,
			CalendarID: calendarID,
			Provider:   domain.ProviderGoogle,
		})
	}
	sortEventsByStart(events)
	return events, nil
}

// Revoke invalidates the token at Google. Best-effort: the caller logs and
// proceeds with local deletion regardless.
func (g *GoogleProvider) Revoke(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.timeout())
	defer cancel()

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GoogleRevokeEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: g.cfg.timeout()}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.NewTransientFetchError("google", apiError(domain.ProviderGoogle, resp.StatusCode, body))
	}
	return nil
}

func (g *GoogleProvider) get(ctx context.Context, accessToken, endpoint string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.timeout())
	defer cancel()

	if params != nil {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewTransientFetchError("google", err)
	}

	resp, err := apiClient(ctx, accessToken, g.cfg.timeout()).Do(req)
	if err != nil {
		return nil, errors.NewTransientFetchError("google", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientFetchError("google", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(domain.ProviderGoogle, resp.StatusCode, body)
	}
	return body, nil
}

// parseGoogleTime handles both timed (dateTime) and all-day (date) events.
func parseGoogleTime(dateTime, date string) (time.Time, bool, error) {
	if dateTime != "" {
		t, err := time.Parse(time.RFC3339, dateTime)
		return t.UTC(), false, err
	}
	t, err := time.Parse("2006-01-02", date)
	return t.UTC(), true, err
}
