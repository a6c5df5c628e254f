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
)

// Endpoints are variables so adapter tests can point them at a local server.
var (
	GraphBaseURL = "https://graph.microsoft.com/v1.0"

	OutlookOAuthEndpoint = oauth2.Endpoint{
		AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
	}
)

// Graph returns date-times without an offset when the Prefer header pins the
// timezone to UTC; fractional seconds may or may not be present.
const graphTimeFormat = "2006-01-02T15:04:05"

// OutlookProvider adapts the Microsoft Graph calendar API.
type OutlookProvider struct {
	cfg         Config
	oauthConfig *oauth2.Config
}

// NewOutlookProvider builds the Outlook adapter from an OAuth client registration.
func NewOutlookProvider(cfg Config) *OutlookProvider {
	return &OutlookProvider{
		cfg: cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"offline_access", "Calendars.Read"},
			Endpoint:     OutlookOAuthEndpoint,
		},
	}
}

func (o *OutlookProvider) Name() domain.Provider { return domain.ProviderOutlook }

// RequiresPKCE is true: the Microsoft identity platform mandates a code
// challenge for authorization-code flows on this app type.
func (o *OutlookProvider) RequiresPKCE() bool { return true }

func (o *OutlookProvider) BuildAuthorizationURL(state, codeChallenge string) string {
	return o.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (o *OutlookProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.timeout())
	defer cancel()

	tok, err := o.oauthConfig.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, exchangeError(domain.ProviderOutlook, err)
	}
	return tokenResult(tok), nil
}

func (o *OutlookProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.timeout())
	defer cancel()

	src := o.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, refreshError(domain.ProviderOutlook, err)
	}
	return tokenResult(tok), nil
}

func (o *OutlookProvider) ListCalendars(ctx context.Context, accessToken string) ([]domain.CalendarDescriptor, error) {
	body, err := o.get(ctx, accessToken, GraphBaseURL+"/me/calendars", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []struct {
			ID                string `json:"id"`
			Name              string `json:"name"`
			IsDefaultCalendar bool   `json:"isDefaultCalendar"`
			Owner             struct {
				Address string `json:"address"`
			} `json:"owner"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewTransientFetchError("outlook", err)
	}

	calendars := make([]domain.CalendarDescriptor, 0, len(result.Value))
	for _, cal := range result.Value {
		calendars = append(calendars, domain.CalendarDescriptor{
			ID:         cal.ID,
			Name:       cal.Name,
			IsPrimary:  cal.IsDefaultCalendar,
			OwnerEmail: cal.Owner.Address,
			Provider:   domain.ProviderOutlook,
		})
	}
	return calendars, nil
}

// ListEvents queries calendarView, which expands recurring events into
// concrete instances within the window.
func (o *OutlookProvider) ListEvents(ctx context.Context, accessToken, calendarID string, rangeStart, rangeEnd time.Time) ([]domain.CalendarEvent, error) {
	params := url.Values{}
	params.Set("startDateTime", rangeStart.UTC().Format(time.RFC3339))
	params.Set("endDateTime", rangeEnd.UTC().Format(time.RFC3339))
	params.Set("$orderby", "start/dateTime")
	params.Set("$top", "500")

	endpoint := GraphBaseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView"
	body, err := o.get(ctx, accessToken, endpoint, params)
	if err != nil {
		if isNotFound(err) {
			return []domain.CalendarEvent{}, nil
		}
		return nil, err
	}

	var result struct {
		Value []struct {
			ID       string `json:"id"`
			Subject  string `json:"subject"`
			IsAllDay bool   `json:"isAllDay"`
			Start    struct {
				DateTime string `json:"dateTime"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
			} `json:"end"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewTransientFetchError("outlook", err)
	}

	events := make([]domain.CalendarEvent, 0, len(result.Value))
	for _, ev := range result.Value {
		start, err := parseGraphTime(ev.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := parseGraphTime(ev.End.DateTime)
		if err != nil {
			continue
		}
		events = append(events, domain.CalendarEvent{
			ID:         ev.ID,
			Title:      ev.Subject,
			Start:      start,
			End:        end,
			AllDay:     ev.IsAllDay,
			CalendarID: calendarID,
			Provider:   domain.ProviderOutlook,
		})
	}
	sortEventsByStart(events)
	return events, nil
}

// Revoke invalidates the user's refresh tokens via Graph. Microsoft has no
// per-token revocation endpoint; revoking sign-in sessions is the closest
// best-effort equivalent.
func (o *OutlookProvider) Revoke(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GraphBaseURL+"/me/revokeSignInSessions", nil)
	if err != nil {
		return err
	}

	resp, err := apiClient(ctx, accessToken, o.cfg.timeout()).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return apiError(domain.ProviderOutlook, resp.StatusCode, body)
	}
	return nil
}

func (o *OutlookProvider) get(ctx context.Context, accessToken, endpoint string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.timeout())
	defer cancel()

	if params != nil {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewTransientFetchError("outlook", err)
	}
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := apiClient(ctx, accessToken, o.cfg.timeout()).Do(req)
	if err != nil {
		return nil, errors.NewTransientFetchError("outlook", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientFetchError("outlook", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(domain.ProviderOutlook, resp.StatusCode, body)
	}
	return body, nil
}

func parseGraphTime(s string) (time.Time, error) {
	// Drop fractional seconds; Graph emits a varying number of digits.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(graphTimeFormat, s)
	return t.UTC(), err
}
