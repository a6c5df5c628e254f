// Package provider implements the calendar-provider adapters. Each adapter
// exposes the same capability set over one provider's OAuth2 and calendar
// APIs; everything above this package works with normalized types only.
package provider

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/slotgrid/slotgrid/domain"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every provider call so one slow upstream cannot
// stall a page render. Timeouts are treated as transient fetch failures.
const DefaultTimeout = 10 * time.Second

// TokenResult is the normalized outcome of a code exchange or token refresh.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Config carries the OAuth client registration for one provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// CalendarProvider is the uniform capability set every adapter implements.
//
// ListCalendars and ListEvents surface a 401 as an AuthError and leave
// refresh-and-retry to the caller. ListEvents returns events sorted by start
// instant with recurring events already expanded by the provider, and treats
// a 404 for a vanished calendar as zero events. Revoke is best-effort; its
// failures are logged by the caller and never propagated.
type CalendarProvider interface {
	Name() domain.Provider

	// RequiresPKCE reports whether the authorization flow must carry a
	// code challenge and replay the verifier at exchange time.
	RequiresPKCE() bool

	BuildAuthorizationURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error)
	ListCalendars(ctx context.Context, accessToken string) ([]domain.CalendarDescriptor, error)
	ListEvents(ctx context.Context, accessToken, calendarID string, rangeStart, rangeEnd time.Time) ([]domain.CalendarEvent, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResult, error)
	Revoke(ctx context.Context, accessToken string) error
}

// apiClient returns an HTTP client that authenticates with the given access
// token and enforces the adapter timeout.
func apiClient(ctx context.Context, accessToken string, timeout time.Duration) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	client.Timeout = timeout
	return client
}

// tokenResult normalizes an oauth2 token. Providers that omit expires_in get
// a conservative one-hour lifetime so the expiry invariant always holds.
func tokenResult(tok *oauth2.Token) *TokenResult {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	return &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiry,
	}
}

func sortEventsByStart(events []domain.CalendarEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
