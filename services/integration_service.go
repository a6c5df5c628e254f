// Package services holds the application orchestrators: the glue between the
// HTTP surface, the provider adapters, the reconciliation engine and the
// repositories.
package services

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/slotgrid/slotgrid/cache"
	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/internal/metrics"
	"github.com/slotgrid/slotgrid/internal/provider"
)

const (
	// refreshWindow is how close to expiry a token must be before a request
	// refreshes it. Tokens are refreshed eagerly so an availability fetch
	// never runs with a token about to die mid-flight.
	refreshWindow = 5 * time.Minute

	// refreshLockTTL bounds how long a crashed refresher can block others.
	refreshLockTTL = 30 * time.Second

	// fetchConcurrency caps parallel calendar fetches per reconciliation.
	fetchConcurrency = 4
)

// ConnectResult is the outcome of a completed OAuth callback.
type ConnectResult struct {
	UserID   string
	Provider domain.Provider
	// Calendars is the provider's calendar list fetched right after the
	// exchange, so the UI can offer selection immediately. Nil when the
	// listing failed transiently; the connection itself still succeeded.
	Calendars []domain.CalendarDescriptor
}

// IntegrationService owns the OAuth credential lifecycle and the busy-event
// fetch path. It is the only component that talks to provider adapters.
type IntegrationService struct {
	credentials domain.CredentialRepository
	selections  domain.SelectedCalendarRepository
	providers   *provider.Registry
	pending     cache.PendingAuthStore
	locks       cache.RefreshLocker
	now         func() time.Time
}

// NewIntegrationService creates the orchestrator. A nil clock means time.Now.
func NewIntegrationService(
	credentials domain.CredentialRepository,
	selections domain.SelectedCalendarRepository,
	providers *provider.Registry,
	pending cache.PendingAuthStore,
	locks cache.RefreshLocker,
	now func() time.Time,
) *IntegrationService {
	if now == nil {
		now = time.Now
	}
	return &IntegrationService{
		credentials: credentials,
		selections:  selections,
		providers:   providers,
		pending:     pending,
		locks:       locks,
		now:         now,
	}
}

// BeginConnect starts an OAuth flow and returns the provider authorization
// URL to redirect the user to. Nothing is persisted; the flow state lives in
// the pending store until the callback arrives or the TTL expires.
func (s *IntegrationService) BeginConnect(ctx context.Context, userID string, p domain.Provider) (string, error) {
	adapter, err := s.providers.Get(p)
	if err != nil {
		return "", err
	}

	state := uuid.NewString()
	pending := &cache.PendingAuthorization{
		State:     state,
		UserID:    userID,
		Provider:  p,
		CreatedAt: s.now(),
	}

	challenge := ""
	if adapter.RequiresPKCE() {
		verifier, err := provider.GenerateCodeVerifier()
		if err != nil {
			return "", fmt.Errorf("failed to generate code verifier: %w", err)
		}
		pending.CodeVerifier = verifier
		challenge = provider.CodeChallengeS256(verifier)
	}

	if err := s.pending.Put(ctx, pending); err != nil {
		return "", fmt.Errorf("failed to store pending authorization: %w", err)
	}

	log.Info().Str("userID", userID).Str("provider", p.String()).Msg("OAuth flow started")
	return adapter.BuildAuthorizationURL(state, challenge), nil
}

// CompleteConnect handles the OAuth callback: it resolves the state to a
// pending flow, exchanges the code, and persists the credential. The pending
// record is consumed either way, so a state value works exactly once.
func (s *IntegrationService) CompleteConnect(ctx context.Context, state, code string) (*ConnectResult, error) {
	pending, err := s.pending.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	adapter, err := s.providers.Get(pending.Provider)
	if err != nil {
		return nil, err
	}

	token, err := adapter.ExchangeCode(ctx, code, pending.CodeVerifier)
	if err != nil {
		return nil, err
	}

	cred := &domain.OAuthCredential{
		UserID:       pending.UserID,
		Provider:     pending.Provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	}
	if err := s.credentials.Upsert(ctx, cred); err != nil {
		return nil, err
	}

	log.Info().Str("userID", pending.UserID).Str("provider", pending.Provider.String()).
		Msg("Calendar integration connected")

	result := &ConnectResult{UserID: pending.UserID, Provider: pending.Provider}

	// Calendar listing is a convenience for the selection UI; a transient
	// failure here must not undo a successful connection.
	calendars, err := adapter.ListCalendars(ctx, token.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("userID", pending.UserID).Str("provider", pending.Provider.String()).
			Msg("Calendar listing after connect failed")
		return result, nil
	}
	result.Calendars = calendars

	return result, nil
}

// Disconnect revokes the provider grant best-effort and removes the stored
// credential together with the provider's calendar selections.
func (s *IntegrationService) Disconnect(ctx context.Context, userID string, p domain.Provider) error {
	adapter, err := s.providers.Get(p)
	if err != nil {
		return err
	}

	cred, err := s.credentials.Get(ctx, userID, p)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return errors.ErrIntegrationMissing
		}
		return err
	}

	if err := adapter.Revoke(ctx, cred.AccessToken); err != nil {
		log.Warn().Err(err).Str("userID", userID).Str("provider", p.String()).
			Msg("Token revocation failed; deleting credential anyway")
	}

	if err := s.credentials.Delete(ctx, userID, p); err != nil && !goerrors.Is(err, errors.ErrNotFound) {
		return err
	}
	if err := s.selections.DeleteByUserProvider(ctx, userID, p); err != nil {
		return err
	}

	log.Info().Str("userID", userID).Str("provider", p.String()).Msg("Calendar integration disconnected")
	return nil
}

// ListCalendars returns the user's calendars at the provider, refreshing the
// stored token first when it is about to expire.
func (s *IntegrationService) ListCalendars(ctx context.Context, userID string, p domain.Provider) ([]domain.CalendarDescriptor, error) {
	adapter, err := s.providers.Get(p)
	if err != nil {
		return nil, err
	}
	token, err := s.accessToken(ctx, userID, adapter)
	if err != nil {
		return nil, err
	}
	return adapter.ListCalendars(ctx, token)
}

// SaveSelectedCalendars replaces the user's whole selection set. Every entry
// must name a provider the user has connected.
func (s *IntegrationService) SaveSelectedCalendars(ctx context.Context, userID string, selection []domain.SelectedCalendar) error {
	seen := map[domain.Provider]bool{}
	for _, sel := range selection {
		if sel.CalendarID == "" {
			return errors.NewValidationError("calendar_id", "must not be empty")
		}
		if seen[sel.Provider] {
			continue
		}
		if _, err := s.providers.Get(sel.Provider); err != nil {
			return err
		}
		if _, err := s.credentials.Get(ctx, userID, sel.Provider); err != nil {
			if goerrors.Is(err, errors.ErrNotFound) {
				return errors.ErrIntegrationMissing
			}
			return err
		}
		seen[sel.Provider] = true
	}

	return s.selections.ReplaceForUser(ctx, userID, selection)
}

// ListSelectedCalendars returns the user's current selection.
func (s *IntegrationService) ListSelectedCalendars(ctx context.Context, userID string) ([]domain.SelectedCalendar, error) {
	return s.selections.ListByUser(ctx, userID)
}

// ConnectedProviders reports which providers the user has credentials for.
func (s *IntegrationService) ConnectedProviders(ctx context.Context, userID string) ([]domain.Provider, error) {
	connected := make([]domain.Provider, 0, 2)
	for _, p := range []domain.Provider{domain.ProviderGoogle, domain.ProviderOutlook} {
		_, err := s.credentials.Get(ctx, userID, p)
		if err != nil {
			if goerrors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		connected = append(connected, p)
	}
	return connected, nil
}

// FetchBusyEvents returns the events of one selected calendar in [start, end).
// An authorization rejection propagates; the caller decides how to surface it.
func (s *IntegrationService) FetchBusyEvents(ctx context.Context, userID string, p domain.Provider, calendarID string, start, end time.Time) ([]domain.CalendarEvent, error) {
	adapter, err := s.providers.Get(p)
	if err != nil {
		return nil, err
	}
	token, err := s.accessToken(ctx, userID, adapter)
	if err != nil {
		return nil, err
	}

	events, err := adapter.ListEvents(ctx, token, calendarID, start, end)
	if err != nil {
		if errors.IsTransientFetchError(err) {
			metrics.CalendarFetchFailuresTotal.WithLabelValues(p.String()).Inc()
			log.Warn().Err(err).Str("userID", userID).Str("calendarID", calendarID).
				Msg("Calendar fetch degraded to empty")
			return []domain.CalendarEvent{}, nil
		}
		return nil, err
	}
	return events, nil
}

// FetchBusyEventsForAllSelected fans out over every selected calendar and
// merges the results. Individual failures degrade to empty contributions so
// one broken integration cannot blank the whole availability surface.
func (s *IntegrationService) FetchBusyEventsForAllSelected(ctx context.Context, userID string, start, end time.Time) ([]domain.CalendarEvent, error) {
	selection, err := s.selections.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(selection) == 0 {
		return []domain.CalendarEvent{}, nil
	}

	// One token resolution per provider, up front, so the fan-out below never
	// races a refresh against itself.
	tokens := map[domain.Provider]string{}
	adapters := map[domain.Provider]provider.CalendarProvider{}
	for _, sel := range selection {
		if _, ok := tokens[sel.Provider]; ok {
			continue
		}
		adapter, err := s.providers.Get(sel.Provider)
		if err != nil {
			log.Warn().Err(err).Str("userID", userID).Str("provider", sel.Provider.String()).
				Msg("Skipping selection with unsupported provider")
			continue
		}
		token, err := s.accessToken(ctx, userID, adapter)
		if err != nil {
			metrics.CalendarFetchFailuresTotal.WithLabelValues(sel.Provider.String()).Inc()
			log.Warn().Err(err).Str("userID", userID).Str("provider", sel.Provider.String()).
				Msg("Skipping provider: token unavailable")
			continue
		}
		tokens[sel.Provider] = token
		adapters[sel.Provider] = adapter
	}

	results := make([][]domain.CalendarEvent, len(selection))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for i, sel := range selection {
		token, ok := tokens[sel.Provider]
		if !ok {
			continue
		}
		adapter := adapters[sel.Provider]

		g.Go(func() error {
			events, err := adapter.ListEvents(gctx, token, sel.CalendarID, start, end)
			if err != nil {
				metrics.CalendarFetchFailuresTotal.WithLabelValues(sel.Provider.String()).Inc()
				log.Warn().Err(err).Str("userID", userID).Str("calendarID", sel.CalendarID).
					Msg("Calendar fetch degraded to empty")
				return nil
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]domain.CalendarEvent, 0)
	for _, events := range results {
		merged = append(merged, events...)
	}
	return merged, nil
}

// accessToken resolves a usable access token for (user, provider), refreshing
// first when the stored one expires within the refresh window. The refreshed
// credential is persisted before the token is returned, so a crash between
// refresh and use never strands a rotated refresh token.
func (s *IntegrationService) accessToken(ctx context.Context, userID string, adapter provider.CalendarProvider) (string, error) {
	p := adapter.Name()

	cred, err := s.credentials.Get(ctx, userID, p)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return "", errors.ErrIntegrationMissing
		}
		return "", err
	}

	if !cred.ExpiringWithin(refreshWindow, s.now()) {
		return cred.AccessToken, nil
	}

	lockKey := userID + ":" + p.String()
	acquired, err := s.locks.TryLock(ctx, lockKey, refreshLockTTL)
	if err != nil {
		log.Warn().Err(err).Str("userID", userID).Msg("Refresh lock unavailable; proceeding unlocked")
		acquired = true
	} else if acquired {
		defer func() {
			if err := s.locks.Unlock(ctx, lockKey); err != nil {
				log.Warn().Err(err).Str("userID", userID).Msg("Failed to release refresh lock")
			}
		}()
	}

	// Re-read: another request may have refreshed while we waited for the
	// lock, or holds it right now.
	cred, err = s.credentials.Get(ctx, userID, p)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return "", errors.ErrIntegrationMissing
		}
		return "", err
	}
	if !acquired || !cred.ExpiringWithin(refreshWindow, s.now()) {
		return cred.AccessToken, nil
	}

	token, err := adapter.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		if errors.IsAuthError(err) {
			// Terminal: the grant is gone. The credential stays stored so the
			// UI can show a "reconnect" state.
			return "", err
		}
		log.Warn().Err(err).Str("userID", userID).Str("provider", p.String()).
			Msg("Token refresh failed transiently; using stored token")
		return cred.AccessToken, nil
	}

	cred.AccessToken = token.AccessToken
	cred.RefreshToken = token.RefreshToken
	cred.ExpiresAt = token.ExpiresAt
	if err := s.credentials.Upsert(ctx, cred); err != nil {
		return "", err
	}

	metrics.TokensRefreshedTotal.WithLabelValues(p.String()).Inc()
	log.Debug().Str("userID", userID).Str("provider", p.String()).Msg("Access token refreshed")
	return token.AccessToken, nil
}
