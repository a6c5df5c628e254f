package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotgrid/slotgrid/cache"
	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/internal/provider"
)

var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type integrationFixture struct {
	svc     *IntegrationService
	creds   *fakeCredentialRepo
	sels    *fakeSelectionRepo
	google  *fakeProvider
	outlook *fakeProvider
	pending cache.PendingAuthStore
}

func newIntegrationFixture(t *testing.T) *integrationFixture {
	t.Helper()

	creds := newFakeCredentialRepo()
	sels := newFakeSelectionRepo()
	google := newFakeProvider(domain.ProviderGoogle, false)
	outlook := newFakeProvider(domain.ProviderOutlook, true)
	pending := cache.NewMemoryPendingAuthStore(time.Minute)
	t.Cleanup(func() { pending.Close() })
	locks := cache.NewMemoryRefreshLocker()
	t.Cleanup(func() { locks.Close() })

	svc := NewIntegrationService(creds, sels, provider.NewRegistry(google, outlook),
		pending, locks, func() time.Time { return testNow })

	return &integrationFixture{
		svc:     svc,
		creds:   creds,
		sels:    sels,
		google:  google,
		outlook: outlook,
		pending: pending,
	}
}

func (f *integrationFixture) storeCredential(userID string, p domain.Provider, expiresAt time.Time) {
	f.creds.creds[credKey{userID, p}] = &domain.OAuthCredential{
		UserID:       userID,
		Provider:     p,
		AccessToken:  "access-current",
		RefreshToken: "refresh-current",
		ExpiresAt:    expiresAt,
	}
}

func TestBeginConnectGoogleOmitsChallenge(t *testing.T) {
	f := newIntegrationFixture(t)

	u, err := f.svc.BeginConnect(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Contains(t, u, "state=")
	assert.NotContains(t, u, "code_challenge")
}

func TestBeginConnectOutlookCarriesChallenge(t *testing.T) {
	f := newIntegrationFixture(t)

	u, err := f.svc.BeginConnect(context.Background(), "user-1", domain.ProviderOutlook)
	require.NoError(t, err)
	assert.Contains(t, u, "code_challenge=")
}

func TestBeginConnectUnsupportedProvider(t *testing.T) {
	f := newIntegrationFixture(t)

	_, err := f.svc.BeginConnect(context.Background(), "user-1", domain.ProviderApple)
	assert.ErrorIs(t, err, errors.ErrUnsupportedProvider)
}

func TestCompleteConnectPersistsCredential(t *testing.T) {
	f := newIntegrationFixture(t)
	f.google.exchangeResult = &provider.TokenResult{
		AccessToken:  "access-new",
		RefreshToken: "refresh-new",
		ExpiresAt:    testNow.Add(time.Hour),
	}
	f.google.calendars = []domain.CalendarDescriptor{{ID: "primary", Name: "Primary"}}

	u, err := f.svc.BeginConnect(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	state := u[len("https://auth.example.com/authorize?state="):]

	result, err := f.svc.CompleteConnect(context.Background(), state, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, domain.ProviderGoogle, result.Provider)
	require.Len(t, result.Calendars, 1)

	cred, err := f.creds.Get(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access-new", cred.AccessToken)
	assert.Equal(t, "refresh-new", cred.RefreshToken)
}

func TestCompleteConnectUnknownState(t *testing.T) {
	f := newIntegrationFixture(t)

	_, err := f.svc.CompleteConnect(context.Background(), "never-issued", "code")
	assert.ErrorIs(t, err, errors.ErrInterruptedFlow)
}

func TestCompleteConnectStateSingleUse(t *testing.T) {
	f := newIntegrationFixture(t)
	f.google.exchangeResult = &provider.TokenResult{AccessToken: "a", ExpiresAt: testNow.Add(time.Hour)}

	u, err := f.svc.BeginConnect(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	state := u[len("https://auth.example.com/authorize?state="):]

	_, err = f.svc.CompleteConnect(context.Background(), state, "code")
	require.NoError(t, err)

	_, err = f.svc.CompleteConnect(context.Background(), state, "code")
	assert.ErrorIs(t, err, errors.ErrInterruptedFlow)
}

func TestCompleteConnectListingFailureKeepsConnection(t *testing.T) {
	f := newIntegrationFixture(t)
	f.google.exchangeResult = &provider.TokenResult{AccessToken: "a", ExpiresAt: testNow.Add(time.Hour)}
	f.google.calendarsErr = errors.NewTransientFetchError("google", context.DeadlineExceeded)

	u, err := f.svc.BeginConnect(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	state := u[len("https://auth.example.com/authorize?state="):]

	result, err := f.svc.CompleteConnect(context.Background(), state, "code")
	require.NoError(t, err)
	assert.Nil(t, result.Calendars)

	_, err = f.creds.Get(context.Background(), "user-1", domain.ProviderGoogle)
	assert.NoError(t, err)
}

func TestFetchBusyEventsIntegrationMissing(t *testing.T) {
	f := newIntegrationFixture(t)

	_, err := f.svc.FetchBusyEvents(context.Background(), "user-1", domain.ProviderGoogle, "cal-1",
		testNow, testNow.Add(time.Hour))
	assert.ErrorIs(t, err, errors.ErrIntegrationMissing)
	assert.Empty(t, f.google.listCalls)
	assert.Zero(t, f.google.refreshCalls)
}

func TestFetchBusyEventsFreshTokenSkipsRefresh(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(time.Hour))
	f.google.eventsByCal["cal-1"] = []domain.CalendarEvent{{ID: "ev-1"}}

	events, err := f.svc.FetchBusyEvents(context.Background(), "user-1", domain.ProviderGoogle, "cal-1",
		testNow, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Zero(t, f.google.refreshCalls)
	assert.Equal(t, []string{"access-current"}, f.google.listTokens)
}

func TestFetchBusyEventsRefreshPersistedBeforeUse(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(2*time.Minute))
	f.google.refreshResult = &provider.TokenResult{
		AccessToken:  "access-refreshed",
		RefreshToken: "refresh-rotated",
		ExpiresAt:    testNow.Add(time.Hour),
	}
	f.google.eventsByCal["cal-1"] = []domain.CalendarEvent{}

	_, err := f.svc.FetchBusyEvents(context.Background(), "user-1", domain.ProviderGoogle, "cal-1",
		testNow, testNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, f.google.refreshCalls)
	assert.Equal(t, []string{"access-refreshed"}, f.google.listTokens)

	// The rotated credential was written before any events call ran.
	upsertSeen := false
	for _, call := range f.creds.calls {
		if call == "upsert" {
			upsertSeen = true
		}
	}
	assert.True(t, upsertSeen)

	cred, err := f.creds.Get(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access-refreshed", cred.AccessToken)
	assert.Equal(t, "refresh-rotated", cred.RefreshToken)
}

func TestFetchBusyEventsTransientRefreshUsesStoredToken(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(2*time.Minute))
	f.google.refreshErr = errors.NewTransientFetchError("google", context.DeadlineExceeded)
	f.google.eventsByCal["cal-1"] = []domain.CalendarEvent{}

	_, err := f.svc.FetchBusyEvents(context.Background(), "user-1", domain.ProviderGoogle, "cal-1",
		testNow, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"access-current"}, f.google.listTokens)
}

func TestFetchBusyEventsAuthErrorLeavesCredential(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(2*time.Minute))
	f.google.refreshErr = errors.NewAuthError("google", context.Canceled)

	_, err := f.svc.FetchBusyEvents(context.Background(), "user-1", domain.ProviderGoogle, "cal-1",
		testNow, testNow.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsAuthError(err))
	assert.Empty(t, f.google.listCalls)

	// The credential stays so the UI can offer a reconnect.
	_, err = f.creds.Get(context.Background(), "user-1", domain.ProviderGoogle)
	assert.NoError(t, err)
}

func TestFetchBusyEventsTransientListDegrades(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(time.Hour))
	f.google.eventsErrByCal["cal-1"] = errors.NewTransientFetchError("google", context.DeadlineExceeded)

	events, err := f.svc.FetchBusyEvents(context.Background(), "user-1", domain.ProviderGoogle, "cal-1",
		testNow, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchAllSelectedMergesAndDegrades(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(time.Hour))
	f.storeCredential("user-1", domain.ProviderOutlook, testNow.Add(time.Hour))

	require.NoError(t, f.sels.ReplaceForUser(context.Background(), "user-1", []domain.SelectedCalendar{
		{UserID: "user-1", CalendarID: "g-1", Provider: domain.ProviderGoogle},
		{UserID: "user-1", CalendarID: "g-2", Provider: domain.ProviderGoogle},
		{UserID: "user-1", CalendarID: "o-1", Provider: domain.ProviderOutlook},
	}))

	f.google.eventsByCal["g-1"] = []domain.CalendarEvent{{ID: "a"}, {ID: "b"}}
	f.google.eventsErrByCal["g-2"] = errors.NewTransientFetchError("google", context.DeadlineExceeded)
	f.outlook.eventsByCal["o-1"] = []domain.CalendarEvent{{ID: "c"}}

	events, err := f.svc.FetchBusyEventsForAllSelected(context.Background(), "user-1",
		testNow, testNow.Add(24*time.Hour))
	require.NoError(t, err)

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestFetchAllSelectedNoSelection(t *testing.T) {
	f := newIntegrationFixture(t)

	events, err := f.svc.FetchBusyEventsForAllSelected(context.Background(), "user-1",
		testNow, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDisconnectRevokeFailureStillDeletes(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(time.Hour))
	f.google.revokeErr = errors.NewTransientFetchError("google", context.DeadlineExceeded)
	require.NoError(t, f.sels.ReplaceForUser(context.Background(), "user-1", []domain.SelectedCalendar{
		{UserID: "user-1", CalendarID: "g-1", Provider: domain.ProviderGoogle},
	}))

	require.NoError(t, f.svc.Disconnect(context.Background(), "user-1", domain.ProviderGoogle))

	assert.Equal(t, 1, f.google.revokeCalls)
	_, err := f.creds.Get(context.Background(), "user-1", domain.ProviderGoogle)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	selection, err := f.sels.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, selection)
}

func TestDisconnectWithoutCredential(t *testing.T) {
	f := newIntegrationFixture(t)

	err := f.svc.Disconnect(context.Background(), "user-1", domain.ProviderGoogle)
	assert.ErrorIs(t, err, errors.ErrIntegrationMissing)
	assert.Zero(t, f.google.revokeCalls)
}

func TestSaveSelectedCalendarsRequiresConnection(t *testing.T) {
	f := newIntegrationFixture(t)

	err := f.svc.SaveSelectedCalendars(context.Background(), "user-1", []domain.SelectedCalendar{
		{UserID: "user-1", CalendarID: "g-1", Provider: domain.ProviderGoogle},
	})
	assert.ErrorIs(t, err, errors.ErrIntegrationMissing)
}

func TestSaveSelectedCalendarsReplacesSet(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderGoogle, testNow.Add(time.Hour))

	require.NoError(t, f.svc.SaveSelectedCalendars(context.Background(), "user-1", []domain.SelectedCalendar{
		{UserID: "user-1", CalendarID: "g-1", Provider: domain.ProviderGoogle},
		{UserID: "user-1", CalendarID: "g-2", Provider: domain.ProviderGoogle},
	}))
	require.NoError(t, f.svc.SaveSelectedCalendars(context.Background(), "user-1", []domain.SelectedCalendar{
		{UserID: "user-1", CalendarID: "g-3", Provider: domain.ProviderGoogle},
	}))

	selection, err := f.svc.ListSelectedCalendars(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, selection, 1)
	assert.Equal(t, "g-3", selection[0].CalendarID)
}

func TestConnectedProviders(t *testing.T) {
	f := newIntegrationFixture(t)
	f.storeCredential("user-1", domain.ProviderOutlook, testNow.Add(time.Hour))

	connected, err := f.svc.ConnectedProviders(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Provider{domain.ProviderOutlook}, connected)
}
