package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/internal/provider"
)

type credKey struct {
	userID   string
	provider domain.Provider
}

// fakeCredentialRepo is an in-memory domain.CredentialRepository that records
// the order of operations, so tests can assert persistence ordering.
type fakeCredentialRepo struct {
	mu    sync.Mutex
	creds map[credKey]*domain.OAuthCredential
	calls []string

	getErr error
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: map[credKey]*domain.OAuthCredential{}}
}

func (r *fakeCredentialRepo) record(call string) {
	r.calls = append(r.calls, call)
}

func (r *fakeCredentialRepo) Get(_ context.Context, userID string, p domain.Provider) (*domain.OAuthCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("get")
	if r.getErr != nil {
		return nil, r.getErr
	}
	cred, ok := r.creds[credKey{userID, p}]
	if !ok {
		return nil, fmt.Errorf("credential: %w", errors.ErrNotFound)
	}
	copied := *cred
	return &copied, nil
}

func (r *fakeCredentialRepo) Upsert(_ context.Context, cred *domain.OAuthCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("upsert")
	key := credKey{cred.UserID, cred.Provider}
	if existing, ok := r.creds[key]; ok && cred.RefreshToken == "" {
		cred.RefreshToken = existing.RefreshToken
	}
	copied := *cred
	r.creds[key] = &copied
	return nil
}

func (r *fakeCredentialRepo) Delete(_ context.Context, userID string, p domain.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("delete")
	key := credKey{userID, p}
	if _, ok := r.creds[key]; !ok {
		return fmt.Errorf("credential: %w", errors.ErrNotFound)
	}
	delete(r.creds, key)
	return nil
}

// fakeSelectionRepo is an in-memory domain.SelectedCalendarRepository.
type fakeSelectionRepo struct {
	mu         sync.Mutex
	selections map[string][]domain.SelectedCalendar
}

func newFakeSelectionRepo() *fakeSelectionRepo {
	return &fakeSelectionRepo{selections: map[string][]domain.SelectedCalendar{}}
}

func (r *fakeSelectionRepo) ListByUser(_ context.Context, userID string) ([]domain.SelectedCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SelectedCalendar(nil), r.selections[userID]...), nil
}

func (r *fakeSelectionRepo) ReplaceForUser(_ context.Context, userID string, selection []domain.SelectedCalendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections[userID] = append([]domain.SelectedCalendar(nil), selection...)
	return nil
}

func (r *fakeSelectionRepo) DeleteByUserProvider(_ context.Context, userID string, p domain.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.selections[userID][:0]
	for _, sel := range r.selections[userID] {
		if sel.Provider != p {
			kept = append(kept, sel)
		}
	}
	r.selections[userID] = kept
	return nil
}

// fakeSlotRepo is an in-memory domain.SlotRepository.
type fakeSlotRepo struct {
	mu    sync.Mutex
	slots map[string]*domain.AvailabilitySlot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: map[string]*domain.AvailabilitySlot{}}
}

func (r *fakeSlotRepo) Create(_ context.Context, slot *domain.AvailabilitySlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *slot
	r.slots[slot.ID] = &copied
	return nil
}

func (r *fakeSlotRepo) GetByID(_ context.Context, id string) (*domain.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return nil, fmt.Errorf("slot: %w", errors.ErrNotFound)
	}
	copied := *slot
	return &copied, nil
}

func (r *fakeSlotRepo) Update(_ context.Context, slot *domain.AvailabilitySlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[slot.ID]; !ok {
		return fmt.Errorf("slot: %w", errors.ErrNotFound)
	}
	copied := *slot
	r.slots[slot.ID] = &copied
	return nil
}

func (r *fakeSlotRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[id]; !ok {
		return fmt.Errorf("slot: %w", errors.ErrNotFound)
	}
	delete(r.slots, id)
	return nil
}

func (r *fakeSlotRepo) ListByUser(_ context.Context, userID string) ([]domain.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AvailabilitySlot
	for _, slot := range r.slots {
		if slot.UserID == userID {
			out = append(out, *slot)
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) ListInRange(_ context.Context, userID string, start, end time.Time) ([]domain.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AvailabilitySlot
	for _, slot := range r.slots {
		if slot.UserID == userID && slot.Start.Before(end) && slot.End.After(start) {
			out = append(out, *slot)
		}
	}
	return out, nil
}

// fakeHoursRepo is an in-memory domain.BusinessHoursRepository.
type fakeHoursRepo struct {
	mu    sync.Mutex
	hours map[string]*domain.BusinessHours
}

func newFakeHoursRepo() *fakeHoursRepo {
	return &fakeHoursRepo{hours: map[string]*domain.BusinessHours{}}
}

func (r *fakeHoursRepo) Get(_ context.Context, userID string) (*domain.BusinessHours, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hours, ok := r.hours[userID]
	if !ok {
		return nil, fmt.Errorf("business hours: %w", errors.ErrNotFound)
	}
	copied := *hours
	return &copied, nil
}

func (r *fakeHoursRepo) Upsert(_ context.Context, hours *domain.BusinessHours) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *hours
	r.hours[hours.UserID] = &copied
	return nil
}

// fakeStatsRepo is an in-memory domain.WidgetStatsRepository with an
// injectable failure.
type fakeStatsRepo struct {
	mu           sync.Mutex
	stats        map[string]*domain.WidgetStats
	incrementErr error
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{stats: map[string]*domain.WidgetStats{}}
}

func (r *fakeStatsRepo) Increment(_ context.Context, userID string, kind domain.WidgetEventKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.incrementErr != nil {
		return r.incrementErr
	}
	row, ok := r.stats[userID]
	if !ok {
		row = &domain.WidgetStats{UserID: userID}
		r.stats[userID] = row
	}
	switch kind {
	case domain.WidgetEventView:
		row.Views++
	case domain.WidgetEventClick:
		row.Clicks++
	case domain.WidgetEventBooking:
		row.Bookings++
	}
	return nil
}

func (r *fakeStatsRepo) Get(_ context.Context, userID string) (*domain.WidgetStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.stats[userID]
	if !ok {
		return nil, fmt.Errorf("widget stats: %w", errors.ErrNotFound)
	}
	copied := *row
	return &copied, nil
}

// fakeProvider implements provider.CalendarProvider with injectable behavior
// and per-method call counters.
type fakeProvider struct {
	mu   sync.Mutex
	name domain.Provider
	pkce bool

	exchangeResult *provider.TokenResult
	exchangeErr    error
	refreshResult  *provider.TokenResult
	refreshErr     error
	calendars      []domain.CalendarDescriptor
	calendarsErr   error
	eventsByCal    map[string][]domain.CalendarEvent
	eventsErrByCal map[string]error
	revokeErr      error

	refreshCalls int
	listCalls    []string
	revokeCalls  int
	listTokens   []string
}

func newFakeProvider(name domain.Provider, pkce bool) *fakeProvider {
	return &fakeProvider{
		name:           name,
		pkce:           pkce,
		eventsByCal:    map[string][]domain.CalendarEvent{},
		eventsErrByCal: map[string]error{},
	}
}

func (p *fakeProvider) Name() domain.Provider { return p.name }
func (p *fakeProvider) RequiresPKCE() bool    { return p.pkce }

func (p *fakeProvider) BuildAuthorizationURL(state, codeChallenge string) string {
	u := "https://auth.example.com/authorize?state=" + state
	if codeChallenge != "" {
		u += "&code_challenge=" + codeChallenge
	}
	return u
}

func (p *fakeProvider) ExchangeCode(_ context.Context, _, _ string) (*provider.TokenResult, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.exchangeResult, nil
}

func (p *fakeProvider) RefreshToken(_ context.Context, _ string) (*provider.TokenResult, error) {
	p.mu.Lock()
	p.refreshCalls++
	p.mu.Unlock()
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.refreshResult, nil
}

func (p *fakeProvider) ListCalendars(_ context.Context, _ string) ([]domain.CalendarDescriptor, error) {
	if p.calendarsErr != nil {
		return nil, p.calendarsErr
	}
	return p.calendars, nil
}

func (p *fakeProvider) ListEvents(_ context.Context, accessToken, calendarID string, _, _ time.Time) ([]domain.CalendarEvent, error) {
	p.mu.Lock()
	p.listCalls = append(p.listCalls, calendarID)
	p.listTokens = append(p.listTokens, accessToken)
	p.mu.Unlock()
	if err, ok := p.eventsErrByCal[calendarID]; ok {
		return nil, err
	}
	return p.eventsByCal[calendarID], nil
}

func (p *fakeProvider) Revoke(_ context.Context, _ string) error {
	p.mu.Lock()
	p.revokeCalls++
	p.mu.Unlock()
	return p.revokeErr
}

var _ provider.CalendarProvider = (*fakeProvider)(nil)

// fakeEventSource implements BusyEventSource for availability tests.
type fakeEventSource struct {
	events []domain.CalendarEvent
	err    error
}

func (f *fakeEventSource) FetchBusyEventsForAllSelected(_ context.Context, _ string, start, end time.Time) ([]domain.CalendarEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.CalendarEvent
	for _, ev := range f.events {
		if ev.Start.Before(end) && ev.End.After(start) {
			out = append(out, ev)
		}
	}
	return out, nil
}
