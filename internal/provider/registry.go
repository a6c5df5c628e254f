package provider

import (
	"fmt"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
)

// Registry resolves a provider tag to its adapter. Tags without a registered
// adapter (apple, calendly) are representable in the domain but rejected here.
type Registry struct {
	providers map[domain.Provider]CalendarProvider
}

// NewRegistry indexes the given adapters by name.
func NewRegistry(providers ...CalendarProvider) *Registry {
	r := &Registry{providers: make(map[domain.Provider]CalendarProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the adapter for the tag, or ErrUnsupportedProvider.
func (r *Registry) Get(p domain.Provider) (CalendarProvider, error) {
	adapter, ok := r.providers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedProvider, p)
	}
	return adapter, nil
}
