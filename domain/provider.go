package domain

import "fmt"

// Provider identifies a third-party calendar service.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderOutlook  Provider = "outlook"
	ProviderApple    Provider = "apple"
	ProviderCalendly Provider = "calendly"
)

// ParseProvider validates a provider tag received from the outside.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGoogle, ProviderOutlook, ProviderApple, ProviderCalendly:
		return Provider(s), nil
	}
	return "", fmt.Errorf("unknown calendar provider %q", s)
}

func (p Provider) String() string {
	return string(p)
}
