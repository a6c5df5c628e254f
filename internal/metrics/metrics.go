// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensRefreshedTotal counts successful OAuth token refreshes per provider.
	TokensRefreshedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotgrid",
		Name:      "tokens_refreshed_total",
		Help:      "Number of successful OAuth token refreshes.",
	}, []string{"provider"})

	// CalendarFetchFailuresTotal counts degraded calendar fetches. These do not
	// fail the request; the affected calendar contributes zero events.
	CalendarFetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotgrid",
		Name:      "calendar_fetch_failures_total",
		Help:      "Number of calendar event fetches that degraded to empty results.",
	}, []string{"provider"})

	// WidgetEventsTotal counts widget engagement events by kind.
	WidgetEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotgrid",
		Name:      "widget_events_total",
		Help:      "Number of widget engagement events recorded.",
	}, []string{"kind"})

	// AvailabilityRequestsTotal counts availability computations by view.
	AvailabilityRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotgrid",
		Name:      "availability_requests_total",
		Help:      "Number of availability computations served.",
	}, []string{"view"})
)
