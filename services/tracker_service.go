package services

import (
	"context"
	goerrors "errors"

	"github.com/rs/zerolog/log"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"github.com/slotgrid/slotgrid/internal/metrics"
)

// TrackerService records widget engagement events. Tracking is best-effort
// telemetry: a store failure is logged and swallowed so it can never break
// the public widget.
type TrackerService struct {
	stats domain.WidgetStatsRepository
}

// NewTrackerService creates the tracker.
func NewTrackerService(stats domain.WidgetStatsRepository) *TrackerService {
	return &TrackerService{stats: stats}
}

// RecordEvent validates and counts one widget event. Only a malformed kind is
// an error; persistence failures are absorbed here.
func (t *TrackerService) RecordEvent(ctx context.Context, userID, kind string) error {
	parsed, err := domain.ParseWidgetEventKind(kind)
	if err != nil {
		return errors.NewValidationError("kind", err.Error())
	}

	metrics.WidgetEventsTotal.WithLabelValues(string(parsed)).Inc()

	if err := t.stats.Increment(ctx, userID, parsed); err != nil {
		log.Warn().Err(err).Str("userID", userID).Str("kind", kind).
			Msg("Widget event not persisted")
	}
	return nil
}

// Stats returns the user's counters; a user with no recorded events gets a
// zero-valued row rather than an error.
func (t *TrackerService) Stats(ctx context.Context, userID string) (*domain.WidgetStats, error) {
	stats, err := t.stats.Get(ctx, userID)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return &domain.WidgetStats{UserID: userID}, nil
		}
		return nil, err
	}
	return stats, nil
}
