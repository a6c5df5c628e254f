package mongodb

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
)

// WidgetStatsRepository implements domain.WidgetStatsRepository on MongoDB.
type WidgetStatsRepository struct {
	db    *mongo.Database
	stats *mongo.Collection
}

// NewWidgetStatsRepository creates the repository.
func NewWidgetStatsRepository(_ context.Context, db *mongo.Database) (domain.WidgetStatsRepository, error) {
	repo := &WidgetStatsRepository{
		db:    db,
		stats: db.Collection(WidgetStatsCollection),
	}
	return repo, nil
}

// Increment bumps one counter with an atomic $inc, creating the document on
// first use.
func (r *WidgetStatsRepository) Increment(ctx context.Context, userID string, kind domain.WidgetEventKind) error {
	var field string
	switch kind {
	case domain.WidgetEventView:
		field = "views"
	case domain.WidgetEventClick:
		field = "clicks"
	case domain.WidgetEventBooking:
		field = "bookings"
	default:
		return errors.NewValidationError("kind", fmt.Sprintf("unknown widget event kind %q", kind))
	}

	update := bson.M{
		"$inc": bson.M{field: 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.stats.UpdateOne(ctx, bson.M{"_id": userID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Str("kind", string(kind)).
			Msg("Error incrementing widget stats in MongoDB")
		return errors.NewPersistenceError("increment widget stats", err)
	}
	return nil
}

// Get returns the user's counters or a NotFound error.
func (r *WidgetStatsRepository) Get(ctx context.Context, userID string) (*domain.WidgetStats, error) {
	var stats domain.WidgetStats
	err := r.stats.FindOne(ctx, bson.M{"_id": userID}).Decode(&stats)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("widget stats for %s: %w", userID, errors.ErrNotFound)
		}
		log.Error().Err(err).Str("userID", userID).Msg("Error getting widget stats from MongoDB")
		return nil, errors.NewPersistenceError("get widget stats", err)
	}
	return &stats, nil
}

// Ensure interface compliance
var _ domain.WidgetStatsRepository = (*WidgetStatsRepository)(nil)
