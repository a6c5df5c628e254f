package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
)

// SelectedCalendarRepository implements domain.SelectedCalendarRepository on MongoDB.
type SelectedCalendarRepository struct {
	db        *mongo.Database
	calendars *mongo.Collection
}

// NewSelectedCalendarRepository creates the repository and ensures its indexes.
func NewSelectedCalendarRepository(ctx context.Context, db *mongo.Database) (domain.SelectedCalendarRepository, error) {
	repo := &SelectedCalendarRepository{
		db:        db,
		calendars: db.Collection(SelectedCalendarsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create selected calendar indexes (may already exist)")
	}
	return repo, nil
}

func (r *SelectedCalendarRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "calendar_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
		},
	}

	_, err := r.calendars.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for selected calendars collection: %w", err)
	}
	return nil
}

// ListByUser returns every calendar the user has selected, across providers.
func (r *SelectedCalendarRepository) ListByUser(ctx context.Context, userID string) ([]domain.SelectedCalendar, error) {
	cursor, err := r.calendars.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error listing selected calendars from MongoDB")
		return nil, errors.NewPersistenceError("list selected calendars", err)
	}
	defer cursor.Close(ctx)

	var selection []domain.SelectedCalendar
	if err = cursor.All(ctx, &selection); err != nil {
		return nil, errors.NewPersistenceError("decode selected calendars", err)
	}
	return selection, nil
}

// ReplaceForUser swaps the user's whole selection set.
func (r *SelectedCalendarRepository) ReplaceForUser(ctx context.Context, userID string, selection []domain.SelectedCalendar) error {
	if _, err := r.calendars.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error clearing selected calendars in MongoDB")
		return errors.NewPersistenceError("clear selected calendars", err)
	}
	if len(selection) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(selection))
	for i := range selection {
		selection[i].UserID = userID
		if selection[i].CreatedAt.IsZero() {
			selection[i].CreatedAt = now
		}
		docs = append(docs, selection[i])
	}

	if _, err := r.calendars.InsertMany(ctx, docs); err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error inserting selected calendars in MongoDB")
		return errors.NewPersistenceError("insert selected calendars", err)
	}
	return nil
}

// DeleteByUserProvider drops the selections tied to one provider, used when an
// integration is disconnected.
func (r *SelectedCalendarRepository) DeleteByUserProvider(ctx context.Context, userID string, provider domain.Provider) error {
	_, err := r.calendars.DeleteMany(ctx, bson.M{"user_id": userID, "provider": provider})
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Str("provider", provider.String()).
			Msg("Error deleting selected calendars from MongoDB")
		return errors.NewPersistenceError("delete selected calendars", err)
	}
	return nil
}

// Ensure interface compliance
var _ domain.SelectedCalendarRepository = (*SelectedCalendarRepository)(nil)
