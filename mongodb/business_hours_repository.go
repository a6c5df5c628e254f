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

// BusinessHoursRepository implements domain.BusinessHoursRepository on MongoDB.
// One document per user, keyed by user_id.
type BusinessHoursRepository struct {
	db    *mongo.Database
	hours *mongo.Collection
}

// NewBusinessHoursRepository creates the repository.
func NewBusinessHoursRepository(_ context.Context, db *mongo.Database) (domain.BusinessHoursRepository, error) {
	repo := &BusinessHoursRepository{
		db:    db,
		hours: db.Collection(BusinessHoursCollection),
	}
	return repo, nil
}

// Get returns the saved policy or a NotFound error.
func (r *BusinessHoursRepository) Get(ctx context.Context, userID string) (*domain.BusinessHours, error) {
	var hours domain.BusinessHours
	err := r.hours.FindOne(ctx, bson.M{"user_id": userID}).Decode(&hours)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("business hours for %s: %w", userID, errors.ErrNotFound)
		}
		log.Error().Err(err).Str("userID", userID).Msg("Error getting business hours from MongoDB")
		return nil, errors.NewPersistenceError("get business hours", err)
	}
	return &hours, nil
}

// Upsert writes the user's policy.
func (r *BusinessHoursRepository) Upsert(ctx context.Context, hours *domain.BusinessHours) error {
	hours.UpdatedAt = time.Now().UTC()

	filter := bson.M{"user_id": hours.UserID}
	_, err := r.hours.ReplaceOne(ctx, filter, hours, options.Replace().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("userID", hours.UserID).Msg("Error upserting business hours in MongoDB")
		return errors.NewPersistenceError("upsert business hours", err)
	}
	return nil
}

// Ensure interface compliance
var _ domain.BusinessHoursRepository = (*BusinessHoursRepository)(nil)
