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

// SlotRepository implements domain.SlotRepository on MongoDB.
type SlotRepository struct {
	db    *mongo.Database
	slots *mongo.Collection
}

// NewSlotRepository creates the repository and ensures its indexes.
func NewSlotRepository(ctx context.Context, db *mongo.Database) (domain.SlotRepository, error) {
	repo := &SlotRepository{
		db:    db,
		slots: db.Collection(SlotsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create slot indexes (may already exist)")
	}
	return repo, nil
}

func (r *SlotRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start", Value: 1}},
		},
	}

	_, err := r.slots.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for slots collection: %w", err)
	}
	return nil
}

// Create inserts a new slot.
func (r *SlotRepository) Create(ctx context.Context, slot *domain.AvailabilitySlot) error {
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	if _, err := r.slots.InsertOne(ctx, slot); err != nil {
		log.Error().Err(err).Str("userID", slot.UserID).Msg("Error creating slot in MongoDB")
		return errors.NewPersistenceError("create slot", err)
	}
	return nil
}

// GetByID retrieves a slot by its ID.
func (r *SlotRepository) GetByID(ctx context.Context, id string) (*domain.AvailabilitySlot, error) {
	var slot domain.AvailabilitySlot
	err := r.slots.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("slot %s: %w", id, errors.ErrNotFound)
		}
		log.Error().Err(err).Str("id", id).Msg("Error getting slot from MongoDB")
		return nil, errors.NewPersistenceError("get slot", err)
	}
	return &slot, nil
}

// Update replaces an existing slot.
func (r *SlotRepository) Update(ctx context.Context, slot *domain.AvailabilitySlot) error {
	slot.UpdatedAt = time.Now().UTC()

	result, err := r.slots.ReplaceOne(ctx, bson.M{"_id": slot.ID}, slot)
	if err != nil {
		log.Error().Err(err).Str("id", slot.ID).Msg("Error updating slot in MongoDB")
		return errors.NewPersistenceError("update slot", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("slot %s: %w", slot.ID, errors.ErrNotFound)
	}
	return nil
}

// Delete removes a slot by its ID.
func (r *SlotRepository) Delete(ctx context.Context, id string) error {
	result, err := r.slots.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Error deleting slot from MongoDB")
		return errors.NewPersistenceError("delete slot", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("slot %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

// ListByUser returns all of the user's slots sorted by start time.
func (r *SlotRepository) ListByUser(ctx context.Context, userID string) ([]domain.AvailabilitySlot, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})

	cursor, err := r.slots.Find(ctx, bson.M{"user_id": userID}, findOptions)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error listing slots from MongoDB")
		return nil, errors.NewPersistenceError("list slots", err)
	}
	defer cursor.Close(ctx)

	var slots []domain.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, errors.NewPersistenceError("decode slots", err)
	}
	return slots, nil
}

// ListInRange returns the user's slots overlapping the half-open range
// [start, end): slot.start < end AND slot.end > start.
func (r *SlotRepository) ListInRange(ctx context.Context, userID string, start, end time.Time) ([]domain.AvailabilitySlot, error) {
	filter := bson.M{
		"user_id": userID,
		"start":   bson.M{"$lt": end},
		"end":     bson.M{"$gt": start},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})

	cursor, err := r.slots.Find(ctx, filter, findOptions)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error listing slots in range from MongoDB")
		return nil, errors.NewPersistenceError("list slots in range", err)
	}
	defer cursor.Close(ctx)

	var slots []domain.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, errors.NewPersistenceError("decode slots", err)
	}
	return slots, nil
}

// Ensure interface compliance
var _ domain.SlotRepository = (*SlotRepository)(nil)
