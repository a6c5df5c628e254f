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

// CredentialRepository implements domain.CredentialRepository on MongoDB.
type CredentialRepository struct {
	db          *mongo.Database
	credentials *mongo.Collection
}

// NewCredentialRepository creates the repository and ensures its indexes.
func NewCredentialRepository(ctx context.Context, db *mongo.Database) (domain.CredentialRepository, error) {
	repo := &CredentialRepository{
		db:          db,
		credentials: db.Collection(CredentialsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create credential indexes (may already exist)")
	}
	return repo, nil
}

func (r *CredentialRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.credentials.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for credentials collection: %w", err)
	}
	return nil
}

// Get retrieves the credential for (user, provider).
func (r *CredentialRepository) Get(ctx context.Context, userID string, provider domain.Provider) (*domain.OAuthCredential, error) {
	var cred domain.OAuthCredential
	err := r.credentials.FindOne(ctx, bson.M{"user_id": userID, "provider": provider}).Decode(&cred)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("credential for %s/%s: %w", userID, provider, errors.ErrNotFound)
		}
		log.Error().Err(err).Str("userID", userID).Str("provider", provider.String()).
			Msg("Error getting credential from MongoDB")
		return nil, errors.NewPersistenceError("get credential", err)
	}
	return &cred, nil
}

// Upsert writes the credential. An empty incoming refresh token leaves the
// stored one untouched; providers often omit it on repeated exchanges.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *domain.OAuthCredential) error {
	now := time.Now().UTC()

	set := bson.M{
		"access_token": cred.AccessToken,
		"expires_at":   cred.ExpiresAt,
		"updated_at":   now,
	}
	if cred.RefreshToken != "" {
		set["refresh_token"] = cred.RefreshToken
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"user_id":    cred.UserID,
			"provider":   cred.Provider,
			"created_at": now,
		},
	}

	filter := bson.M{"user_id": cred.UserID, "provider": cred.Provider}
	_, err := r.credentials.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("userID", cred.UserID).Str("provider", cred.Provider.String()).
			Msg("Error upserting credential in MongoDB")
		return errors.NewPersistenceError("upsert credential", err)
	}
	return nil
}

// Delete removes the credential for (user, provider).
func (r *CredentialRepository) Delete(ctx context.Context, userID string, provider domain.Provider) error {
	result, err := r.credentials.DeleteOne(ctx, bson.M{"user_id": userID, "provider": provider})
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error deleting credential from MongoDB")
		return errors.NewPersistenceError("delete credential", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("credential for %s/%s: %w", userID, provider, errors.ErrNotFound)
	}
	return nil
}

// Ensure interface compliance
var _ domain.CredentialRepository = (*CredentialRepository)(nil)
