// moderation/store/staff_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StaffStore represents the MongoDB data store for staff profiles.
type StaffStore struct {
	collection *mongo.Collection
}

// NewStaffStore creates a new StaffStore instance.
func NewStaffStore(collection *mongo.Collection) *StaffStore {
	return &StaffStore{
		collection: collection,
	}
}

// EnsureProfile upserts a staff profile: the row is created with defaults on
// first sight of the staff member, and only the name is refreshed afterwards
// (rank and tier are managed elsewhere, name changes track the game account).
func (ss *StaffStore) EnsureProfile(ctx context.Context, staffUUID, name string) (*models.StaffProfile, error) {
	now := time.Now()
	filter := bson.M{"_id": staffUUID}
	update := bson.M{
		"$set": bson.M{"name": name},
		"$setOnInsert": bson.M{
			"staff_rank": "moderator",
			"tier":       1,
			"created_at": &now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var profile models.StaffProfile
	if err := ss.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to ensure staff profile %s: %w", staffUUID, err)
	}
	return &profile, nil
}

// GetByUUID retrieves a staff profile by UUID.
// Returns mongo.ErrNoDocuments if the player is not staff.
func (ss *StaffStore) GetByUUID(ctx context.Context, staffUUID string) (*models.StaffProfile, error) {
	var profile models.StaffProfile
	filter := bson.M{"_id": staffUUID}
	if err := ss.collection.FindOne(ctx, filter).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateLastLogin updates only the LastLoginAt timestamp for a staff profile.
func (ss *StaffStore) UpdateLastLogin(ctx context.Context, staffUUID string) error {
	filter := bson.M{"_id": staffUUID}
	now := time.Now()
	update := bson.M{"$set": bson.M{"last_login": &now}}
	res, err := ss.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update last login for staff %s: %w", staffUUID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("staff profile %s not found for last login update", staffUUID)
	}
	return nil
}

// IsStaff reports whether a profile exists for the UUID.
func (ss *StaffStore) IsStaff(ctx context.Context, playerUUID string) (bool, error) {
	count, err := ss.collection.CountDocuments(ctx, bson.M{"_id": playerUUID})
	if err != nil {
		return false, fmt.Errorf("failed to check staff status for %s: %w", playerUUID, err)
	}
	return count > 0, nil
}
