// moderation/store/punishment_store.go
package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PunishmentStore represents the MongoDB data store for punishment records.
// All writes go through a single mutex so concurrent handlers never interleave
// a read-modify-write on the same player's records.
type PunishmentStore struct {
	collection *mongo.Collection
	writeMu    sync.Mutex
}

// NewPunishmentStore creates a new PunishmentStore instance.
func NewPunishmentStore(collection *mongo.Collection) *PunishmentStore {
	return &PunishmentStore{
		collection: collection,
	}
}

// EnsureIndexes creates the indexes the hot queries depend on. Safe to call on
// every startup; MongoDB treats re-creation of an existing index as a no-op.
func (ps *PunishmentStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "player_uuid", Value: 1}}},
		{Keys: bson.D{{Key: "active", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	}
	if _, err := ps.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create punishment indexes: %w", err)
	}
	return nil
}

// Save inserts a new punishment record, assigning an ID if none is set.
func (ps *PunishmentStore) Save(ctx context.Context, p *models.Punishment) error {
	ps.writeMu.Lock()
	defer ps.writeMu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, err := ps.collection.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to save punishment %s for player %s: %w", p.ID, p.PlayerUUID, err)
	}
	return nil
}

// GetActive returns the player's active, unexpired punishments of the given
// kinds, newest first. Records found to be past their expiry are deactivated
// in place before being filtered out, so expiry needs no background sweeper
// of its own.
func (ps *PunishmentStore) GetActive(ctx context.Context, playerUUID string, kinds []models.Kind) ([]*models.Punishment, error) {
	filter := bson.M{
		"player_uuid": playerUUID,
		"active":      true,
	}
	if len(kinds) > 0 {
		filter["type"] = bson.M{"$in": kinds}
	}

	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}})
	cursor, err := ps.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query active punishments for player %s: %w", playerUUID, err)
	}
	defer cursor.Close(ctx)

	nowMs := time.Now().UnixMilli()
	var active []*models.Punishment
	for cursor.Next(ctx) {
		var p models.Punishment
		if err := cursor.Decode(&p); err != nil {
			log.Printf("WARN: Error decoding punishment record for player %s: %v", playerUUID, err)
			continue
		}
		if p.IsExpiredAt(nowMs) {
			if err := ps.Deactivate(ctx, p.ID); err != nil {
				log.Printf("WARN: Failed to deactivate expired punishment %s: %v", p.ID, err)
			}
			continue
		}
		active = append(active, &p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active punishments for player %s: %w", playerUUID, err)
	}
	return active, nil
}

// History returns every punishment ever issued against the player, newest
// first, including revoked and expired records.
func (ps *PunishmentStore) History(ctx context.Context, playerUUID string) ([]*models.Punishment, error) {
	filter := bson.M{"player_uuid": playerUUID}
	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}})

	cursor, err := ps.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query punishment history for player %s: %w", playerUUID, err)
	}
	defer cursor.Close(ctx)

	var history []*models.Punishment
	for cursor.Next(ctx) {
		var p models.Punishment
		if err := cursor.Decode(&p); err != nil {
			log.Printf("WARN: Error decoding punishment record for player %s: %v", playerUUID, err)
			continue
		}
		history = append(history, &p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating punishment history for player %s: %w", playerUUID, err)
	}
	return history, nil
}

// CountActiveWarnings returns how many active warnings the player carries.
func (ps *PunishmentStore) CountActiveWarnings(ctx context.Context, playerUUID string) (int64, error) {
	filter := bson.M{
		"player_uuid": playerUUID,
		"type":        models.KindWarn,
		"active":      true,
	}
	count, err := ps.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count active warnings for player %s: %w", playerUUID, err)
	}
	return count, nil
}

// Deactivate clears the Active flag on a single punishment record.
func (ps *PunishmentStore) Deactivate(ctx context.Context, punishmentID string) error {
	ps.writeMu.Lock()
	defer ps.writeMu.Unlock()

	filter := bson.M{"_id": punishmentID}
	update := bson.M{"$set": bson.M{"active": false}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate punishment %s: %w", punishmentID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("punishment %s not found for deactivation", punishmentID)
	}
	return nil
}

// DeactivateByPlayer clears the Active flag on every active punishment of the
// given kinds against the player. Returns true if at least one record was
// actually deactivated, which is how revocation reports "nothing to revoke".
func (ps *PunishmentStore) DeactivateByPlayer(ctx context.Context, playerUUID string, kinds []models.Kind) (bool, error) {
	ps.writeMu.Lock()
	defer ps.writeMu.Unlock()

	filter := bson.M{
		"player_uuid": playerUUID,
		"active":      true,
	}
	if len(kinds) > 0 {
		filter["type"] = bson.M{"$in": kinds}
	}
	update := bson.M{"$set": bson.M{"active": false}}
	res, err := ps.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate punishments for player %s: %w", playerUUID, err)
	}
	return res.ModifiedCount > 0, nil
}
