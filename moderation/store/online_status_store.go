// moderation/store/online_status_store.go
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisu "github.com/Ftotnem/MODERATION-SERVICE/shared/redis"
	"github.com/redis/go-redis/v9"
)

// OnlinePlayersStore tracks which players currently have a live session, in
// Redis. Keys carry a TTL and are refreshed by the game servers' heartbeats,
// so a crashed server's players fall off on their own.
type OnlinePlayersStore struct {
	client    *redis.ClusterClient
	onlineTTL time.Duration
}

// NewOnlinePlayersStore creates and returns a new OnlinePlayersStore instance.
func NewOnlinePlayersStore(client *redis.ClusterClient, onlineTTL time.Duration) *OnlinePlayersStore {
	return &OnlinePlayersStore{
		client:    client,
		onlineTTL: onlineTTL,
	}
}

// SetPlayerOnline marks a player as online and stores their session start time.
// The key expires after the configured TTL unless refreshed.
func (ops *OnlinePlayersStore) SetPlayerOnline(ctx context.Context, playerUUID string, sessionStart time.Time) error {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, playerUUID)
	if err := ops.client.Set(ctx, key, sessionStart.UnixMilli(), ops.onlineTTL).Err(); err != nil {
		return fmt.Errorf("failed to set player %s online status in Redis: %w", playerUUID, err)
	}
	return nil
}

// IsPlayerOnline checks if a player's online status key currently exists.
func (ops *OnlinePlayersStore) IsPlayerOnline(ctx context.Context, playerUUID string) (bool, error) {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, playerUUID)
	exists, err := ops.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check online existence for player %s in Redis: %w", playerUUID, err)
	}
	return exists == 1, nil
}

// GetSessionStart retrieves the recorded session start time for an online
// player. Returns ErrRedisKeyNotFound (wrapped) if the player is offline.
func (ops *OnlinePlayersStore) GetSessionStart(ctx context.Context, playerUUID string) (time.Time, error) {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, playerUUID)

	val, err := ops.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return time.Time{}, fmt.Errorf("player %s is not currently marked as online: %w", playerUUID, redisu.ErrRedisKeyNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to retrieve session start for player %s from Redis: %w", playerUUID, err)
	}

	timestamp, parseErr := strconv.ParseInt(val, 10, 64)
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("invalid session start timestamp '%s' for player %s in Redis: %w", val, playerUUID, parseErr)
	}
	return time.UnixMilli(timestamp), nil
}

// RefreshPlayerOnlineStatus extends the TTL for a player's online status key.
// This acts as a heartbeat to keep a player marked as online.
func (ops *OnlinePlayersStore) RefreshPlayerOnlineStatus(ctx context.Context, playerUUID string) error {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, playerUUID)
	success, err := ops.client.Expire(ctx, key, ops.onlineTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh online status TTL for player %s in Redis: %w", playerUUID, err)
	}
	if !success {
		return fmt.Errorf("could not refresh online status for player %s, key might not exist or already expired", playerUUID)
	}
	return nil
}

// RemovePlayerOnline explicitly deletes a player's online status key.
// Called when a player logs off.
func (ops *OnlinePlayersStore) RemovePlayerOnline(ctx context.Context, playerUUID string) error {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, playerUUID)
	if _, err := ops.client.Del(ctx, key).Result(); err != nil {
		return fmt.Errorf("failed to remove online status key for player %s from Redis: %w", playerUUID, err)
	}
	return nil
}
