// moderation/store/ban_store.go
package store

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	redisu "github.com/Ftotnem/MODERATION-SERVICE/shared/redis"
	"github.com/redis/go-redis/v9"
)

// BanStore mirrors active bans into Redis so the login path never queries
// MongoDB. The key value is the ban's expiry timestamp in milliseconds, 0 for
// permanent bans; the key itself carries a matching TTL so Redis drops timed
// bans on its own.
type BanStore struct {
	client *redis.ClusterClient
}

// NewBanStore creates a new BanStore instance.
func NewBanStore(client *redis.ClusterClient) *BanStore {
	return &BanStore{
		client: client,
	}
}

// BanEntry is what the login check reads back for a banned player.
type BanEntry struct {
	PlayerUUID  string `json:"player_uuid"`
	Reason      string `json:"reason"`
	StaffName   string `json:"staff_name"`
	ExpiresAtMs int64  `json:"expires_at_ms"` // 0 for permanent
}

// IsPermanent reports whether the ban never expires.
func (be *BanEntry) IsPermanent() bool {
	return be.ExpiresAtMs == 0
}

// RegisterBan records an active ban in Redis. Pass expiresAtMs 0 for a
// permanent ban; timed entries get a Redis TTL matching the remaining time.
func (bs *BanStore) RegisterBan(ctx context.Context, playerUUID, reason, staffName string, expiresAtMs int64) error {
	key := fmt.Sprintf(redisu.BannedKeyPrefix, playerUUID)

	var ttl time.Duration
	if expiresAtMs > 0 {
		ttl = time.Until(time.UnixMilli(expiresAtMs))
		if ttl <= 0 {
			ttl = time.Millisecond // Already expired, let Redis collect it immediately
		}
	}

	if err := bs.client.Set(ctx, key, expiresAtMs, ttl).Err(); err != nil {
		return fmt.Errorf("failed to register ban for player %s: %w", playerUUID, err)
	}

	reasonKey := fmt.Sprintf(redisu.BanReasonKeyPrefix, playerUUID)
	if err := bs.client.Set(ctx, reasonKey, reason, ttl).Err(); err != nil {
		log.Printf("Warning: Failed to store ban reason for %s: %v", playerUUID, err)
	}
	issuerKey := fmt.Sprintf(redisu.BanIssuerKeyPrefix, playerUUID)
	if err := bs.client.Set(ctx, issuerKey, staffName, ttl).Err(); err != nil {
		log.Printf("Warning: Failed to store ban issuer for %s: %v", playerUUID, err)
	}

	return nil
}

// RemoveBan deletes the player's ban keys. Returns true if a ban key existed.
func (bs *BanStore) RemoveBan(ctx context.Context, playerUUID string) (bool, error) {
	banKey := fmt.Sprintf(redisu.BannedKeyPrefix, playerUUID)
	reasonKey := fmt.Sprintf(redisu.BanReasonKeyPrefix, playerUUID)
	issuerKey := fmt.Sprintf(redisu.BanIssuerKeyPrefix, playerUUID)

	// Keys live in the same hash slot thanks to the {uuid} hash tag, so a
	// multi-key DEL is safe on a cluster.
	deletedCount, err := bs.client.Del(ctx, banKey, reasonKey, issuerKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove ban for player %s: %w", playerUUID, err)
	}
	return deletedCount > 0, nil
}

// GetBan returns the player's active ban entry, or nil if they are not banned.
// An entry whose expiry has passed is cleaned up asynchronously and treated as
// not banned.
func (bs *BanStore) GetBan(ctx context.Context, playerUUID string) (*BanEntry, error) {
	banKey := fmt.Sprintf(redisu.BannedKeyPrefix, playerUUID)
	reasonKey := fmt.Sprintf(redisu.BanReasonKeyPrefix, playerUUID)
	issuerKey := fmt.Sprintf(redisu.BanIssuerKeyPrefix, playerUUID)

	pipe := bs.client.Pipeline()
	banCmd := pipe.Get(ctx, banKey)
	reasonCmd := pipe.Get(ctx, reasonKey)
	issuerCmd := pipe.Get(ctx, issuerKey)
	pipe.Exec(ctx)

	banVal, banErr := banCmd.Result()
	if banErr == redis.Nil {
		return nil, nil // Not banned
	}
	if banErr != nil {
		return nil, fmt.Errorf("failed to check ban status for %s: %w", playerUUID, banErr)
	}

	expiresAtMs, parseErr := strconv.ParseInt(banVal, 10, 64)
	if parseErr != nil {
		log.Printf("Warning: Ban entry for %s has invalid timestamp: %s. Treating as not banned.", playerUUID, banVal)
		return nil, nil
	}

	if expiresAtMs > 0 && time.Now().UnixMilli() >= expiresAtMs {
		// Expired but the TTL has not fired yet; clean up out of band.
		go func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := bs.RemoveBan(cleanupCtx, playerUUID); err != nil {
				log.Printf("Error cleaning up expired ban for %s: %v", playerUUID, err)
			}
		}()
		return nil, nil
	}

	reason, reasonErr := reasonCmd.Result()
	if reasonErr == redis.Nil {
		reason = "No reason provided"
	} else if reasonErr != nil {
		log.Printf("Warning: Could not retrieve ban reason for %s: %v", playerUUID, reasonErr)
		reason = "Unknown reason"
	}
	staffName, issuerErr := issuerCmd.Result()
	if issuerErr != nil && issuerErr != redis.Nil {
		log.Printf("Warning: Could not retrieve ban issuer for %s: %v", playerUUID, issuerErr)
	}

	return &BanEntry{
		PlayerUUID:  playerUUID,
		Reason:      reason,
		StaffName:   staffName,
		ExpiresAtMs: expiresAtMs,
	}, nil
}

// IsBanned is a convenience wrapper over GetBan for callers that only need a
// yes/no answer.
func (bs *BanStore) IsBanned(ctx context.Context, playerUUID string) (bool, error) {
	entry, err := bs.GetBan(ctx, playerUUID)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}
