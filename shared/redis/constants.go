// shared/redis/constants.go
package redis

import "fmt" // Needed for ErrRedisKeyNotFound

const (
	// Key constants for Redis moderation data
	OnlineKeyPrefix    = "online:{%s}:"     // Key for player online status: online:{uuid}
	BannedKeyPrefix    = "banned:{%s}:"     // Key for server-level ban entries: banned:{uuid}
	BanReasonKeyPrefix = "ban_reason:{%s}:" // Key for the reason attached to a ban entry
	BanIssuerKeyPrefix = "ban_issuer:{%s}:" // Key for the staff name attached to a ban entry
)

// Define a custom error for when a Redis key is not found (can also be a constant)
var ErrRedisKeyNotFound = fmt.Errorf("redis key not found")
