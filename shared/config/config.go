// shared/config/config.go
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

// CommonConfig holds configuration fields that are shared across multiple services.
type CommonConfig struct {
	RedisAddrs              []string      // Redis server addresses (e.g., "redis-cluster:6379")
	RedisPassword           string        // Redis password for authentication
	HeartbeatInterval       time.Duration // How often to send a heartbeat to registry (e.g., 5s)
	HeartbeatTTL            time.Duration // How long an instance is considered alive without a heartbeat (e.g., 15s)
	RegistryCleanupInterval time.Duration // How often the registry actively cleans stale entries (e.g., 30s)
	ServiceIP               string        // The IP address this service advertises for registration (Kubernetes Pod IP)
	ServicePort             int           // The port this service listens on, used for registration
}

// ModerationServiceConfig holds configuration specific to the moderation-service.
type ModerationServiceConfig struct {
	CommonConfig        // Embed CommonConfig
	ListenAddr   string // Address for the HTTP server (e.g., ":8083")

	MongoDBConnStr               string // MongoDB connection string
	MongoDBDatabase              string // MongoDB database name (e.g., "minestom")
	MongoDBPunishmentsCollection string // MongoDB collection for punishment history
	MongoDBStaffCollection       string // MongoDB collection for staff profiles

	RedisOnlineTTL time.Duration // TTL for 'online:<uuid>' presence keys in Redis (e.g., 15s)
	GameServiceURL string        // Base URL of the game service that applies live-world effects
	OriginServer   string        // Label of this server instance written on issued punishments

	// Warning escalation policy.
	WarningThreshold     int    // Active warnings needed to trigger escalation (e.g., 3)
	WarningAction        string // "TEMPBAN" or "KICK"
	WarningBanDurationMs int64  // Duration of the escalation temp-ban in ms

	// Freeze policy.
	FreezeLogoutBanEnabled    bool   // Auto-ban players who disconnect while frozen
	FreezeLogoutBanReason     string // Reason written on the logout ban
	FreezeLogoutBanDurationMs int64  // Duration of the logout ban in ms
	FreezeReminderInterval    time.Duration
	FreezeBlockCommands       bool     // Whether to block commands while frozen
	FreezeAllowedCommands     []string // Command prefixes still allowed while frozen

	AppealURL string // Appeal URL shown on ban screens

	// Outbound webhook notifications (best effort, never affects outcomes).
	WebhookEnabled bool
	WebhookURL     string
	WebhookBans    bool
	WebhookMutes   bool
	WebhookKicks   bool
	WebhookWarns   bool
	WebhookFreezes bool

	// Punishment sync to peer moderation-service instances.
	SyncEnabled       bool
	SyncRetryInterval time.Duration

	UsernameFillerInterval time.Duration // How often to backfill missing player names on punishment rows
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	cfg := CommonConfig{}
	var err error

	// Redis Addresses
	redisAddrsStr := os.Getenv("REDIS_ADDRS")
	if redisAddrsStr == "" {
		cfg.RedisAddrs = []string{"redis-cluster-headless.minecraft-cluster.svc.cluster.local:6379"} // Default for K8s Service
	} else {
		for _, addr := range strings.Split(redisAddrsStr, ",") {
			cfg.RedisAddrs = append(cfg.RedisAddrs, strings.TrimSpace(addr))
		}
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.HeartbeatInterval, err = getDuration("SERVICE_HEARTBEAT_INTERVAL", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.HeartbeatTTL, err = getDuration("SERVICE_HEARTBEAT_TTL", 15*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.RegistryCleanupInterval, err = getDuration("SERVICE_REGISTRY_CLEANUP_INTERVAL", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	// Service IP (for registration, from Kubernetes Pod IP)
	cfg.ServiceIP = os.Getenv("POD_IP") // Injected by Kubernetes
	if cfg.ServiceIP == "" {
		// Fallback for local development outside K8s or if not injected
		cfg.ServiceIP = "0.0.0.0"
		fmt.Printf("WARNING: POD_IP not set, defaulting ServiceIP to %s\n", cfg.ServiceIP)
	}

	return cfg, nil
}

// LoadModerationServiceConfig loads configuration for the moderation-service.
func LoadModerationServiceConfig() (*ModerationServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for moderation-service: %w", err)
	}

	cfg := &ModerationServiceConfig{
		CommonConfig:                 common,
		ListenAddr:                   os.Getenv("MODERATION_SERVICE_LISTEN_ADDR"),
		MongoDBConnStr:               os.Getenv("MONGODB_CONN_STR"),
		MongoDBDatabase:              os.Getenv("MONGODB_DATABASE"),
		MongoDBPunishmentsCollection: os.Getenv("MONGODB_PUNISHMENTS_COLLECTION"),
		MongoDBStaffCollection:       os.Getenv("MONGODB_STAFF_COLLECTION"),
		GameServiceURL:               os.Getenv("GAME_SERVICE_URL"),
		OriginServer:                 os.Getenv("ORIGIN_SERVER"),
		WarningAction:                os.Getenv("WARNING_ACTION"),
		FreezeLogoutBanReason:        os.Getenv("FREEZE_LOGOUT_BAN_REASON"),
		AppealURL:                    os.Getenv("APPEAL_URL"),
		WebhookURL:                   os.Getenv("WEBHOOK_URL"),
	}

	// Apply defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8083"
	}
	if cfg.MongoDBConnStr == "" {
		cfg.MongoDBConnStr = "mongodb://mongodb-service:27017"
	}
	if cfg.MongoDBDatabase == "" {
		cfg.MongoDBDatabase = "minestom"
	}
	if cfg.MongoDBPunishmentsCollection == "" {
		cfg.MongoDBPunishmentsCollection = "punishments"
	}
	if cfg.MongoDBStaffCollection == "" {
		cfg.MongoDBStaffCollection = "staff"
	}
	if cfg.GameServiceURL == "" {
		cfg.GameServiceURL = "http://game-service:8082" // Default for K8s internal DNS
	}
	if cfg.OriginServer == "" {
		cfg.OriginServer = "main"
	}
	if cfg.WarningAction == "" {
		cfg.WarningAction = "TEMPBAN"
	}
	if cfg.FreezeLogoutBanReason == "" {
		cfg.FreezeLogoutBanReason = "Logged out while frozen"
	}
	if cfg.AppealURL == "" {
		cfg.AppealURL = "N/A"
	}

	// Extract ServicePort from ListenAddr
	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from MODERATION_SERVICE_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	cfg.RedisOnlineTTL, err = getDuration("REDIS_ONLINE_TTL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.WarningThreshold, err = getInt("WARNING_THRESHOLD", 3)
	if err != nil {
		return nil, err
	}
	if cfg.WarningThreshold <= 0 {
		return nil, fmt.Errorf("WARNING_THRESHOLD must be positive (got %d)", cfg.WarningThreshold)
	}
	if cfg.WarningAction != "TEMPBAN" && cfg.WarningAction != "KICK" {
		return nil, fmt.Errorf("WARNING_ACTION must be TEMPBAN or KICK (got %q)", cfg.WarningAction)
	}
	cfg.WarningBanDurationMs = getPunishmentDuration("WARNING_BAN_DURATION", "1d")

	cfg.FreezeLogoutBanEnabled, err = getBool("FREEZE_LOGOUT_BAN_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cfg.FreezeLogoutBanDurationMs = getPunishmentDuration("FREEZE_LOGOUT_BAN_DURATION", "7d")
	cfg.FreezeReminderInterval, err = getDuration("FREEZE_REMINDER_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.FreezeBlockCommands, err = getBool("FREEZE_BLOCK_COMMANDS", true)
	if err != nil {
		return nil, err
	}
	allowedStr := os.Getenv("FREEZE_ALLOWED_COMMANDS")
	if allowedStr == "" {
		cfg.FreezeAllowedCommands = []string{"/msg", "/r", "/helpop"}
	} else {
		for _, cmd := range strings.Split(allowedStr, ",") {
			cfg.FreezeAllowedCommands = append(cfg.FreezeAllowedCommands, strings.TrimSpace(cmd))
		}
	}

	cfg.WebhookEnabled, err = getBool("WEBHOOK_ENABLED", false)
	if err != nil {
		return nil, err
	}
	if cfg.WebhookEnabled && cfg.WebhookURL == "" {
		return nil, fmt.Errorf("WEBHOOK_ENABLED is set but WEBHOOK_URL is empty")
	}
	cfg.WebhookBans, _ = getBool("WEBHOOK_BANS", true)
	cfg.WebhookMutes, _ = getBool("WEBHOOK_MUTES", true)
	cfg.WebhookKicks, _ = getBool("WEBHOOK_KICKS", false)
	cfg.WebhookWarns, _ = getBool("WEBHOOK_WARNS", false)
	cfg.WebhookFreezes, _ = getBool("WEBHOOK_FREEZES", false)

	cfg.SyncEnabled, err = getBool("PUNISHMENT_SYNC_ENABLED", false)
	if err != nil {
		return nil, err
	}
	cfg.SyncRetryInterval, err = getDuration("PUNISHMENT_SYNC_RETRY_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.UsernameFillerInterval, err = getDuration("USERNAME_FILLER_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Helper function to parse duration from environment variable
func getDuration(envKey string, defaultVal time.Duration) (time.Duration, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %w", envKey, err)
	}
	return d, nil
}

// getPunishmentDuration parses a human-readable punishment duration ("7d",
// "2h30m") from an environment variable, falling back to the default when
// unset or invalid.
func getPunishmentDuration(envKey, defaultVal string) int64 {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		valStr = defaultVal
	}
	ms := timeutil.ParseDuration(valStr)
	if ms <= 0 {
		ms = timeutil.ParseDuration(defaultVal)
	}
	return ms
}

// Helper function to parse int from environment variable
func getInt(envKey string, defaultVal int) (int, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format for %s: %w", envKey, err)
	}
	return i, nil
}

// Helper function to parse bool from environment variable
func getBool(envKey string, defaultVal bool) (bool, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("invalid boolean format for %s: %w", envKey, err)
	}
	return b, nil
}

// extractPort extracts the numeric port from a listen address (e.g., ":8083" -> 8083, "0.0.0.0:8083" -> 8083)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		// If SplitHostPort fails, check if ListenAddr is just a port (e.g., ":8083")
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}
