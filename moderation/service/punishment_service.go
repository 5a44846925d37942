// moderation/service/punishment_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/moderation/cache"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/store"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/config"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

// PunishmentRecords is the persistence surface the engine needs. Implemented
// by store.PunishmentStore; tests substitute an in-memory fake.
type PunishmentRecords interface {
	Save(ctx context.Context, p *models.Punishment) error
	GetActive(ctx context.Context, playerUUID string, kinds []models.Kind) ([]*models.Punishment, error)
	History(ctx context.Context, playerUUID string) ([]*models.Punishment, error)
	CountActiveWarnings(ctx context.Context, playerUUID string) (int64, error)
	DeactivateByPlayer(ctx context.Context, playerUUID string, kinds []models.Kind) (bool, error)
}

// BanList is the fast-path ban mirror consulted on login. Implemented by
// store.BanStore.
type BanList interface {
	RegisterBan(ctx context.Context, playerUUID, reason, staffName string, expiresAtMs int64) error
	RemoveBan(ctx context.Context, playerUUID string) (bool, error)
	GetBan(ctx context.Context, playerUUID string) (*store.BanEntry, error)
}

// Presence answers whether a player currently has a live session.
// Implemented by store.OnlinePlayersStore.
type Presence interface {
	SetPlayerOnline(ctx context.Context, playerUUID string, sessionStart time.Time) error
	IsPlayerOnline(ctx context.Context, playerUUID string) (bool, error)
	RemovePlayerOnline(ctx context.Context, playerUUID string) error
}

// EventSink receives moderation lifecycle events after they are committed.
// Implementations must not block; slow delivery work belongs on the sink's
// own goroutine.
type EventSink interface {
	PunishmentIssued(p *models.Punishment)
	PunishmentRevoked(category models.Category, playerUUID, staffName string)
	FreezeToggled(playerUUID, playerName, staffName string, frozen bool)
}

// IssueRequest carries everything needed to issue a punishment.
type IssueRequest struct {
	PlayerUUID string
	PlayerName string
	StaffUUID  string
	StaffName  string
	Kind       models.Kind
	Reason     string
	DurationMs int64
}

// LoginDecision is the outcome of a pre-login ban check.
type LoginDecision struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"` // Disconnect screen text when denied
}

// PunishmentService owns the punishment lifecycle: issuing, revocation,
// expiry-aware queries, warning escalation, and the mute fast path. All state
// transitions for one player are serialized under a per-player lock, so a
// warning landing concurrently with a mute cannot interleave escalation with
// a half-written record.
type PunishmentService struct {
	cfg        *config.ModerationServiceConfig
	records    PunishmentRecords
	bans       BanList
	presence   Presence
	mutes      *cache.MuteCache
	dispatcher *live.Dispatcher
	effects    live.Effects
	sinks      []EventSink

	playersMu   sync.Mutex
	playerLocks map[string]*sync.Mutex
}

// NewPunishmentService creates a PunishmentService. Sinks may be nil.
func NewPunishmentService(
	cfg *config.ModerationServiceConfig,
	records PunishmentRecords,
	bans BanList,
	presence Presence,
	mutes *cache.MuteCache,
	dispatcher *live.Dispatcher,
	effects live.Effects,
	sinks ...EventSink,
) *PunishmentService {
	return &PunishmentService{
		cfg:         cfg,
		records:     records,
		bans:        bans,
		presence:    presence,
		mutes:       mutes,
		dispatcher:  dispatcher,
		effects:     effects,
		sinks:       sinks,
		playerLocks: make(map[string]*sync.Mutex),
	}
}

// playerLock returns the mutex serializing state transitions for one player.
// Locks are never removed; the map grows with the set of players ever touched,
// which is bounded and tiny compared to the records themselves.
func (s *PunishmentService) playerLock(playerUUID string) *sync.Mutex {
	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	mu, ok := s.playerLocks[playerUUID]
	if !ok {
		mu = &sync.Mutex{}
		s.playerLocks[playerUUID] = mu
	}
	return mu
}

// Issue validates and applies a new punishment. The record is persisted
// before any live effect runs: a database failure means nothing happened, a
// live-world failure is logged and the punishment still stands.
func (s *PunishmentService) Issue(ctx context.Context, req IssueRequest) (*models.Punishment, error) {
	if err := validateIssueRequest(&req); err != nil {
		return nil, err
	}

	mu := s.playerLock(req.PlayerUUID)
	mu.Lock()
	defer mu.Unlock()
	return s.issueLocked(ctx, req)
}

func validateIssueRequest(req *IssueRequest) error {
	if req.PlayerUUID == "" {
		return fmt.Errorf("punishment target uuid is required")
	}
	if req.StaffUUID == "" || req.StaffName == "" {
		return fmt.Errorf("punishment issuer is required")
	}
	if req.Reason == "" {
		return fmt.Errorf("punishment reason is required")
	}
	switch req.Kind {
	case models.KindBan, models.KindMute:
		if req.DurationMs != models.PermanentDuration {
			return fmt.Errorf("%s is permanent, duration must be %d (got %d)", req.Kind, models.PermanentDuration, req.DurationMs)
		}
	case models.KindTempBan, models.KindTempMute:
		if req.DurationMs <= 0 {
			return fmt.Errorf("%s requires a positive duration (got %d)", req.Kind, req.DurationMs)
		}
	case models.KindKick, models.KindWarn:
		// Instantaneous; duration is meaningless and forced to zero.
		req.DurationMs = 0
	default:
		return fmt.Errorf("unknown punishment kind %q", req.Kind)
	}
	return nil
}

// issueLocked persists and enforces a punishment. Callers must hold the
// player's lock. Warning escalation re-enters here directly, which is safe
// because escalation only ever issues ban or kick kinds and those never
// escalate further.
func (s *PunishmentService) issueLocked(ctx context.Context, req IssueRequest) (*models.Punishment, error) {
	p := models.NewPunishment(req.PlayerUUID, req.PlayerName, req.StaffUUID, req.StaffName,
		req.Kind, req.Reason, req.DurationMs, s.cfg.OriginServer)

	if err := s.records.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("punishment not issued: %w", err)
	}

	switch p.Kind {
	case models.KindBan, models.KindTempBan:
		s.enforceBan(ctx, p)
	case models.KindMute, models.KindTempMute:
		s.enforceMute(ctx, p)
	case models.KindKick:
		s.enforceKick(p)
	case models.KindWarn:
		if err := s.enforceWarn(ctx, p); err != nil {
			log.Printf("ERROR: Warning escalation for player %s failed: %v", p.PlayerUUID, err)
		}
	}

	for _, sink := range s.sinks {
		sink.PunishmentIssued(p)
	}

	log.Printf("INFO: %s issued against player %s (%s) by %s: %s",
		p.Kind, p.PlayerName, p.PlayerUUID, p.StaffName, p.Reason)
	return p, nil
}

func (s *PunishmentService) enforceBan(ctx context.Context, p *models.Punishment) {
	if err := s.bans.RegisterBan(ctx, p.PlayerUUID, p.Reason, p.StaffName, banMirrorExpiry(p)); err != nil {
		// The record is authoritative; CheckLogin re-mirrors on its next miss.
		log.Printf("ERROR: Failed to mirror ban for player %s into Redis: %v", p.PlayerUUID, err)
	}

	online, err := s.presence.IsPlayerOnline(ctx, p.PlayerUUID)
	if err != nil {
		log.Printf("WARN: Could not check presence for banned player %s: %v", p.PlayerUUID, err)
	}
	if online || err != nil {
		// When presence is unknown, attempt the disconnect anyway; kicking an
		// offline player is a no-op on the game server.
		player := live.PlayerRef{UUID: p.PlayerUUID, Name: p.PlayerName}
		message := banScreen(p, s.cfg.AppealURL)
		if qerr := s.dispatcher.Async("ban-disconnect", func(ctx context.Context) error {
			return s.effects.Disconnect(ctx, player, message)
		}); qerr != nil {
			log.Printf("WARN: Ban disconnect for %s not queued: %v", p.PlayerUUID, qerr)
		}
	}
}

func (s *PunishmentService) enforceMute(ctx context.Context, p *models.Punishment) {
	// The cache entry must be visible before Issue returns so a chat message
	// arriving right after the mute is already blocked.
	s.mutes.Put(p.PlayerUUID, p)

	player := live.PlayerRef{UUID: p.PlayerUUID, Name: p.PlayerName}
	message := muteNotice(p)
	if qerr := s.dispatcher.Async("mute-notice", func(ctx context.Context) error {
		return s.effects.SendMessage(ctx, player, message)
	}); qerr != nil {
		log.Printf("WARN: Mute notice for %s not queued: %v", p.PlayerUUID, qerr)
	}
}

func (s *PunishmentService) enforceKick(p *models.Punishment) {
	player := live.PlayerRef{UUID: p.PlayerUUID, Name: p.PlayerName}
	message := fmt.Sprintf("You have been kicked by %s.\nReason: %s", p.StaffName, p.Reason)
	if qerr := s.dispatcher.Async("kick-disconnect", func(ctx context.Context) error {
		return s.effects.Disconnect(ctx, player, message)
	}); qerr != nil {
		log.Printf("WARN: Kick for %s not queued: %v", p.PlayerUUID, qerr)
	}
}

// enforceWarn notifies the player and escalates when their active warning
// count reaches the threshold. Escalation fires exactly on the crossing, not
// on every warning past it.
func (s *PunishmentService) enforceWarn(ctx context.Context, p *models.Punishment) error {
	player := live.PlayerRef{UUID: p.PlayerUUID, Name: p.PlayerName}
	message := fmt.Sprintf("You have been warned by %s.\nReason: %s", p.StaffName, p.Reason)
	if qerr := s.dispatcher.Async("warn-notice", func(ctx context.Context) error {
		return s.effects.SendMessage(ctx, player, message)
	}); qerr != nil {
		log.Printf("WARN: Warning notice for %s not queued: %v", p.PlayerUUID, qerr)
	}

	count, err := s.records.CountActiveWarnings(ctx, p.PlayerUUID)
	if err != nil {
		return fmt.Errorf("failed to count warnings: %w", err)
	}
	if int(count) != s.cfg.WarningThreshold {
		return nil
	}

	escalation := IssueRequest{
		PlayerUUID: p.PlayerUUID,
		PlayerName: p.PlayerName,
		StaffUUID:  p.StaffUUID,
		StaffName:  p.StaffName,
		Reason:     "Too many warnings",
	}
	if s.cfg.WarningAction == "KICK" {
		escalation.Kind = models.KindKick
	} else {
		escalation.Kind = models.KindTempBan
		escalation.DurationMs = s.cfg.WarningBanDurationMs
	}

	log.Printf("INFO: Player %s reached %d active warnings, escalating with %s",
		p.PlayerUUID, count, escalation.Kind)
	if _, err := s.issueLocked(ctx, escalation); err != nil {
		return fmt.Errorf("failed to issue escalation %s: %w", escalation.Kind, err)
	}
	return nil
}

// Revoke lifts every active punishment of the given category against the
// player. Returns false when there was nothing to revoke.
func (s *PunishmentService) Revoke(ctx context.Context, category models.Category, playerUUID, staffName string) (bool, error) {
	kinds := category.Kinds()
	if kinds == nil {
		return false, fmt.Errorf("unknown punishment category %q", category)
	}

	mu := s.playerLock(playerUUID)
	mu.Lock()
	defer mu.Unlock()

	changed, err := s.records.DeactivateByPlayer(ctx, playerUUID, kinds)
	if err != nil {
		return false, err
	}

	switch category {
	case models.CategoryBan:
		// Drop the Redis mirror even if no record changed; a stale mirror
		// entry must never outlive its record.
		if _, err := s.bans.RemoveBan(ctx, playerUUID); err != nil {
			log.Printf("ERROR: Failed to remove ban mirror for player %s: %v", playerUUID, err)
		}
	case models.CategoryMute:
		s.mutes.Remove(playerUUID)
		if changed {
			player := live.PlayerRef{UUID: playerUUID}
			if qerr := s.dispatcher.Async("unmute-notice", func(ctx context.Context) error {
				return s.effects.SendMessage(ctx, player, "You have been unmuted.")
			}); qerr != nil {
				log.Printf("WARN: Unmute notice for %s not queued: %v", playerUUID, qerr)
			}
		}
	}

	if changed {
		for _, sink := range s.sinks {
			sink.PunishmentRevoked(category, playerUUID, staffName)
		}
		log.Printf("INFO: Active %ss against player %s revoked by %s", category, playerUUID, staffName)
	}
	return changed, nil
}

// QueryActive returns the player's active, unexpired punishments. With an
// empty kind set it returns all of them.
func (s *PunishmentService) QueryActive(ctx context.Context, playerUUID string, kinds []models.Kind) ([]*models.Punishment, error) {
	return s.records.GetActive(ctx, playerUUID, kinds)
}

// History returns the player's full punishment history, newest first.
func (s *PunishmentService) History(ctx context.Context, playerUUID string) ([]*models.Punishment, error) {
	return s.records.History(ctx, playerUUID)
}

// WarningCount returns the player's active warning count.
func (s *PunishmentService) WarningCount(ctx context.Context, playerUUID string) (int64, error) {
	return s.records.CountActiveWarnings(ctx, playerUUID)
}

// CachedMute returns the player's active mute from the in-memory cache, or
// nil. This is the chat hot path; it never touches Redis or MongoDB.
func (s *PunishmentService) CachedMute(playerUUID string) *models.Punishment {
	return s.mutes.Get(playerUUID)
}

// CheckLogin decides whether a connecting player may join. The Redis ban
// mirror answers the common case; a mirror miss falls back to the punishment
// store, so a failed mirror write or a Redis restart never admits a banned
// player. A ban found only in the store is re-mirrored on the way out.
func (s *PunishmentService) CheckLogin(ctx context.Context, playerUUID string) (*LoginDecision, error) {
	entry, err := s.bans.GetBan(ctx, playerUUID)
	if err != nil {
		return nil, fmt.Errorf("login check for player %s failed: %w", playerUUID, err)
	}
	if entry != nil {
		return &LoginDecision{Allowed: false, Message: banScreenFromEntry(entry, s.cfg.AppealURL)}, nil
	}

	active, err := s.records.GetActive(ctx, playerUUID, models.CategoryBan.Kinds())
	if err != nil {
		return nil, fmt.Errorf("login check for player %s failed: %w", playerUUID, err)
	}
	if len(active) == 0 {
		return &LoginDecision{Allowed: true}, nil
	}

	p := active[0]
	log.Printf("WARN: Ban mirror miss for banned player %s, re-mirroring from store", playerUUID)
	if rerr := s.bans.RegisterBan(ctx, p.PlayerUUID, p.Reason, p.StaffName, banMirrorExpiry(p)); rerr != nil {
		log.Printf("ERROR: Failed to re-mirror ban for player %s into Redis: %v", p.PlayerUUID, rerr)
	}
	return &LoginDecision{Allowed: false, Message: banScreen(p, s.cfg.AppealURL)}, nil
}

// banMirrorExpiry maps a ban record's expiry onto the mirror's convention,
// where 0 means permanent.
func banMirrorExpiry(p *models.Punishment) int64 {
	if p.IsPermanent() {
		return 0
	}
	return p.ExpiresAt
}

// PlayerJoin marks the player online and warms the mute cache from storage so
// chat checks are in-memory from the first message.
func (s *PunishmentService) PlayerJoin(ctx context.Context, player live.PlayerRef) error {
	if err := s.presence.SetPlayerOnline(ctx, player.UUID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark player %s online: %w", player.UUID, err)
	}

	mutes, err := s.records.GetActive(ctx, player.UUID, models.CategoryMute.Kinds())
	if err != nil {
		return fmt.Errorf("failed to load active mutes for player %s: %w", player.UUID, err)
	}
	if len(mutes) > 0 {
		s.mutes.Put(player.UUID, mutes[0])
	}
	return nil
}

// PlayerQuit drops the player's presence key and cached mute. Punishment
// records are untouched; the cache is rebuilt on the next join.
func (s *PunishmentService) PlayerQuit(ctx context.Context, playerUUID string) error {
	s.mutes.Remove(playerUUID)
	if err := s.presence.RemovePlayerOnline(ctx, playerUUID); err != nil {
		return fmt.Errorf("failed to mark player %s offline: %w", playerUUID, err)
	}
	return nil
}

// banScreen renders the disconnect screen for a freshly issued ban.
func banScreen(p *models.Punishment, appealURL string) string {
	if p.IsPermanent() {
		return fmt.Sprintf("You are permanently banned from this server.\nReason: %s\nBanned by: %s\nAppeal at: %s",
			p.Reason, p.StaffName, appealURL)
	}
	return fmt.Sprintf("You are banned from this server.\nReason: %s\nBanned by: %s\nExpires: %s (%s remaining)\nAppeal at: %s",
		p.Reason, p.StaffName, timeutil.FormatDate(p.ExpiresAt), timeutil.FormatDurationShort(p.ExpiresAt-timeutil.Now()), appealURL)
}

// banScreenFromEntry renders the login denial screen from the Redis mirror.
func banScreenFromEntry(entry *store.BanEntry, appealURL string) string {
	issuer := entry.StaffName
	if issuer == "" {
		issuer = "the server"
	}
	if entry.IsPermanent() {
		return fmt.Sprintf("You are permanently banned from this server.\nReason: %s\nBanned by: %s\nAppeal at: %s",
			entry.Reason, issuer, appealURL)
	}
	return fmt.Sprintf("You are banned from this server.\nReason: %s\nBanned by: %s\nExpires: %s (%s remaining)\nAppeal at: %s",
		entry.Reason, issuer, timeutil.FormatDate(entry.ExpiresAtMs), timeutil.FormatDurationShort(entry.ExpiresAtMs-timeutil.Now()), appealURL)
}

// muteNotice renders the chat message telling a player they were muted.
func muteNotice(p *models.Punishment) string {
	if p.IsPermanent() {
		return fmt.Sprintf("You have been permanently muted by %s.\nReason: %s", p.StaffName, p.Reason)
	}
	return fmt.Sprintf("You have been muted by %s for %s.\nReason: %s",
		p.StaffName, timeutil.FormatDuration(p.DurationMs), p.Reason)
}

// MuteDeniedMessage renders the reminder shown when a muted player tries to chat.
func MuteDeniedMessage(p *models.Punishment) string {
	if p.IsPermanent() {
		return "You are permanently muted."
	}
	return fmt.Sprintf("You are muted for another %s.", timeutil.FormatDurationShort(p.ExpiresAt-timeutil.Now()))
}
