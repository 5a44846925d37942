// shared/models/punishment.go
package models

import (
	"fmt"
	"time"
)

// Kind identifies the type of a punishment record.
type Kind string

const (
	KindBan      Kind = "BAN"
	KindTempBan  Kind = "TEMP_BAN"
	KindMute     Kind = "MUTE"
	KindTempMute Kind = "TEMP_MUTE"
	KindKick     Kind = "KICK"
	KindWarn     Kind = "WARN"
)

// PermanentDuration is the sentinel duration for punishments that never expire.
const PermanentDuration int64 = -1

// ParseKind converts a stored or user-supplied kind string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBan, KindTempBan, KindMute, KindTempMute, KindKick, KindWarn:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown punishment kind %q", s)
}

// BroadcastKey returns the staff-notification message key for this kind.
// The mapping is total over all kinds.
func (k Kind) BroadcastKey() string {
	switch k {
	case KindBan, KindTempBan:
		return "ban.broadcast"
	case KindMute, KindTempMute:
		return "mute.broadcast"
	case KindKick:
		return "kick.broadcast"
	case KindWarn:
		return "warn.broadcast"
	default:
		return "punishment.broadcast"
	}
}

// HasOngoingEffect reports whether this kind keeps enforcing after issue.
// Kicks and warnings are instantaneous: their rows stay active for counting,
// but they never block a player later on.
func (k Kind) HasOngoingEffect() bool {
	switch k {
	case KindBan, KindTempBan, KindMute, KindTempMute:
		return true
	default:
		return false
	}
}

// Category groups punishment kinds for revocation and active-status queries.
type Category string

const (
	CategoryBan  Category = "ban"
	CategoryMute Category = "mute"
)

// ParseCategory converts a user-supplied category string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryBan, CategoryMute:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown punishment category %q", s)
}

// Kinds returns the punishment kinds belonging to this category.
func (c Category) Kinds() []Kind {
	switch c {
	case CategoryBan:
		return []Kind{KindBan, KindTempBan}
	case CategoryMute:
		return []Kind{KindMute, KindTempMute}
	default:
		return nil
	}
}

// Punishment is a persisted moderation action. It is immutable after
// creation except for the Active flag, which is cleared on revocation or
// lazily once the record is read past its expiry.
type Punishment struct {
	ID         string `bson:"_id,omitempty" json:"id"`
	PlayerUUID string `bson:"player_uuid" json:"playerUuid"`
	PlayerName string `bson:"player_name" json:"playerName"`
	StaffUUID  string `bson:"staff_uuid" json:"staffUuid"`
	StaffName  string `bson:"staff_name" json:"staffName"`
	Kind       Kind   `bson:"type" json:"kind"`
	Reason     string `bson:"reason" json:"reason"`
	IssuedAt   int64  `bson:"issued_at" json:"issuedAt"`   // ms since epoch
	DurationMs int64  `bson:"duration" json:"durationMs"`  // -1 permanent, 0 instantaneous
	ExpiresAt  int64  `bson:"expiration" json:"expiresAt"` // -1 permanent, derived once at creation
	Active     bool   `bson:"active" json:"active"`
	Server     string `bson:"server" json:"server"`
}

// NewPunishment constructs a punishment record issued now. ExpiresAt is
// derived exactly once here and never recomputed.
func NewPunishment(playerUUID, playerName, staffUUID, staffName string, kind Kind, reason string, durationMs int64, server string) *Punishment {
	now := time.Now().UnixMilli()
	expiresAt := PermanentDuration
	if durationMs != PermanentDuration {
		expiresAt = now + durationMs
	}
	return &Punishment{
		PlayerUUID: playerUUID,
		PlayerName: playerName,
		StaffUUID:  staffUUID,
		StaffName:  staffName,
		Kind:       kind,
		Reason:     reason,
		IssuedAt:   now,
		DurationMs: durationMs,
		ExpiresAt:  expiresAt,
		Active:     true,
		Server:     server,
	}
}

// IsPermanent reports whether the punishment never expires on its own.
func (p *Punishment) IsPermanent() bool {
	return p.DurationMs == PermanentDuration
}

// IsExpired reports whether the punishment has run out as of now. It is a
// pure function of DurationMs, ExpiresAt and the clock; expiry is never
// persisted as its own flag.
func (p *Punishment) IsExpired() bool {
	return p.IsExpiredAt(time.Now().UnixMilli())
}

// IsExpiredAt reports whether the punishment has run out as of the given
// millisecond timestamp. Permanent and instantaneous punishments never
// expire.
func (p *Punishment) IsExpiredAt(nowMs int64) bool {
	if p.DurationMs <= 0 {
		return false
	}
	return nowMs > p.ExpiresAt
}

// Remaining returns the time left on the punishment, -1ms for permanent
// ones and 0 once expired.
func (p *Punishment) Remaining() time.Duration {
	if p.IsPermanent() {
		return -time.Millisecond
	}
	remaining := p.ExpiresAt - time.Now().UnixMilli()
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining) * time.Millisecond
}
