package models

import (
	"testing"
	"time"
)

func TestNewPunishmentDerivesExpiration(t *testing.T) {
	before := time.Now().UnixMilli()
	p := NewPunishment("uuid-1", "Player1", "uuid-2", "Staff1", KindTempBan, "cheating", 3_600_000, "main")
	after := time.Now().UnixMilli()

	if p.IssuedAt < before || p.IssuedAt > after {
		t.Fatalf("IssuedAt %d outside [%d, %d]", p.IssuedAt, before, after)
	}
	if p.ExpiresAt != p.IssuedAt+3_600_000 {
		t.Fatalf("expected ExpiresAt %d, got %d", p.IssuedAt+3_600_000, p.ExpiresAt)
	}
	if !p.Active {
		t.Fatal("new punishment should be active")
	}
	if p.IsPermanent() {
		t.Fatal("timed ban should not be permanent")
	}
}

func TestPermanentPunishmentNeverExpires(t *testing.T) {
	p := NewPunishment("uuid-1", "Player1", "uuid-2", "Staff1", KindBan, "cheating", PermanentDuration, "main")
	if p.ExpiresAt != PermanentDuration {
		t.Fatalf("expected ExpiresAt -1, got %d", p.ExpiresAt)
	}
	if !p.IsPermanent() {
		t.Fatal("permanent ban should report permanent")
	}
	if p.IsExpiredAt(p.IssuedAt + 1<<40) {
		t.Fatal("permanent ban should never expire")
	}
	if p.Remaining() >= 0 {
		t.Fatalf("permanent ban should report negative remaining, got %v", p.Remaining())
	}
}

func TestExpiryBoundary(t *testing.T) {
	durations := []int64{1, 1000, 3_600_000, 604_800_000}
	for _, d := range durations {
		p := NewPunishment("uuid-1", "Player1", "uuid-2", "Staff1", KindTempMute, "spam", d, "main")
		if p.IsExpiredAt(p.IssuedAt + d - 1) {
			t.Errorf("duration %d: expired one ms early", d)
		}
		if !p.IsExpiredAt(p.IssuedAt + d + 1) {
			t.Errorf("duration %d: not expired one ms late", d)
		}
	}
}

func TestInstantaneousKindsNeverExpire(t *testing.T) {
	kick := NewPunishment("uuid-1", "Player1", "uuid-2", "Staff1", KindKick, "afk", 0, "main")
	if kick.IsExpiredAt(kick.IssuedAt + 1<<40) {
		t.Fatal("kick should never report expired")
	}
	if kick.Kind.HasOngoingEffect() {
		t.Fatal("kick has no ongoing effect")
	}
	warn := NewPunishment("uuid-1", "Player1", "uuid-2", "Staff1", KindWarn, "language", 0, "main")
	if !warn.Active {
		t.Fatal("warning row defaults active for counting")
	}
	if warn.Kind.HasOngoingEffect() {
		t.Fatal("warning has no ongoing effect")
	}
}

func TestCategoryKindsAreTotal(t *testing.T) {
	banKinds := CategoryBan.Kinds()
	muteKinds := CategoryMute.Kinds()
	if len(banKinds) != 2 || banKinds[0] != KindBan || banKinds[1] != KindTempBan {
		t.Fatalf("unexpected ban kinds: %v", banKinds)
	}
	if len(muteKinds) != 2 || muteKinds[0] != KindMute || muteKinds[1] != KindTempMute {
		t.Fatalf("unexpected mute kinds: %v", muteKinds)
	}
}

func TestParseKindRejectsUnknown(t *testing.T) {
	if _, err := ParseKind("BANHAMMER"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	k, err := ParseKind("TEMP_MUTE")
	if err != nil {
		t.Fatalf("ParseKind returned error: %v", err)
	}
	if k != KindTempMute {
		t.Fatalf("expected TEMP_MUTE, got %s", k)
	}
}

func TestBroadcastKeyTotal(t *testing.T) {
	kinds := []Kind{KindBan, KindTempBan, KindMute, KindTempMute, KindKick, KindWarn}
	for _, k := range kinds {
		if k.BroadcastKey() == "" {
			t.Errorf("kind %s has empty broadcast key", k)
		}
	}
}
