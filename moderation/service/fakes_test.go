package service

import (
	"context"
	"sync"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/store"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/config"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

func testConfig() *config.ModerationServiceConfig {
	return &config.ModerationServiceConfig{
		OriginServer:              "test",
		WarningThreshold:          3,
		WarningAction:             "TEMPBAN",
		WarningBanDurationMs:      timeutil.Day,
		AppealURL:                 "appeal.example.com",
		FreezeLogoutBanEnabled:    true,
		FreezeLogoutBanReason:     "Logged out while frozen",
		FreezeLogoutBanDurationMs: 7 * timeutil.Day,
		FreezeReminderInterval:    time.Hour,
		FreezeBlockCommands:       true,
		FreezeAllowedCommands:     []string{"/msg", "/r", "/helpop"},
	}
}

// fakeRecords is an in-memory PunishmentRecords with failure injection.
type fakeRecords struct {
	mu      sync.Mutex
	saved   []*models.Punishment
	saveErr error
}

func (f *fakeRecords) Save(ctx context.Context, p *models.Punishment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakeRecords) GetActive(ctx context.Context, playerUUID string, kinds []models.Kind) ([]*models.Punishment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nowMs := time.Now().UnixMilli()
	var out []*models.Punishment
	for i := len(f.saved) - 1; i >= 0; i-- {
		p := f.saved[i]
		if p.PlayerUUID != playerUUID || !p.Active || p.IsExpiredAt(nowMs) {
			continue
		}
		if len(kinds) > 0 && !kindIn(p.Kind, kinds) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRecords) History(ctx context.Context, playerUUID string) ([]*models.Punishment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Punishment
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].PlayerUUID == playerUUID {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

func (f *fakeRecords) CountActiveWarnings(ctx context.Context, playerUUID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, p := range f.saved {
		if p.PlayerUUID == playerUUID && p.Kind == models.KindWarn && p.Active {
			count++
		}
	}
	return count, nil
}

func (f *fakeRecords) DeactivateByPlayer(ctx context.Context, playerUUID string, kinds []models.Kind) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := false
	for _, p := range f.saved {
		if p.PlayerUUID == playerUUID && p.Active && (len(kinds) == 0 || kindIn(p.Kind, kinds)) {
			p.Active = false
			changed = true
		}
	}
	return changed, nil
}

func (f *fakeRecords) byKind(kind models.Kind) []*models.Punishment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Punishment
	for _, p := range f.saved {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func kindIn(kind models.Kind, kinds []models.Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// fakeBans is an in-memory BanList.
type fakeBans struct {
	mu      sync.Mutex
	entries map[string]*store.BanEntry
}

func newFakeBans() *fakeBans {
	return &fakeBans{entries: make(map[string]*store.BanEntry)}
}

func (f *fakeBans) RegisterBan(ctx context.Context, playerUUID, reason, staffName string, expiresAtMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[playerUUID] = &store.BanEntry{
		PlayerUUID:  playerUUID,
		Reason:      reason,
		StaffName:   staffName,
		ExpiresAtMs: expiresAtMs,
	}
	return nil
}

func (f *fakeBans) RemoveBan(ctx context.Context, playerUUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[playerUUID]
	delete(f.entries, playerUUID)
	return ok, nil
}

func (f *fakeBans) GetBan(ctx context.Context, playerUUID string) (*store.BanEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[playerUUID], nil
}

// fakePresence tracks online players in memory.
type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence(online ...string) *fakePresence {
	f := &fakePresence{online: make(map[string]bool)}
	for _, uuid := range online {
		f.online[uuid] = true
	}
	return f
}

func (f *fakePresence) SetPlayerOnline(ctx context.Context, playerUUID string, sessionStart time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[playerUUID] = true
	return nil
}

func (f *fakePresence) IsPlayerOnline(ctx context.Context, playerUUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[playerUUID], nil
}

func (f *fakePresence) RemovePlayerOnline(ctx context.Context, playerUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.online, playerUUID)
	return nil
}

// fakeEffects records every live-world call.
type fakeEffects struct {
	mu          sync.Mutex
	disconnects []string
	messages    []string
	teleports   []live.Location
	snapshots   int
	snapshot    live.Loadout
	snapshotErr error
	applied     []live.Loadout
	gameModes   []live.GameMode
	flights     []bool
	kits        int
}

func (f *fakeEffects) Disconnect(ctx context.Context, player live.PlayerRef, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, player.UUID+": "+message)
	return nil
}

func (f *fakeEffects) SendMessage(ctx context.Context, player live.PlayerRef, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, player.UUID+": "+message)
	return nil
}

func (f *fakeEffects) Teleport(ctx context.Context, player live.PlayerRef, loc live.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teleports = append(f.teleports, loc)
	return nil
}

func (f *fakeEffects) SnapshotLoadout(ctx context.Context, player live.PlayerRef) (live.Loadout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return live.Loadout{}, f.snapshotErr
	}
	f.snapshots++
	return f.snapshot, nil
}

func (f *fakeEffects) ApplyLoadout(ctx context.Context, player live.PlayerRef, loadout live.Loadout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, loadout)
	return nil
}

func (f *fakeEffects) SetGameMode(ctx context.Context, player live.PlayerRef, mode live.GameMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameModes = append(f.gameModes, mode)
	return nil
}

func (f *fakeEffects) SetFlight(ctx context.Context, player live.PlayerRef, allow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flights = append(f.flights, allow)
	return nil
}

func (f *fakeEffects) GiveStaffKit(ctx context.Context, player live.PlayerRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kits++
	return nil
}

func (f *fakeEffects) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.disconnects)
}

func (f *fakeEffects) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeEffects) teleportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.teleports)
}

// fakeSink counts lifecycle events.
type fakeSink struct {
	mu       sync.Mutex
	issued   []*models.Punishment
	revoked  int
	freezes  int
	unfreeze int
}

func (f *fakeSink) PunishmentIssued(p *models.Punishment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, p)
}

func (f *fakeSink) PunishmentRevoked(category models.Category, playerUUID, staffName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked++
}

func (f *fakeSink) FreezeToggled(playerUUID, playerName, staffName string, frozen bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if frozen {
		f.freezes++
	} else {
		f.unfreeze++
	}
}

// fakeLocator serves a fixed online staff list.
type fakeLocator struct {
	staff []live.PlayerRef
}

func (f *fakeLocator) OnlineStaff() []live.PlayerRef {
	return f.staff
}

// fakeIssuer records escalation requests without side effects.
type fakeIssuer struct {
	mu   sync.Mutex
	reqs []IssueRequest
	err  error
}

func (f *fakeIssuer) Issue(ctx context.Context, req IssueRequest) (*models.Punishment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.reqs = append(f.reqs, req)
	return models.NewPunishment(req.PlayerUUID, req.PlayerName, req.StaffUUID, req.StaffName,
		req.Kind, req.Reason, req.DurationMs, "test"), nil
}

// flush waits until every effect queued so far has executed, by riding the
// dispatcher's FIFO ordering.
func flush(d *live.Dispatcher) {
	_ = d.Call(context.Background(), "flush", func(ctx context.Context) error { return nil })
}
