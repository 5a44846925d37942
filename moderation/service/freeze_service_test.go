package service

import (
	"context"
	"testing"

	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
)

type freezeFixture struct {
	svc        *FreezeService
	issuer     *fakeIssuer
	presence   *fakePresence
	effects    *fakeEffects
	locator    *fakeLocator
	sink       *fakeSink
	dispatcher *live.Dispatcher
}

func newFreezeFixture(t *testing.T, online ...string) *freezeFixture {
	t.Helper()
	f := &freezeFixture{
		issuer:     &fakeIssuer{},
		presence:   newFakePresence(online...),
		effects:    &fakeEffects{},
		locator:    &fakeLocator{},
		sink:       &fakeSink{},
		dispatcher: live.NewDispatcher(64),
	}
	f.dispatcher.Start()
	t.Cleanup(f.dispatcher.Stop)
	f.svc = NewFreezeService(testConfig(), f.issuer, f.presence, f.dispatcher, f.effects, f.locator, f.sink)
	return f
}

var (
	frozenPlayer = live.PlayerRef{UUID: "player-1", Name: "Steve"}
	freezeStaff  = live.PlayerRef{UUID: "staff-1", Name: "Alex"}
	freezeSpot   = live.Location{World: "overworld", X: 10.5, Y: 64, Z: -3.2}
)

func TestFreezeUnfreezeLifecycle(t *testing.T) {
	f := newFreezeFixture(t)
	ctx := context.Background()

	if f.svc.IsFrozen(frozenPlayer.UUID) {
		t.Fatal("player frozen before any freeze")
	}
	if err := f.svc.Freeze(ctx, frozenPlayer, freezeStaff, freezeSpot); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}
	if !f.svc.IsFrozen(frozenPlayer.UUID) {
		t.Fatal("player not frozen after Freeze")
	}
	if staff, ok := f.svc.FrozenBy(frozenPlayer.UUID); !ok || staff.UUID != freezeStaff.UUID {
		t.Fatalf("FrozenBy = (%v, %v), want the freezing staff", staff, ok)
	}

	// Freezing again fails and keeps the original attribution.
	if err := f.svc.Freeze(ctx, frozenPlayer, live.PlayerRef{UUID: "staff-2", Name: "Mallory"}, freezeSpot); err == nil {
		t.Fatal("double freeze succeeded")
	}
	if staff, _ := f.svc.FrozenBy(frozenPlayer.UUID); staff.UUID != freezeStaff.UUID {
		t.Fatalf("double freeze replaced attribution: %v", staff)
	}

	if !f.svc.Unfreeze(ctx, frozenPlayer.UUID, freezeStaff) {
		t.Fatal("Unfreeze reported the player was not frozen")
	}
	if f.svc.IsFrozen(frozenPlayer.UUID) {
		t.Fatal("player still frozen after Unfreeze")
	}
	if f.svc.Unfreeze(ctx, frozenPlayer.UUID, freezeStaff) {
		t.Fatal("second Unfreeze reported a change")
	}
	if f.sink.freezes != 1 || f.sink.unfreeze != 1 {
		t.Errorf("sink saw %d freezes and %d unfreezes, want 1 and 1", f.sink.freezes, f.sink.unfreeze)
	}
}

func TestToggleFreeze(t *testing.T) {
	f := newFreezeFixture(t)
	ctx := context.Background()

	frozen, err := f.svc.Toggle(ctx, frozenPlayer, freezeStaff, freezeSpot)
	if err != nil || !frozen {
		t.Fatalf("first Toggle = (%v, %v), want (true, nil)", frozen, err)
	}
	frozen, err = f.svc.Toggle(ctx, frozenPlayer, freezeStaff, freezeSpot)
	if err != nil || frozen {
		t.Fatalf("second Toggle = (%v, %v), want (false, nil)", frozen, err)
	}
}

func TestCheckMove(t *testing.T) {
	f := newFreezeFixture(t)
	ctx := context.Background()

	// Unfrozen players move freely.
	if !f.svc.CheckMove(frozenPlayer.UUID, live.Location{World: "overworld", X: 100}) {
		t.Fatal("unfrozen player denied movement")
	}

	if err := f.svc.Freeze(ctx, frozenPlayer, freezeStaff, freezeSpot); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}

	// Sub-block movement and looking around stay allowed.
	within := freezeSpot
	within.X += 0.3
	within.Yaw = 90
	if !f.svc.CheckMove(frozenPlayer.UUID, within) {
		t.Fatal("movement within the freeze block denied")
	}

	// Leaving the block is denied and snaps the player back.
	outside := freezeSpot
	outside.X += 2
	if f.svc.CheckMove(frozenPlayer.UUID, outside) {
		t.Fatal("frozen player allowed to leave the block")
	}
	flush(f.dispatcher)
	if f.effects.teleportCount() != 1 {
		t.Fatalf("teleports = %d, want 1 snapback", f.effects.teleportCount())
	}

	// A different world is a different block even at the same coordinates.
	otherWorld := freezeSpot
	otherWorld.World = "nether"
	if f.svc.CheckMove(frozenPlayer.UUID, otherWorld) {
		t.Fatal("frozen player allowed to change world")
	}
}

func TestCanUseCommand(t *testing.T) {
	f := newFreezeFixture(t)
	ctx := context.Background()

	if !f.svc.CanUseCommand(frozenPlayer.UUID, "/home") {
		t.Fatal("unfrozen player denied a command")
	}

	if err := f.svc.Freeze(ctx, frozenPlayer, freezeStaff, freezeSpot); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}

	cases := []struct {
		command string
		want    bool
	}{
		{"/msg Alex help", true},
		{"/r sure", true},
		{"/helpop I was frozen", true},
		{"/home", false},
		{"/spawn", false},
		{"/message Alex", false}, // prefix match is on the allowed entry, not its stem
	}
	for _, tc := range cases {
		if got := f.svc.CanUseCommand(frozenPlayer.UUID, tc.command); got != tc.want {
			t.Errorf("CanUseCommand(%q) = %v, want %v", tc.command, got, tc.want)
		}
	}

	// With command blocking off everything passes.
	f.svc.cfg.FreezeBlockCommands = false
	if !f.svc.CanUseCommand(frozenPlayer.UUID, "/home") {
		t.Fatal("command denied with blocking disabled")
	}
}

func TestHandleLogoutEscalatesExactlyOnce(t *testing.T) {
	f := newFreezeFixture(t, freezeStaff.UUID)
	ctx := context.Background()

	if err := f.svc.Freeze(ctx, frozenPlayer, freezeStaff, freezeSpot); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}

	f.svc.HandleLogout(ctx, frozenPlayer.UUID)
	f.svc.HandleLogout(ctx, frozenPlayer.UUID) // duplicate quit event

	if len(f.issuer.reqs) != 1 {
		t.Fatalf("logout bans issued = %d, want exactly 1", len(f.issuer.reqs))
	}
	req := f.issuer.reqs[0]
	if req.Kind != models.KindTempBan {
		t.Errorf("logout ban kind = %s, want TEMP_BAN", req.Kind)
	}
	if req.Reason != "Logged out while frozen" {
		t.Errorf("logout ban reason = %q", req.Reason)
	}
	if req.StaffUUID != freezeStaff.UUID {
		t.Errorf("logout ban issuer = %s, want the online freezing staff %s", req.StaffUUID, freezeStaff.UUID)
	}
	if f.svc.IsFrozen(frozenPlayer.UUID) {
		t.Fatal("player still frozen after logout")
	}
}

func TestHandleLogoutIssuerFallback(t *testing.T) {
	// Freezing staff offline, another staff member online: attribution moves.
	f := newFreezeFixture(t)
	other := live.PlayerRef{UUID: "staff-2", Name: "Mallory"}
	f.locator.staff = []live.PlayerRef{other}
	ctx := context.Background()

	if err := f.svc.Freeze(ctx, frozenPlayer, freezeStaff, freezeSpot); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}
	f.svc.HandleLogout(ctx, frozenPlayer.UUID)

	if len(f.issuer.reqs) != 1 {
		t.Fatalf("logout bans issued = %d, want 1", len(f.issuer.reqs))
	}
	if f.issuer.reqs[0].StaffUUID != other.UUID {
		t.Errorf("issuer = %s, want fallback staff %s", f.issuer.reqs[0].StaffUUID, other.UUID)
	}

	// Nobody online at all: the original staff member is still the issuer.
	f2 := newFreezeFixture(t)
	if err := f2.svc.Freeze(ctx, frozenPlayer, freezeStaff, freezeSpot); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}
	f2.svc.HandleLogout(ctx, frozenPlayer.UUID)
	if len(f2.issuer.reqs) != 1 || f2.issuer.reqs[0].StaffUUID != freezeStaff.UUID {
		t.Fatalf("issuer with no staff online = %v, want the original staff", f2.issuer.reqs)
	}
}

func TestHandleLogoutDisabled(t *testing.T) {
	f := newFreezeFixture(t)
	f.svc.cfg.FreezeLogoutBanEnabled = false
	ctx := context.Background()

	if err := f.svc.Freeze(ctx, frozenPlayer, freezeStaff, freezeSpot); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}
	f.svc.HandleLogout(ctx, frozenPlayer.UUID)

	if len(f.issuer.reqs) != 0 {
		t.Fatalf("logout bans issued with escalation disabled = %d, want 0", len(f.issuer.reqs))
	}
	if f.svc.IsFrozen(frozenPlayer.UUID) {
		t.Fatal("freeze not cleared on logout with escalation disabled")
	}
}

func TestUnfreezeAll(t *testing.T) {
	f := newFreezeFixture(t)
	ctx := context.Background()

	players := []live.PlayerRef{
		{UUID: "player-1", Name: "Steve"},
		{UUID: "player-2", Name: "Ryn"},
	}
	for _, p := range players {
		if err := f.svc.Freeze(ctx, p, freezeStaff, freezeSpot); err != nil {
			t.Fatalf("Freeze(%s) returned error: %v", p.UUID, err)
		}
	}

	f.svc.UnfreezeAll()
	for _, p := range players {
		if f.svc.IsFrozen(p.UUID) {
			t.Errorf("player %s still frozen after UnfreezeAll", p.UUID)
		}
	}
	// No escalation happens on a shutdown thaw.
	if len(f.issuer.reqs) != 0 {
		t.Fatalf("UnfreezeAll issued %d punishments, want 0", len(f.issuer.reqs))
	}
}
