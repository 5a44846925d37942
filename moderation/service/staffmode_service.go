// moderation/service/staffmode_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
)

// StaffProfiles is the persistence surface for staff identity. Implemented by
// store.StaffStore.
type StaffProfiles interface {
	EnsureProfile(ctx context.Context, staffUUID, name string) (*models.StaffProfile, error)
	UpdateLastLogin(ctx context.Context, staffUUID string) error
	IsStaff(ctx context.Context, playerUUID string) (bool, error)
}

// staffSession holds what a staff member gave up entering staff mode.
type staffSession struct {
	Staff   live.PlayerRef
	Loadout live.Loadout
}

// StaffModeService manages staff mode sessions: entering swaps the staff
// member's loadout for the staff kit, leaving restores it. Sessions do not
// stack; entering twice is an error and the first snapshot is preserved.
type StaffModeService struct {
	profiles   StaffProfiles
	dispatcher *live.Dispatcher
	effects    live.Effects

	mu        sync.Mutex
	sessions  map[string]*staffSession
	staffChat map[string]bool
}

// NewStaffModeService creates a StaffModeService.
func NewStaffModeService(profiles StaffProfiles, dispatcher *live.Dispatcher, effects live.Effects) *StaffModeService {
	return &StaffModeService{
		profiles:   profiles,
		dispatcher: dispatcher,
		effects:    effects,
		sessions:   make(map[string]*staffSession),
		staffChat:  make(map[string]bool),
	}
}

// HandleStaffLogin upserts the staff profile and stamps their login time.
func (sm *StaffModeService) HandleStaffLogin(ctx context.Context, staff live.PlayerRef) (*models.StaffProfile, error) {
	profile, err := sm.profiles.EnsureProfile(ctx, staff.UUID, staff.Name)
	if err != nil {
		return nil, err
	}
	if err := sm.profiles.UpdateLastLogin(ctx, staff.UUID); err != nil {
		log.Printf("WARN: Failed to stamp last login for staff %s: %v", staff.UUID, err)
	}
	return profile, nil
}

// IsStaff reports whether the player has a staff profile.
func (sm *StaffModeService) IsStaff(ctx context.Context, playerUUID string) (bool, error) {
	return sm.profiles.IsStaff(ctx, playerUUID)
}

// EnableStaffMode snapshots the staff member's loadout and equips the staff
// kit. The snapshot, kit, game mode and flight changes run as one dispatcher
// call so no chat or movement event can observe a half-entered staff mode.
func (sm *StaffModeService) EnableStaffMode(ctx context.Context, staff live.PlayerRef) error {
	sm.mu.Lock()
	if _, exists := sm.sessions[staff.UUID]; exists {
		sm.mu.Unlock()
		return fmt.Errorf("staff member %s is already in staff mode", staff.UUID)
	}
	// Reserve the slot before touching the game world so a second enable
	// racing this one fails fast instead of double-snapshotting.
	sm.sessions[staff.UUID] = &staffSession{Staff: staff}
	sm.mu.Unlock()

	var loadout live.Loadout
	err := sm.dispatcher.Call(ctx, "staffmode-enable", func(ctx context.Context) error {
		var serr error
		loadout, serr = sm.effects.SnapshotLoadout(ctx, staff)
		if serr != nil {
			return serr
		}
		if serr := sm.effects.GiveStaffKit(ctx, staff); serr != nil {
			return serr
		}
		if serr := sm.effects.SetGameMode(ctx, staff, live.GameModeCreative); serr != nil {
			return serr
		}
		return sm.effects.SetFlight(ctx, staff, true)
	})
	if err != nil {
		sm.mu.Lock()
		delete(sm.sessions, staff.UUID)
		sm.mu.Unlock()
		return fmt.Errorf("failed to enter staff mode for %s: %w", staff.UUID, err)
	}

	sm.mu.Lock()
	if session, ok := sm.sessions[staff.UUID]; ok {
		session.Loadout = loadout
	}
	sm.mu.Unlock()

	log.Printf("INFO: Staff member %s (%s) entered staff mode", staff.Name, staff.UUID)
	return nil
}

// DisableStaffMode restores the loadout snapshotted on enable. Returns an
// error if the staff member is not in staff mode.
func (sm *StaffModeService) DisableStaffMode(ctx context.Context, staff live.PlayerRef) error {
	sm.mu.Lock()
	session, exists := sm.sessions[staff.UUID]
	if exists {
		delete(sm.sessions, staff.UUID)
	}
	sm.mu.Unlock()
	if !exists {
		return fmt.Errorf("staff member %s is not in staff mode", staff.UUID)
	}

	loadout := session.Loadout
	err := sm.dispatcher.Call(ctx, "staffmode-disable", func(ctx context.Context) error {
		if serr := sm.effects.ApplyLoadout(ctx, staff, loadout); serr != nil {
			return serr
		}
		if !loadout.AllowFlight && !loadout.GameMode.AllowsFlight() {
			return sm.effects.SetFlight(ctx, staff, false)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to leave staff mode for %s: %w", staff.UUID, err)
	}

	log.Printf("INFO: Staff member %s (%s) left staff mode", staff.Name, staff.UUID)
	return nil
}

// ToggleStaffMode flips staff mode, returning the new state.
func (sm *StaffModeService) ToggleStaffMode(ctx context.Context, staff live.PlayerRef) (bool, error) {
	if sm.IsInStaffMode(staff.UUID) {
		return false, sm.DisableStaffMode(ctx, staff)
	}
	return true, sm.EnableStaffMode(ctx, staff)
}

// IsInStaffMode reports whether the staff member has an active session.
func (sm *StaffModeService) IsInStaffMode(staffUUID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, ok := sm.sessions[staffUUID]
	return ok
}

// ToggleStaffChat flips the staff member's staff-chat routing and returns the
// new state. When on, their chat messages go to the staff channel instead of
// global chat.
func (sm *StaffModeService) ToggleStaffChat(staffUUID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.staffChat[staffUUID] = !sm.staffChat[staffUUID]
	return sm.staffChat[staffUUID]
}

// IsStaffChatEnabled reports whether the staff member's chat routes to the
// staff channel.
func (sm *StaffModeService) IsStaffChatEnabled(staffUUID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.staffChat[staffUUID]
}

// HandleQuit cleans up the staff member's session state on disconnect. The
// loadout restore is queued best effort so a staff member who logs out in
// staff mode gets their items back before the game server persists them.
func (sm *StaffModeService) HandleQuit(staffUUID string) {
	sm.mu.Lock()
	session, exists := sm.sessions[staffUUID]
	if exists {
		delete(sm.sessions, staffUUID)
	}
	delete(sm.staffChat, staffUUID)
	sm.mu.Unlock()
	if !exists {
		return
	}

	staff, loadout := session.Staff, session.Loadout
	if qerr := sm.dispatcher.Async("staffmode-quit-restore", func(ctx context.Context) error {
		return sm.effects.ApplyLoadout(ctx, staff, loadout)
	}); qerr != nil {
		log.Printf("WARN: Loadout restore for quitting staff %s not queued: %v", staffUUID, qerr)
	}
}
