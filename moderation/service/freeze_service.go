// moderation/service/freeze_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/config"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
)

// punishmentIssuer is the slice of PunishmentService the freeze engine needs
// for logout escalation.
type punishmentIssuer interface {
	Issue(ctx context.Context, req IssueRequest) (*models.Punishment, error)
}

// StaffLocator reports which staff members currently have a live session.
// Implemented by the notify hub; used to pick a fallback issuer for logout
// bans when the freezing staff member has since gone offline.
type StaffLocator interface {
	OnlineStaff() []live.PlayerRef
}

// freezeState is everything remembered about one frozen player.
type freezeState struct {
	Player   live.PlayerRef
	Staff    live.PlayerRef
	Location live.Location
	FrozenAt time.Time
}

// FreezeService pins players in place during staff investigations. Frozen
// state is in-memory only: it describes the current live session, and a
// service restart simply thaws everyone.
type FreezeService struct {
	cfg         *config.ModerationServiceConfig
	punishments punishmentIssuer
	presence    Presence
	dispatcher  *live.Dispatcher
	effects     live.Effects
	staff       StaffLocator
	sinks       []EventSink

	mu     sync.Mutex
	frozen map[string]*freezeState

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewFreezeService creates a FreezeService. staff may be nil, in which case
// logout bans always fall back to the original freezing staff member.
func NewFreezeService(
	cfg *config.ModerationServiceConfig,
	punishments punishmentIssuer,
	presence Presence,
	dispatcher *live.Dispatcher,
	effects live.Effects,
	staff StaffLocator,
	sinks ...EventSink,
) *FreezeService {
	return &FreezeService{
		cfg:         cfg,
		punishments: punishments,
		presence:    presence,
		dispatcher:  dispatcher,
		effects:     effects,
		staff:       staff,
		sinks:       sinks,
		frozen:      make(map[string]*freezeState),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start launches the reminder loop that keeps nagging frozen players.
func (fs *FreezeService) Start() {
	log.Printf("INFO: Freeze reminder loop starting (interval: %v)", fs.cfg.FreezeReminderInterval)
	go fs.run()
}

// Stop halts the reminder loop and waits for it to exit.
func (fs *FreezeService) Stop() {
	close(fs.stopChan)
	<-fs.doneChan
	log.Println("INFO: Freeze reminder loop stopped.")
}

func (fs *FreezeService) run() {
	defer close(fs.doneChan)
	ticker := time.NewTicker(fs.cfg.FreezeReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fs.remindFrozen()
		case <-fs.stopChan:
			return
		}
	}
}

// remindFrozen sends the freeze reminder to every frozen player still online.
func (fs *FreezeService) remindFrozen() {
	fs.mu.Lock()
	players := make([]live.PlayerRef, 0, len(fs.frozen))
	for _, state := range fs.frozen {
		players = append(players, state.Player)
	}
	fs.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for _, player := range players {
		online, err := fs.presence.IsPlayerOnline(ctx, player.UUID)
		if err != nil {
			log.Printf("WARN: Freeze reminder presence check for %s failed: %v", player.UUID, err)
			continue
		}
		if !online {
			continue
		}
		player := player
		if qerr := fs.dispatcher.Async("freeze-reminder", func(ctx context.Context) error {
			return fs.effects.SendMessage(ctx, player, freezeReminderMessage())
		}); qerr != nil {
			log.Printf("WARN: Freeze reminder for %s not queued: %v", player.UUID, qerr)
		}
	}
}

// Freeze pins the player at their current location. Freezing an already
// frozen player is an error; the original freeze (and its staff attribution)
// stands.
func (fs *FreezeService) Freeze(ctx context.Context, player, staff live.PlayerRef, loc live.Location) error {
	fs.mu.Lock()
	if _, exists := fs.frozen[player.UUID]; exists {
		fs.mu.Unlock()
		return fmt.Errorf("player %s is already frozen", player.UUID)
	}
	fs.frozen[player.UUID] = &freezeState{
		Player:   player,
		Staff:    staff,
		Location: loc,
		FrozenAt: time.Now(),
	}
	fs.mu.Unlock()

	if qerr := fs.dispatcher.Async("freeze-notice", func(ctx context.Context) error {
		return fs.effects.SendMessage(ctx, player, freezeNoticeMessage(staff.Name))
	}); qerr != nil {
		log.Printf("WARN: Freeze notice for %s not queued: %v", player.UUID, qerr)
	}

	for _, sink := range fs.sinks {
		sink.FreezeToggled(player.UUID, player.Name, staff.Name, true)
	}
	log.Printf("INFO: Player %s (%s) frozen by %s", player.Name, player.UUID, staff.Name)
	return nil
}

// Unfreeze releases the player. Returns false if they were not frozen.
func (fs *FreezeService) Unfreeze(ctx context.Context, playerUUID string, staff live.PlayerRef) bool {
	fs.mu.Lock()
	state, exists := fs.frozen[playerUUID]
	if exists {
		delete(fs.frozen, playerUUID)
	}
	fs.mu.Unlock()
	if !exists {
		return false
	}

	player := state.Player
	if qerr := fs.dispatcher.Async("unfreeze-notice", func(ctx context.Context) error {
		return fs.effects.SendMessage(ctx, player, "You have been unfrozen. You may move again.")
	}); qerr != nil {
		log.Printf("WARN: Unfreeze notice for %s not queued: %v", playerUUID, qerr)
	}

	for _, sink := range fs.sinks {
		sink.FreezeToggled(player.UUID, player.Name, staff.Name, false)
	}
	log.Printf("INFO: Player %s (%s) unfrozen by %s", player.Name, player.UUID, staff.Name)
	return true
}

// Toggle freezes the player if thawed and unfreezes them if frozen,
// returning the new frozen state.
func (fs *FreezeService) Toggle(ctx context.Context, player, staff live.PlayerRef, loc live.Location) (bool, error) {
	if fs.Unfreeze(ctx, player.UUID, staff) {
		return false, nil
	}
	if err := fs.Freeze(ctx, player, staff, loc); err != nil {
		return false, err
	}
	return true, nil
}

// IsFrozen reports whether the player is currently frozen.
func (fs *FreezeService) IsFrozen(playerUUID string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.frozen[playerUUID]
	return ok
}

// FrozenBy returns the staff member who froze the player.
func (fs *FreezeService) FrozenBy(playerUUID string) (live.PlayerRef, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	state, ok := fs.frozen[playerUUID]
	if !ok {
		return live.PlayerRef{}, false
	}
	return state.Staff, true
}

// FreezeLocation returns the location the player is pinned to.
func (fs *FreezeService) FreezeLocation(playerUUID string) (live.Location, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	state, ok := fs.frozen[playerUUID]
	if !ok {
		return live.Location{}, false
	}
	return state.Location, true
}

// CheckMove decides whether a frozen player's movement is allowed. Looking
// around and shifting within the freeze block is fine; leaving the block is
// denied and the player is teleported back.
func (fs *FreezeService) CheckMove(playerUUID string, to live.Location) bool {
	fs.mu.Lock()
	state, ok := fs.frozen[playerUUID]
	fs.mu.Unlock()
	if !ok {
		return true
	}
	if state.Location.SameBlock(to) {
		return true
	}

	player, back := state.Player, state.Location
	if qerr := fs.dispatcher.Async("freeze-snapback", func(ctx context.Context) error {
		return fs.effects.Teleport(ctx, player, back)
	}); qerr != nil {
		log.Printf("WARN: Freeze snapback for %s not queued: %v", playerUUID, qerr)
	}
	return false
}

// CanUseCommand decides whether a frozen player may run the given command.
// Non-frozen players are never restricted here. The allow-list matches the
// command word, so "/msg someone hi" passes under an allowed "/msg" but
// "/message" does not.
func (fs *FreezeService) CanUseCommand(playerUUID, command string) bool {
	if !fs.IsFrozen(playerUUID) {
		return true
	}
	if !fs.cfg.FreezeBlockCommands {
		return true
	}
	for _, allowed := range fs.cfg.FreezeAllowedCommands {
		if command == allowed || strings.HasPrefix(command, allowed+" ") {
			return true
		}
	}
	return false
}

// HandleLogout escalates a disconnect-while-frozen into a temp-ban, exactly
// once per freeze: the frozen entry is removed in the same critical section
// that decides to escalate, so a duplicate quit event finds nothing to act on.
func (fs *FreezeService) HandleLogout(ctx context.Context, playerUUID string) {
	fs.mu.Lock()
	state, exists := fs.frozen[playerUUID]
	if exists {
		delete(fs.frozen, playerUUID)
	}
	fs.mu.Unlock()
	if !exists {
		return
	}

	if !fs.cfg.FreezeLogoutBanEnabled {
		log.Printf("INFO: Player %s logged out while frozen; logout ban disabled, freeze cleared.", playerUUID)
		return
	}

	issuer := fs.logoutBanIssuer(ctx, state)
	req := IssueRequest{
		PlayerUUID: state.Player.UUID,
		PlayerName: state.Player.Name,
		StaffUUID:  issuer.UUID,
		StaffName:  issuer.Name,
		Kind:       models.KindTempBan,
		Reason:     fs.cfg.FreezeLogoutBanReason,
		DurationMs: fs.cfg.FreezeLogoutBanDurationMs,
	}
	if _, err := fs.punishments.Issue(ctx, req); err != nil {
		log.Printf("ERROR: Failed to ban player %s for logging out while frozen: %v", playerUUID, err)
		return
	}
	log.Printf("INFO: Player %s banned for logging out while frozen (issuer: %s)", playerUUID, issuer.Name)
}

// logoutBanIssuer picks who the logout ban is attributed to: the staff member
// who froze the player if still online, otherwise any online staff member,
// otherwise the original staff member regardless.
func (fs *FreezeService) logoutBanIssuer(ctx context.Context, state *freezeState) live.PlayerRef {
	online, err := fs.presence.IsPlayerOnline(ctx, state.Staff.UUID)
	if err != nil {
		log.Printf("WARN: Presence check for freezing staff %s failed: %v", state.Staff.UUID, err)
	}
	if online {
		return state.Staff
	}
	if fs.staff != nil {
		if candidates := fs.staff.OnlineStaff(); len(candidates) > 0 {
			return candidates[0]
		}
	}
	return state.Staff
}

// UnfreezeAll thaws every frozen player without escalation. Called on
// shutdown so no one is left frozen against a dead service.
func (fs *FreezeService) UnfreezeAll() {
	fs.mu.Lock()
	states := make([]*freezeState, 0, len(fs.frozen))
	for _, state := range fs.frozen {
		states = append(states, state)
	}
	fs.frozen = make(map[string]*freezeState)
	fs.mu.Unlock()

	for _, state := range states {
		player := state.Player
		if qerr := fs.dispatcher.Async("unfreeze-all", func(ctx context.Context) error {
			return fs.effects.SendMessage(ctx, player, "You have been unfrozen. You may move again.")
		}); qerr != nil {
			log.Printf("WARN: Unfreeze notice for %s not queued: %v", player.UUID, qerr)
		}
	}
	if len(states) > 0 {
		log.Printf("INFO: Unfroze %d players on shutdown.", len(states))
	}
}

func freezeNoticeMessage(staffName string) string {
	return fmt.Sprintf("You have been frozen by %s.\nDo not log out or you will be banned.\nJoin our Discord to resolve this.", staffName)
}

func freezeReminderMessage() string {
	return "You are frozen. Do not log out or you will be banned."
}
