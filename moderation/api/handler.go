// moderation/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Ftotnem/MODERATION-SERVICE/moderation/cache"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/notify"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/service"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/syncer"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/api"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

// ModerationAPIHandlers holds references to the services that handle business
// logic for the moderation service.
type ModerationAPIHandlers struct {
	Punishments *service.PunishmentService
	Freeze      *service.FreezeService
	StaffMode   *service.StaffModeService
	Hub         *notify.Hub

	// Sync apply path: remote events warm these directly, bypassing the
	// punishment lifecycle (the record already exists upstream).
	Bans  service.BanList
	Mutes *cache.MuteCache
}

// NewModerationAPIHandlers is the constructor for the moderation API handlers.
func NewModerationAPIHandlers(
	punishments *service.PunishmentService,
	freeze *service.FreezeService,
	staffMode *service.StaffModeService,
	hub *notify.Hub,
	bans service.BanList,
	mutes *cache.MuteCache,
) *ModerationAPIHandlers {
	return &ModerationAPIHandlers{
		Punishments: punishments,
		Freeze:      freeze,
		StaffMode:   staffMode,
		Hub:         hub,
		Bans:        bans,
		Mutes:       mutes,
	}
}

// --- Request/Response DTOs ---

// PlayerRequest is the request body for endpoints that only need a player.
type PlayerRequest struct {
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`
}

// ChatRequest is the request body for the chat gate.
type ChatRequest struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ChatResponse tells the game server what to do with a chat line.
type ChatResponse struct {
	Allowed bool   `json:"allowed"`
	Channel string `json:"channel"` // "global" or "staff"
	Notice  string `json:"notice,omitempty"`
}

// CommandRequest is the request body for the command gate.
type CommandRequest struct {
	UUID    string `json:"uuid"`
	Command string `json:"command"`
}

// MoveRequest is the request body for the movement gate.
type MoveRequest struct {
	UUID string        `json:"uuid"`
	To   live.Location `json:"to"`
}

// AllowedResponse is the generic gate verdict.
type AllowedResponse struct {
	Allowed bool   `json:"allowed"`
	Notice  string `json:"notice,omitempty"`
}

// PunishRequest is the request body for issuing a punishment.
type PunishRequest struct {
	PlayerUUID string `json:"player_uuid"`
	PlayerName string `json:"player_name,omitempty"`
	StaffUUID  string `json:"staff_uuid"`
	StaffName  string `json:"staff_name"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
	Duration   string `json:"duration,omitempty"` // "7d", "2h30m", "perm"; empty for kicks and warnings
}

// RevokeRequest is the request body for lifting punishments.
type RevokeRequest struct {
	PlayerUUID string `json:"player_uuid"`
	Category   string `json:"category"` // "ban" or "mute"
	StaffName  string `json:"staff_name"`
}

// FreezeRequest is the request body for toggling a freeze.
type FreezeRequest struct {
	PlayerUUID string        `json:"player_uuid"`
	PlayerName string        `json:"player_name"`
	StaffUUID  string        `json:"staff_uuid"`
	StaffName  string        `json:"staff_name"`
	Location   live.Location `json:"location"`
}

// StaffRequest is the request body for staff mode and staff chat endpoints.
type StaffRequest struct {
	StaffUUID string `json:"staff_uuid"`
	StaffName string `json:"staff_name"`
	Message   string `json:"message,omitempty"`
}

// --- Handler methods ---

// HandleLogin decides whether a connecting player may join.
// POST /mod/login
// Body: { "uuid": "<player_uuid>" }
func (mah *ModerationAPIHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	playerUUID, err := uuid.Parse(req.UUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid UUID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	decision, err := mah.Punishments.CheckLogin(ctx, playerUUID.String())
	if err != nil {
		log.Printf("Error checking login for %s: %v", playerUUID.String(), err)
		api.WriteInternalServerError(w, "Failed to check login")
		return
	}
	api.WriteJSON(w, http.StatusOK, decision)
}

// HandleJoin records a completed join: presence, mute cache warmup, and staff
// bookkeeping for staff members.
// POST /mod/join
// Body: { "uuid": "<player_uuid>", "name": "<player_name>" }
func (mah *ModerationAPIHandlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	playerUUID, err := uuid.Parse(req.UUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid UUID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	player := live.PlayerRef{UUID: playerUUID.String(), Name: req.Name}
	if err := mah.Punishments.PlayerJoin(ctx, player); err != nil {
		log.Printf("Error handling join for %s: %v", playerUUID.String(), err)
		api.WriteInternalServerError(w, "Failed to record join")
		return
	}

	if isStaff, err := mah.StaffMode.IsStaff(ctx, player.UUID); err != nil {
		log.Printf("Error checking staff status for %s: %v", player.UUID, err)
	} else if isStaff {
		if _, err := mah.StaffMode.HandleStaffLogin(ctx, player); err != nil {
			log.Printf("Error recording staff login for %s: %v", player.UUID, err)
		}
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Join recorded", "uuid": player.UUID})
}

// HandleQuit records a disconnect. Quitting while frozen escalates.
// POST /mod/quit
// Body: { "uuid": "<player_uuid>" }
func (mah *ModerationAPIHandlers) HandleQuit(w http.ResponseWriter, r *http.Request) {
	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	playerUUID, err := uuid.Parse(req.UUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid UUID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Escalation first: it needs the presence key of the freezing staff
	// member, and must see the quit exactly as it happened.
	mah.Freeze.HandleLogout(ctx, playerUUID.String())
	mah.StaffMode.HandleQuit(playerUUID.String())

	if err := mah.Punishments.PlayerQuit(ctx, playerUUID.String()); err != nil {
		log.Printf("Error handling quit for %s: %v", playerUUID.String(), err)
		api.WriteInternalServerError(w, "Failed to record quit")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Quit recorded", "uuid": playerUUID.String()})
}

// HandleChat gates a chat line: staff chat routing first, then the mute check.
// POST /mod/chat
func (mah *ModerationAPIHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.UUID == "" {
		api.WriteBadRequest(w, "Player UUID is required")
		return
	}

	if mah.StaffMode.IsStaffChatEnabled(req.UUID) {
		mah.Hub.StaffChat(live.PlayerRef{UUID: req.UUID, Name: req.Name}, req.Message)
		api.WriteJSON(w, http.StatusOK, ChatResponse{Allowed: true, Channel: "staff"})
		return
	}

	if mute := mah.Punishments.CachedMute(req.UUID); mute != nil {
		api.WriteJSON(w, http.StatusOK, ChatResponse{
			Allowed: false,
			Channel: "global",
			Notice:  service.MuteDeniedMessage(mute),
		})
		return
	}

	api.WriteJSON(w, http.StatusOK, ChatResponse{Allowed: true, Channel: "global"})
}

// HandleCommand gates a command for frozen players.
// POST /mod/command
func (mah *ModerationAPIHandlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.UUID == "" || req.Command == "" {
		api.WriteBadRequest(w, "Player UUID and command are required")
		return
	}

	if mah.Freeze.CanUseCommand(req.UUID, req.Command) {
		api.WriteJSON(w, http.StatusOK, AllowedResponse{Allowed: true})
		return
	}
	api.WriteJSON(w, http.StatusOK, AllowedResponse{
		Allowed: false,
		Notice:  "You cannot use commands while frozen.",
	})
}

// HandleMove gates movement for frozen players.
// POST /mod/move
func (mah *ModerationAPIHandlers) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.UUID == "" {
		api.WriteBadRequest(w, "Player UUID is required")
		return
	}

	api.WriteJSON(w, http.StatusOK, AllowedResponse{Allowed: mah.Freeze.CheckMove(req.UUID, req.To)})
}

// HandlePunish issues a punishment.
// POST /mod/punish
func (mah *ModerationAPIHandlers) HandlePunish(w http.ResponseWriter, r *http.Request) {
	var req PunishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	playerUUID, err := uuid.Parse(req.PlayerUUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid player UUID format")
		return
	}
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}

	durationMs := int64(0)
	switch kind {
	case models.KindBan, models.KindMute:
		durationMs = models.PermanentDuration
	case models.KindTempBan, models.KindTempMute:
		durationMs = timeutil.ParseDuration(req.Duration)
		if durationMs <= 0 {
			api.WriteBadRequest(w, "A valid duration is required for timed punishments (e.g. \"7d\", \"2h30m\")")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := mah.Punishments.Issue(ctx, service.IssueRequest{
		PlayerUUID: playerUUID.String(),
		PlayerName: req.PlayerName,
		StaffUUID:  req.StaffUUID,
		StaffName:  req.StaffName,
		Kind:       kind,
		Reason:     req.Reason,
		DurationMs: durationMs,
	})
	if err != nil {
		log.Printf("Error issuing %s against %s: %v", kind, playerUUID.String(), err)
		api.WriteInternalServerError(w, "Failed to issue punishment")
		return
	}
	api.WriteJSON(w, http.StatusCreated, p)
}

// HandleRevoke lifts the active punishments of one category.
// POST /mod/revoke
func (mah *ModerationAPIHandlers) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	playerUUID, err := uuid.Parse(req.PlayerUUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid player UUID format")
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	revoked, err := mah.Punishments.Revoke(ctx, category, playerUUID.String(), req.StaffName)
	if err != nil {
		log.Printf("Error revoking %ss for %s: %v", category, playerUUID.String(), err)
		api.WriteInternalServerError(w, "Failed to revoke punishment")
		return
	}
	if !revoked {
		api.WriteNotFound(w, "No active punishment of that category")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"revoked": true, "uuid": playerUUID.String()})
}

// GetHistory returns the player's full punishment history, newest first.
// GET /mod/history/{uuid}
func (mah *ModerationAPIHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	playerUUIDStr := mux.Vars(r)["uuid"]
	if _, err := uuid.Parse(playerUUIDStr); err != nil {
		api.WriteBadRequest(w, "Invalid UUID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, err := mah.Punishments.History(ctx, playerUUIDStr)
	if err != nil {
		log.Printf("Error fetching history for %s: %v", playerUUIDStr, err)
		api.WriteInternalServerError(w, "Failed to fetch history")
		return
	}
	if history == nil {
		history = []*models.Punishment{}
	}
	api.WriteJSON(w, http.StatusOK, history)
}

// GetWarnings returns the player's active warning count.
// GET /mod/warnings/{uuid}
func (mah *ModerationAPIHandlers) GetWarnings(w http.ResponseWriter, r *http.Request) {
	playerUUIDStr := mux.Vars(r)["uuid"]
	if _, err := uuid.Parse(playerUUIDStr); err != nil {
		api.WriteBadRequest(w, "Invalid UUID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := mah.Punishments.WarningCount(ctx, playerUUIDStr)
	if err != nil {
		log.Printf("Error counting warnings for %s: %v", playerUUIDStr, err)
		api.WriteInternalServerError(w, "Failed to count warnings")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"uuid": playerUUIDStr, "warnings": count})
}

// HandleFreeze toggles a freeze on the player.
// POST /mod/freeze
func (mah *ModerationAPIHandlers) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	var req FreezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	playerUUID, err := uuid.Parse(req.PlayerUUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid player UUID format")
		return
	}
	if req.StaffUUID == "" || req.StaffName == "" {
		api.WriteBadRequest(w, "Staff attribution is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	player := live.PlayerRef{UUID: playerUUID.String(), Name: req.PlayerName}
	staff := live.PlayerRef{UUID: req.StaffUUID, Name: req.StaffName}
	frozen, err := mah.Freeze.Toggle(ctx, player, staff, req.Location)
	if err != nil {
		log.Printf("Error toggling freeze for %s: %v", playerUUID.String(), err)
		api.WriteInternalServerError(w, "Failed to toggle freeze")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"uuid": player.UUID, "frozen": frozen})
}

// GetFrozen reports the player's freeze state.
// GET /mod/frozen/{uuid}
func (mah *ModerationAPIHandlers) GetFrozen(w http.ResponseWriter, r *http.Request) {
	playerUUIDStr := mux.Vars(r)["uuid"]
	if _, err := uuid.Parse(playerUUIDStr); err != nil {
		api.WriteBadRequest(w, "Invalid UUID format")
		return
	}

	resp := map[string]interface{}{"uuid": playerUUIDStr, "frozen": mah.Freeze.IsFrozen(playerUUIDStr)}
	if staff, ok := mah.Freeze.FrozenBy(playerUUIDStr); ok {
		resp["frozen_by"] = staff.Name
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// HandleStaffMode toggles staff mode for a staff member.
// POST /mod/staffmode
func (mah *ModerationAPIHandlers) HandleStaffMode(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	staffUUID, err := uuid.Parse(req.StaffUUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid staff UUID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	staff := live.PlayerRef{UUID: staffUUID.String(), Name: req.StaffName}
	isStaff, err := mah.StaffMode.IsStaff(ctx, staff.UUID)
	if err != nil {
		log.Printf("Error checking staff status for %s: %v", staff.UUID, err)
		api.WriteInternalServerError(w, "Failed to check staff status")
		return
	}
	if !isStaff {
		api.WriteError(w, http.StatusForbidden, "Not a staff member")
		return
	}

	enabled, err := mah.StaffMode.ToggleStaffMode(ctx, staff)
	if err != nil {
		log.Printf("Error toggling staff mode for %s: %v", staff.UUID, err)
		api.WriteInternalServerError(w, "Failed to toggle staff mode")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"uuid": staff.UUID, "staff_mode": enabled})
}

// HandleStaffChat toggles staff chat routing, or relays a one-off staff
// message when a message is supplied.
// POST /mod/staffchat
func (mah *ModerationAPIHandlers) HandleStaffChat(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	staffUUID, err := uuid.Parse(req.StaffUUID)
	if err != nil {
		api.WriteBadRequest(w, "Invalid staff UUID format")
		return
	}

	staff := live.PlayerRef{UUID: staffUUID.String(), Name: req.StaffName}
	if req.Message != "" {
		mah.Hub.StaffChat(staff, req.Message)
		api.WriteJSON(w, http.StatusOK, map[string]interface{}{"uuid": staff.UUID, "relayed": true})
		return
	}

	enabled := mah.StaffMode.ToggleStaffChat(staff.UUID)
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"uuid": staff.UUID, "staff_chat": enabled})
}

// HandleSync applies a punishment event propagated from a peer instance. The
// record already exists in MongoDB; only the local fast-path mirrors need
// warming, so nothing here re-enters the punishment lifecycle.
// POST /mod/sync
func (mah *ModerationAPIHandlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	var ev syncer.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	switch {
	case ev.Punishment != nil:
		p := ev.Punishment
		switch p.Kind {
		case models.KindBan, models.KindTempBan:
			expiresAtMs := int64(0)
			if !p.IsPermanent() {
				expiresAtMs = p.ExpiresAt
			}
			if err := mah.Bans.RegisterBan(ctx, p.PlayerUUID, p.Reason, p.StaffName, expiresAtMs); err != nil {
				log.Printf("Error applying synced ban for %s: %v", p.PlayerUUID, err)
				api.WriteInternalServerError(w, "Failed to apply synced ban")
				return
			}
		case models.KindMute, models.KindTempMute:
			mah.Mutes.Put(p.PlayerUUID, p)
		default:
			api.WriteBadRequest(w, "Synced punishment kind has no ongoing effect")
			return
		}
	case ev.Revocation != nil:
		rev := ev.Revocation
		switch rev.Category {
		case models.CategoryBan:
			if _, err := mah.Bans.RemoveBan(ctx, rev.PlayerUUID); err != nil {
				log.Printf("Error applying synced unban for %s: %v", rev.PlayerUUID, err)
				api.WriteInternalServerError(w, "Failed to apply synced unban")
				return
			}
		case models.CategoryMute:
			mah.Mutes.Remove(rev.PlayerUUID)
		default:
			api.WriteBadRequest(w, "Unknown revocation category")
			return
		}
	default:
		api.WriteBadRequest(w, "Sync event carries neither punishment nor revocation")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Sync applied"})
}

// RegisterRoutes registers all API endpoints for the moderation service.
func (mah *ModerationAPIHandlers) RegisterRoutes(router *mux.Router) {
	// Enforcement gates, called by the game server on player events.
	router.HandleFunc("/mod/login", mah.HandleLogin).Methods("POST")
	router.HandleFunc("/mod/join", mah.HandleJoin).Methods("POST")
	router.HandleFunc("/mod/quit", mah.HandleQuit).Methods("POST")
	router.HandleFunc("/mod/chat", mah.HandleChat).Methods("POST")
	router.HandleFunc("/mod/command", mah.HandleCommand).Methods("POST")
	router.HandleFunc("/mod/move", mah.HandleMove).Methods("POST")

	// Staff actions.
	router.HandleFunc("/mod/punish", mah.HandlePunish).Methods("POST")
	router.HandleFunc("/mod/revoke", mah.HandleRevoke).Methods("POST")
	router.HandleFunc("/mod/history/{uuid}", mah.GetHistory).Methods("GET")
	router.HandleFunc("/mod/warnings/{uuid}", mah.GetWarnings).Methods("GET")
	router.HandleFunc("/mod/freeze", mah.HandleFreeze).Methods("POST")
	router.HandleFunc("/mod/frozen/{uuid}", mah.GetFrozen).Methods("GET")
	router.HandleFunc("/mod/staffmode", mah.HandleStaffMode).Methods("POST")
	router.HandleFunc("/mod/staffchat", mah.HandleStaffChat).Methods("POST")

	// Event feeds.
	router.HandleFunc("/mod/notify", mah.Hub.HandleWS).Methods("GET")
	router.HandleFunc("/mod/sync", mah.HandleSync).Methods("POST")
}
