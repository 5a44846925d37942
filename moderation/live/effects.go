// moderation/live/effects.go
package live

import (
	"context"
	"math"
)

// PlayerRef identifies a player on the live game server.
type PlayerRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Location is a position on a game server world.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// SameBlock reports whether two locations fall on the same block, ignoring
// sub-block movement and head rotation. Frozen players may look around but
// not leave their block. Block coordinates floor, never truncate: -0.5 and
// +0.5 are different blocks.
func (l Location) SameBlock(other Location) bool {
	return l.World == other.World &&
		blockCoord(l.X) == blockCoord(other.X) &&
		blockCoord(l.Y) == blockCoord(other.Y) &&
		blockCoord(l.Z) == blockCoord(other.Z)
}

func blockCoord(v float64) int {
	return int(math.Floor(v))
}

// GameMode mirrors the game server's player modes.
type GameMode string

const (
	GameModeSurvival  GameMode = "SURVIVAL"
	GameModeCreative  GameMode = "CREATIVE"
	GameModeAdventure GameMode = "ADVENTURE"
	GameModeSpectator GameMode = "SPECTATOR"
)

// AllowsFlight reports whether the mode grants flight on its own; players in
// other modes need the flight flag set explicitly.
func (m GameMode) AllowsFlight() bool {
	return m == GameModeCreative || m == GameModeSpectator
}

// Item is a single inventory stack as the game server serializes it.
type Item struct {
	Material string `json:"material"`
	Amount   int    `json:"amount"`
	Slot     int    `json:"slot"`
}

// Loadout captures everything restored when a staff member leaves staff mode.
type Loadout struct {
	Inventory   []Item   `json:"inventory"`
	Armor       []Item   `json:"armor"`
	GameMode    GameMode `json:"game_mode"`
	AllowFlight bool     `json:"allow_flight"`
}

// Effects is everything the moderation engine can do to the live game world.
// Implementations talk to the game server; tests substitute a fake. All calls
// are made from the Dispatcher's worker goroutine, never concurrently.
type Effects interface {
	// Disconnect kicks the player from the server with the given screen message.
	Disconnect(ctx context.Context, player PlayerRef, message string) error
	// SendMessage delivers a chat message to the player.
	SendMessage(ctx context.Context, player PlayerRef, message string) error
	// Teleport moves the player to the given location.
	Teleport(ctx context.Context, player PlayerRef, loc Location) error
	// SnapshotLoadout reads and clears the player's current inventory, armor,
	// game mode and flight flag, returning what was taken.
	SnapshotLoadout(ctx context.Context, player PlayerRef) (Loadout, error)
	// ApplyLoadout restores a previously snapshotted loadout.
	ApplyLoadout(ctx context.Context, player PlayerRef, loadout Loadout) error
	// SetGameMode switches the player's game mode.
	SetGameMode(ctx context.Context, player PlayerRef, mode GameMode) error
	// SetFlight toggles the player's flight flag.
	SetFlight(ctx context.Context, player PlayerRef, allow bool) error
	// GiveStaffKit equips the staff mode tools (after the loadout was snapshotted).
	GiveStaffKit(ctx context.Context, player PlayerRef) error
}
