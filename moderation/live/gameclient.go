// moderation/live/gameclient.go
package live

import (
	"context"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/api"
)

// GameServiceClient implements Effects over the game service's HTTP API.
type GameServiceClient struct {
	apiClient *api.Client
}

// NewGameClient creates a new Game Service client.
func NewGameClient(baseURL string) *GameServiceClient {
	return &GameServiceClient{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient()),
	}
}

type playerMessageRequest struct {
	UUID    string `json:"uuid"`
	Message string `json:"message"`
}

type teleportRequest struct {
	UUID     string   `json:"uuid"`
	Location Location `json:"location"`
}

type gameModeRequest struct {
	UUID     string   `json:"uuid"`
	GameMode GameMode `json:"game_mode"`
}

type flightRequest struct {
	UUID        string `json:"uuid"`
	AllowFlight bool   `json:"allow_flight"`
}

type loadoutRequest struct {
	UUID    string  `json:"uuid"`
	Loadout Loadout `json:"loadout"`
}

// Disconnect kicks the player with the given screen message.
func (c *GameServiceClient) Disconnect(ctx context.Context, player PlayerRef, message string) error {
	return c.apiClient.Post(ctx, "/game/disconnect", playerMessageRequest{UUID: player.UUID, Message: message}, nil)
}

// SendMessage delivers a chat message to the player.
func (c *GameServiceClient) SendMessage(ctx context.Context, player PlayerRef, message string) error {
	return c.apiClient.Post(ctx, "/game/message", playerMessageRequest{UUID: player.UUID, Message: message}, nil)
}

// Teleport moves the player to the given location.
func (c *GameServiceClient) Teleport(ctx context.Context, player PlayerRef, loc Location) error {
	return c.apiClient.Post(ctx, "/game/teleport", teleportRequest{UUID: player.UUID, Location: loc}, nil)
}

// SnapshotLoadout reads and clears the player's inventory, armor, game mode
// and flight flag on the game server, returning what was taken.
func (c *GameServiceClient) SnapshotLoadout(ctx context.Context, player PlayerRef) (Loadout, error) {
	var loadout Loadout
	err := c.apiClient.Post(ctx, "/game/loadout/snapshot", playerMessageRequest{UUID: player.UUID}, &loadout)
	return loadout, err
}

// ApplyLoadout restores a previously snapshotted loadout.
func (c *GameServiceClient) ApplyLoadout(ctx context.Context, player PlayerRef, loadout Loadout) error {
	return c.apiClient.Post(ctx, "/game/loadout/apply", loadoutRequest{UUID: player.UUID, Loadout: loadout}, nil)
}

// SetGameMode switches the player's game mode.
func (c *GameServiceClient) SetGameMode(ctx context.Context, player PlayerRef, mode GameMode) error {
	return c.apiClient.Post(ctx, "/game/gamemode", gameModeRequest{UUID: player.UUID, GameMode: mode}, nil)
}

// SetFlight toggles the player's flight flag.
func (c *GameServiceClient) SetFlight(ctx context.Context, player PlayerRef, allow bool) error {
	return c.apiClient.Post(ctx, "/game/flight", flightRequest{UUID: player.UUID, AllowFlight: allow}, nil)
}

// GiveStaffKit equips the staff mode tools.
func (c *GameServiceClient) GiveStaffKit(ctx context.Context, player PlayerRef) error {
	return c.apiClient.Post(ctx, "/game/staffkit", playerMessageRequest{UUID: player.UUID}, nil)
}
