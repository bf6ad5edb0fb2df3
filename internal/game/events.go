package game

import (
	"github.com/google/uuid"

	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// GameEventType identifies a game event broadcast to clients.
type GameEventType string

// Event types used for client communication. "private_" events go to a
// single player; the rest are broadcast to the whole room.
const (
	EventGameStarted       GameEventType = "game_started"
	EventPlayerPlayTile    GameEventType = "player_play_tile"    // Public: a tile was placed.
	EventPlayerPass        GameEventType = "player_pass"         // Public: player passed.
	EventGamePlayerTurn    GameEventType = "game_player_turn"    // Public: whose turn it is now.
	EventGameEnd           GameEventType = "game_end"            // Public: round over, includes results.
	EventPrivateSyncState  GameEventType = "private_sync_state"  // Private: full redacted state sync.
	EventPrivateActionFail GameEventType = "private_action_fail" // Private: rejected action with reason.
	EventPrivateSideChoice GameEventType = "private_side_choice" // Private: tile parked, side required.
)

// EventUser identifies a user within a GameEvent payload.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// GameEvent is the standard structure for broadcasting game state changes.
type GameEvent struct {
	Type   GameEventType      `json:"type"`
	User   *EventUser         `json:"user,omitempty"`   // Acting or targeted user.
	Tile   *models.Tile       `json:"tile,omitempty"`   // Tile involved, if any.
	Placed *models.PlacedTile `json:"placed,omitempty"` // Placement result of an accepted play.
	Side   string             `json:"side,omitempty"`   // Chain end involved, if any.

	Payload map[string]interface{} `json:"payload,omitempty"` // Additional arbitrary data.

	State *ObfGameState `json:"state,omitempty"` // Full redacted state for sync events.
}
