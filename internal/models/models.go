// Package models holds the records shared between the session layer, the
// store, and the transport.
package models

import (
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// User identifies an authenticated account. Account management itself lives
// outside this service; only the identity crosses the boundary.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// RoomStatus is the lifecycle state of a game room.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "waiting"
	RoomInProgress RoomStatus = "in_progress"
	RoomFinished   RoomStatus = "finished"
)

// Room describes a joinable game room.
type Room struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	HostID      uuid.UUID  `json:"hostId"`
	Status      RoomStatus `json:"status"`
	PlayerCount int        `json:"playerCount"`
	MaxPlayers  int        `json:"maxPlayers"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Tile is the wire representation of a domino tile. The engine's packed form
// never crosses the transport; clients see ids and pip values.
type Tile struct {
	ID       uuid.UUID `json:"id"`
	Left     int       `json:"left"`
	Right    int       `json:"right"`
	IsDouble bool      `json:"isDouble"`
}

// PlacedTile is a tile fixed on the board, with its render placement.
type PlacedTile struct {
	Tile
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Rotation      int    `json:"rotation"`
	Side          string `json:"side"`
	Direction     string `json:"direction"`
	IsCornerTurn  bool   `json:"isCornerTurn"`
	ConnectionPip int    `json:"connectionPip"`
}

// Player is one seat in a room. Hand contents are private to the owner; any
// record leaving the server must pass through RedactPlayers first.
type Player struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"roomId"`
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
	Seat        int       `json:"seat"`
	Hand        []Tile    `json:"hand"`
	HandCount   int       `json:"handCount"`
	Score       int       `json:"score"`
	IsCurrent   bool      `json:"isCurrentPlayer"`
	Connected   bool      `json:"isConnected"`
	JoinedAt    time.Time `json:"joinedAt"`

	User *User           `json:"-"`
	Conn *websocket.Conn `json:"-"`
}

// GameStateRecord is the per-room authoritative game-state row.
type GameStateRecord struct {
	RoomID          uuid.UUID    `json:"roomId"`
	LeftEnd         *int         `json:"leftEnd"`
	RightEnd        *int         `json:"rightEnd"`
	PlacedTiles     []PlacedTile `json:"placedTiles"`
	CurrentPlayerID uuid.UUID    `json:"currentPlayerId"`
	TurnOrder       []uuid.UUID  `json:"turnOrder"`
	Boneyard        []Tile       `json:"boneyard"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// GameAction is a client-submitted action envelope.
type GameAction struct {
	ActionType string                 `json:"action"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Client action types accepted over the wire.
const (
	ActionStartGame  = "action_start_game"
	ActionPlayTile   = "action_play_tile"
	ActionSelectSide = "action_select_side"
	ActionPassTurn   = "action_pass_turn"
	ActionLeaveRoom  = "action_leave_room"
)

// RedactPlayers returns copies of the player records safe to send to the
// given observer: the full hand only for the observer's own record, an empty
// hand plus the true count for everyone else.
func RedactPlayers(players []Player, forUser uuid.UUID) []Player {
	out := make([]Player, len(players))
	for i, p := range players {
		redacted := p
		redacted.HandCount = len(p.Hand)
		if p.UserID != forUser {
			redacted.Hand = []Tile{}
		}
		redacted.Conn = nil
		out[i] = redacted
	}
	return out
}
