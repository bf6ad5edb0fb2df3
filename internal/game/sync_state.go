// sync_state.go — Per-observer redacted views of the game state.
package game

import (
	"github.com/google/uuid"

	"github.com/alejandrejorge-design/domino-domination-online/engine"
	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// ObfPlayerState is one seat as a given observer is allowed to see it. Hand
// is populated only for the observer's own seat.
type ObfPlayerState struct {
	UserID      uuid.UUID     `json:"userId"`
	DisplayName string        `json:"displayName"`
	Seat        int           `json:"seat"`
	Hand        []models.Tile `json:"hand"`
	HandCount   int           `json:"handCount"`
	Score       int           `json:"score"`
	IsCurrent   bool          `json:"isCurrentPlayer"`
	Connected   bool          `json:"isConnected"`
}

// ObfGameState is the full game state redacted for one observer.
type ObfGameState struct {
	GameID          uuid.UUID           `json:"gameId"`
	RoomID          uuid.UUID           `json:"roomId"`
	Phase           string              `json:"phase"`
	Players         []ObfPlayerState    `json:"players"`
	Chain           []models.PlacedTile `json:"chain"`
	LeftEnd         *int                `json:"leftEnd"`
	RightEnd        *int                `json:"rightEnd"`
	BoneyardCount   int                 `json:"boneyardCount"`
	CurrentPlayerID uuid.UUID           `json:"currentPlayerId"`
	TurnNumber      int                 `json:"turnNumber"`
	Stalemate       bool                `json:"stalemate"`
	WinnerID        *uuid.UUID          `json:"winnerId,omitempty"`
}

// RedactedStateFor builds the state view for one observer. Only the
// observer's own hand is included; opponents expose counts only.
// Assumes lock is held by caller.
func (g *DominoGame) RedactedStateFor(forUser uuid.UUID) ObfGameState {
	obf := ObfGameState{
		GameID:  g.ID,
		RoomID:  g.RoomID,
		Players: make([]ObfPlayerState, 0, len(g.Players)),
	}

	for _, p := range g.Players {
		ops := ObfPlayerState{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Hand:        []models.Tile{},
			HandCount:   p.HandCount,
			Score:       p.Score,
			IsCurrent:   p.IsCurrent,
			Connected:   p.Connected,
		}
		if p.UserID == forUser {
			ops.Hand = append(ops.Hand, p.Hand...)
		}
		obf.Players = append(obf.Players, ops)
	}

	if !g.Started && !g.GameOver {
		obf.Phase = "waiting"
		return obf
	}

	switch g.Engine.Phase() {
	case engine.PhasePlaying:
		obf.Phase = "playing"
	case engine.PhaseFinished:
		obf.Phase = "finished"
	default:
		obf.Phase = "waiting"
	}

	obf.Chain = g.Tiles.chainDTO(g.Engine.ChainTiles())
	if g.Engine.LeftEnd != engine.OpenEnd {
		v := int(g.Engine.LeftEnd)
		obf.LeftEnd = &v
	}
	if g.Engine.RightEnd != engine.OpenEnd {
		v := int(g.Engine.RightEnd)
		obf.RightEnd = &v
	}
	obf.BoneyardCount = int(g.Engine.BoneLen)
	obf.CurrentPlayerID = g.currentPlayerID()
	obf.TurnNumber = int(g.Engine.TurnNumber)
	obf.Stalemate = g.Engine.IsStalemate()
	if g.Engine.Winner != engine.NoWinner {
		w := g.EngineToPlayer[uint8(g.Engine.Winner)]
		obf.WinnerID = &w
	}
	return obf
}

// GetCurrentObfuscatedGameState locks and builds the view for one observer.
func (g *DominoGame) GetCurrentObfuscatedGameState(forUser uuid.UUID) ObfGameState {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.RedactedStateFor(forUser)
}
