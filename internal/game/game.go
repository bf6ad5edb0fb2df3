// internal/game/game.go
package game

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/alejandrejorge-design/domino-domination-online/engine"
	"github.com/alejandrejorge-design/domino-domination-online/internal/cache"
	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// OnGameEndFunc is executed when a round ends. Winner is uuid.Nil on a
// stalemate; scores map each player to their remaining pip total.
type OnGameEndFunc func(roomID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int)

// DominoGame owns one in-memory round: the authoritative engine state plus
// the player roster and the communication callbacks.
type DominoGame struct {
	ID     uuid.UUID
	RoomID uuid.UUID
	HostID uuid.UUID // room host from the store; only the host may start

	Rules engine.TableRules

	Players []*models.Player // kept sorted by Seat

	// Engine integration — authoritative game state.
	Engine         engine.GameState
	Tiles          *TileTracker
	PlayerToEngine map[uuid.UUID]uint8
	EngineToPlayer [engine.MaxPlayers]uuid.UUID

	// Turn management.
	TurnDuration time.Duration // 0 disables the turn timer
	turnTimer    *time.Timer
	actionIndex  int

	Started  bool
	GameOver bool

	Mu sync.Mutex // protects all mutable state above

	// Communication callbacks.
	BroadcastFn         func(ev GameEvent)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	OnGameEnd           OnGameEndFunc
}

// NewDominoGame creates an idle game instance with default table rules.
func NewDominoGame() *DominoGame {
	return &DominoGame{
		ID:             uuid.New(),
		Rules:          engine.DefaultTableRules(),
		PlayerToEngine: make(map[uuid.UUID]uint8),
		TurnDuration:   30 * time.Second,
	}
}

// AddPlayer seats a player before the game starts, or reattaches the
// connection of a returning player. The player's Seat is the store's seat
// number; seating follows it, not attach order. A seat already held by
// someone else falls back to the next free one.
func (g *DominoGame) AddPlayer(p *models.Player) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	for i, pl := range g.Players {
		if pl.UserID == p.UserID {
			g.Players[i].Conn = p.Conn
			g.Players[i].Connected = true
			log.Printf("game %s: player %s reconnected", g.ID, p.UserID)
			if g.Started {
				g.sendSyncState(p.UserID)
			}
			return
		}
	}
	if g.Started {
		log.Printf("game %s: player %s cannot join, game already started", g.ID, p.UserID)
		if p.Conn != nil {
			p.Conn.Close(websocket.StatusPolicyViolation, "Game already in progress.")
		}
		return
	}

	taken := make(map[int]bool, len(g.Players))
	for _, pl := range g.Players {
		taken[pl.Seat] = true
	}
	if p.Seat < 0 || taken[p.Seat] {
		next := 0
		for taken[next] {
			next++
		}
		p.Seat = next
	}
	g.Players = append(g.Players, p)
	sort.Slice(g.Players, func(i, j int) bool { return g.Players[i].Seat < g.Players[j].Seat })
	g.logAction(p.UserID, "player_add", map[string]interface{}{"seat": p.Seat})
}

// Start performs the waiting to playing transition: deal, determine the
// starter, announce the first turn.
func (g *DominoGame) Start() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.startLocked()
}

func (g *DominoGame) startLocked() error {
	if g.Started || g.GameOver {
		return engine.ErrAlreadyStarted
	}
	if len(g.Players) < 2 {
		return errors.New("at least 2 seated players required")
	}
	if len(g.Players) > engine.MaxPlayers {
		return errors.New("too many players for the table")
	}

	g.Rules.NumPlayers = uint8(len(g.Players))
	for i, p := range g.Players {
		g.PlayerToEngine[p.UserID] = uint8(i)
		g.EngineToPlayer[i] = p.UserID
	}

	g.Engine = engine.NewGame(uint64(time.Now().UnixNano()), g.Rules)
	if err := g.Engine.Start(); err != nil {
		return err
	}
	g.Tiles = newTileTracker()
	g.Started = true
	g.syncPlayerHands()
	g.logAction(uuid.Nil, "game_start", map[string]interface{}{
		"starter": g.currentPlayerID().String(),
	})

	g.fireEvent(GameEvent{Type: EventGameStarted, User: &EventUser{ID: g.currentPlayerID()}})
	g.broadcastSyncStateToAll()
	g.broadcastPlayerTurn()
	g.scheduleTurnTimer()
	return nil
}

// HandlePlayerAction routes an incoming player action. Rule violations are
// answered with a private rejection event; they never end the session.
func (g *DominoGame) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) {
	if playerID == uuid.Nil {
		return
	}
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.GameOver {
		g.failAction(playerID, "The game is already over.")
		return
	}

	switch action.ActionType {
	case models.ActionStartGame:
		if playerID != g.hostID() {
			g.failAction(playerID, "Only the host can start the game.")
			return
		}
		if err := g.startLocked(); err != nil {
			g.failAction(playerID, "Cannot start game: "+err.Error())
		}
	case models.ActionPlayTile:
		g.handlePlayTile(playerID, action.Payload)
	case models.ActionSelectSide:
		g.handleSelectSide(playerID, action.Payload)
	case models.ActionPassTurn:
		g.handlePass(playerID)
	case models.ActionLeaveRoom:
		g.disconnectLocked(playerID)
	default:
		log.Printf("game %s: unknown action type %q from %s", g.ID, action.ActionType, playerID)
		g.failAction(playerID, "Unknown action type.")
	}
}

// handlePlayTile applies a play-tile action from the wire payload.
// Assumes lock is held by caller.
func (g *DominoGame) handlePlayTile(playerID uuid.UUID, payload map[string]interface{}) {
	if !g.Started {
		g.failAction(playerID, "The game has not started yet.")
		return
	}
	tileIDStr, _ := payload["tileId"].(string)
	tileID, err := uuid.Parse(tileIDStr)
	if err != nil {
		g.failAction(playerID, "Malformed tile id.")
		return
	}
	tile, ok := g.Tiles.TileOf(tileID)
	if !ok {
		g.failAction(playerID, "Unknown tile.")
		return
	}
	sideStr, _ := payload["side"].(string)
	g.applyPlay(playerID, tile, sideFromString(sideStr))
}

// handleSelectSide resolves a pending ambiguous play.
// Assumes lock is held by caller.
func (g *DominoGame) handleSelectSide(playerID uuid.UUID, payload map[string]interface{}) {
	engineIdx, ok := g.PlayerToEngine[playerID]
	if !ok {
		g.failAction(playerID, "You are not seated in this game.")
		return
	}
	sideStr, _ := payload["side"].(string)
	side := sideFromString(sideStr)

	prevFirst := g.Engine.Chain[0].Tile
	prevLen := g.Engine.ChainLen
	err := g.Engine.ChooseSide(engineIdx, side)
	if err != nil {
		g.failAction(playerID, rejectionReason(err))
		return
	}
	g.afterAcceptedPlay(playerID, prevFirst, prevLen)
}

// applyPlay validates a play through the engine and reacts to the outcome.
// Assumes lock is held by caller.
func (g *DominoGame) applyPlay(playerID uuid.UUID, tile engine.Tile, side engine.Side) {
	engineIdx, ok := g.PlayerToEngine[playerID]
	if !ok {
		g.failAction(playerID, "You are not seated in this game.")
		return
	}

	prevFirst := g.Engine.Chain[0].Tile
	prevLen := g.Engine.ChainLen
	err := g.Engine.PlayTile(engineIdx, tile, side)
	if errors.Is(err, engine.ErrAmbiguousSideRequired) {
		// Tile parked; ask the player which end.
		dto := g.Tiles.tileDTO(tile)
		g.fireEventToPlayer(playerID, GameEvent{
			Type: EventPrivateSideChoice,
			Tile: &dto,
		})
		return
	}
	if err != nil {
		g.failAction(playerID, rejectionReason(err))
		return
	}
	g.afterAcceptedPlay(playerID, prevFirst, prevLen)
}

// afterAcceptedPlay broadcasts the placement and advances the session. The
// pre-play first chain tile identifies which end the new tile landed on:
// a changed first tile means the play prepended to the left end.
// Assumes lock is held by caller.
func (g *DominoGame) afterAcceptedPlay(playerID uuid.UUID, prevFirst engine.Tile, prevLen uint8) {
	g.syncPlayerHands()

	var placed engine.PlacedTile
	if prevLen > 0 && !g.Engine.Chain[0].Tile.SameTile(prevFirst) {
		placed = g.Engine.Chain[0]
	} else {
		placed = g.Engine.Chain[g.Engine.ChainLen-1]
	}
	dto := g.Tiles.placedDTO(placed)
	g.fireEvent(GameEvent{
		Type:   EventPlayerPlayTile,
		User:   &EventUser{ID: playerID},
		Placed: &dto,
		Side:   placed.Side.String(),
	})
	g.logAction(playerID, string(EventPlayerPlayTile), map[string]interface{}{
		"tile": placed.Tile.String(),
		"side": placed.Side.String(),
	})

	if g.Engine.Phase() == engine.PhaseFinished {
		g.EndGame()
		return
	}
	g.broadcastSyncStateToAll()
	g.broadcastPlayerTurn()
	g.scheduleTurnTimer()
}

// handlePass applies a pass action.
// Assumes lock is held by caller.
func (g *DominoGame) handlePass(playerID uuid.UUID) {
	if !g.Started {
		g.failAction(playerID, "The game has not started yet.")
		return
	}
	engineIdx, ok := g.PlayerToEngine[playerID]
	if !ok {
		g.failAction(playerID, "You are not seated in this game.")
		return
	}

	if err := g.Engine.Pass(engineIdx); err != nil {
		g.failAction(playerID, rejectionReason(err))
		return
	}

	g.fireEvent(GameEvent{Type: EventPlayerPass, User: &EventUser{ID: playerID}})
	g.logAction(playerID, string(EventPlayerPass), nil)

	if g.Engine.Phase() == engine.PhaseFinished {
		g.EndGame()
		return
	}
	g.broadcastSyncStateToAll()
	g.broadcastPlayerTurn()
	g.scheduleTurnTimer()
}

// EndGame finalizes the round: stops timers, computes remaining pip totals,
// broadcasts results, and triggers the OnGameEnd callback.
// Assumes lock is held by caller.
func (g *DominoGame) EndGame() {
	if g.GameOver {
		return
	}
	g.GameOver = true
	g.Started = false
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}

	winner := uuid.Nil
	if g.Engine.Winner != engine.NoWinner {
		winner = g.EngineToPlayer[uint8(g.Engine.Winner)]
	}

	scores := make(map[uuid.UUID]int)
	for i := uint8(0); i < g.Rules.NumPlayers; i++ {
		playerUUID := g.EngineToPlayer[i]
		if playerUUID == uuid.Nil {
			continue
		}
		total := 0
		for _, t := range g.Engine.HandOf(i) {
			total += int(t.PipSum())
		}
		scores[playerUUID] = total
	}
	g.syncPlayerHands()

	resultsPayload := map[string]interface{}{
		"winner":    winner.String(),
		"stalemate": g.Engine.IsStalemate(),
		"scores":    map[string]int{},
	}
	for pid, s := range scores {
		resultsPayload["scores"].(map[string]int)[pid.String()] = s
	}
	g.fireEvent(GameEvent{Type: EventGameEnd, Payload: resultsPayload})
	g.logAction(uuid.Nil, string(EventGameEnd), resultsPayload)
	g.broadcastSyncStateToAll()

	if g.OnGameEnd != nil {
		g.OnGameEnd(g.RoomID, winner, scores)
	}
	log.Printf("game %s: ended, winner=%s stalemate=%v", g.ID, winner, g.Engine.IsStalemate())
}

// HandleDisconnect marks a player as disconnected. If it is their turn the
// timer keeps running and will auto-resolve the turn.
func (g *DominoGame) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.disconnectLocked(playerID)
}

func (g *DominoGame) disconnectLocked(playerID uuid.UUID) {
	for i := range g.Players {
		if g.Players[i].UserID == playerID {
			if !g.Players[i].Connected {
				return
			}
			g.Players[i].Connected = false
			g.Players[i].Conn = nil
			g.logAction(playerID, "player_disconnect", nil)
			g.broadcastSyncStateToAll()
			return
		}
	}
}

// scheduleTurnTimer restarts the turn timer for the current player.
// Assumes lock is held by caller.
func (g *DominoGame) scheduleTurnTimer() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	if g.TurnDuration <= 0 || !g.Started || g.GameOver {
		return
	}
	playerID := g.currentPlayerID()
	g.turnTimer = time.AfterFunc(g.TurnDuration, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		g.handleTimeout(playerID)
	})
}

// handleTimeout resolves an expired turn: the first legal tile is played
// automatically (right end on ambiguity), otherwise the player passes.
// Assumes lock is held by caller.
func (g *DominoGame) handleTimeout(playerID uuid.UUID) {
	if !g.Started || g.GameOver || g.currentPlayerID() != playerID {
		return
	}
	engineIdx := g.PlayerToEngine[playerID]
	legal := g.Engine.LegalMovesList(engineIdx)
	if len(legal) == 0 {
		log.Printf("game %s: turn timeout, auto-passing for %s", g.ID, playerID)
		g.handlePass(playerID)
		return
	}
	tile := legal[0]
	side := engine.SideAuto
	if g.Engine.RightEnd != engine.OpenEnd && tile.Matches(uint8(g.Engine.RightEnd)) {
		side = engine.SideRight
	} else if g.Engine.LeftEnd != engine.OpenEnd && tile.Matches(uint8(g.Engine.LeftEnd)) {
		side = engine.SideLeft
	}
	log.Printf("game %s: turn timeout, auto-playing %s for %s", g.ID, tile, playerID)
	g.applyPlay(playerID, tile, side)
}

// syncPlayerHands mirrors engine hands into the player records.
// Assumes lock is held by caller.
func (g *DominoGame) syncPlayerHands() {
	for _, p := range g.Players {
		engineIdx, ok := g.PlayerToEngine[p.UserID]
		if !ok {
			continue
		}
		p.Hand = g.Tiles.handDTO(g.Engine.HandOf(engineIdx))
		p.HandCount = len(p.Hand)
		p.IsCurrent = g.Started && !g.GameOver && g.Engine.CurrentPlayer == engineIdx
	}
}

// currentPlayerID returns the UUID of the seat whose turn it is.
// Assumes lock is held by caller.
func (g *DominoGame) currentPlayerID() uuid.UUID {
	return g.EngineToPlayer[g.Engine.CurrentPlayer]
}

// hostID returns the room host. Games created without a store-backed host
// fall back to the lowest-seated player.
// Assumes lock is held by caller.
func (g *DominoGame) hostID() uuid.UUID {
	if g.HostID != uuid.Nil {
		return g.HostID
	}
	if len(g.Players) == 0 {
		return uuid.Nil
	}
	return g.Players[0].UserID
}

// broadcastPlayerTurn notifies all players of the current player's turn.
// Assumes lock is held by caller.
func (g *DominoGame) broadcastPlayerTurn() {
	g.fireEvent(GameEvent{
		Type: EventGamePlayerTurn,
		User: &EventUser{ID: g.currentPlayerID()},
	})
}

// failAction sends a private rejection with a human-readable reason.
// Assumes lock is held by caller.
func (g *DominoGame) failAction(playerID uuid.UUID, reason string) {
	g.fireEventToPlayer(playerID, GameEvent{
		Type:    EventPrivateActionFail,
		Payload: map[string]interface{}{"message": reason},
	})
	g.logAction(playerID, string(EventPrivateActionFail), map[string]interface{}{"reason": reason})
}

// rejectionReason maps engine errors to user-facing text.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotYourTurn):
		return "It's not your turn."
	case errors.Is(err, engine.ErrTileNotInHand):
		return "That tile is not in your hand."
	case errors.Is(err, engine.ErrIllegalMove):
		return "This tile cannot be played there."
	case errors.Is(err, engine.ErrMustPlayIfAble):
		return "You have a playable tile; you cannot pass."
	case errors.Is(err, engine.ErrAmbiguousSideRequired):
		return "The tile matches both ends; choose a side."
	case errors.Is(err, engine.ErrNoPendingSide):
		return "There is no tile waiting for a side choice."
	case errors.Is(err, engine.ErrFinished):
		return "The game is already over."
	case errors.Is(err, engine.ErrNotStarted):
		return "The game has not started yet."
	}
	return "Action rejected."
}

// fireEvent broadcasts an event to all connected players.
// Assumes lock is held by caller.
func (g *DominoGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn == nil {
		log.Printf("game %s: BroadcastFn is nil, dropping event %s", g.ID, ev.Type)
		return
	}
	g.BroadcastFn(ev)
}

// fireEventToPlayer sends an event to a single player.
// Assumes lock is held by caller.
func (g *DominoGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		log.Printf("game %s: BroadcastToPlayerFn is nil, dropping event %s", g.ID, ev.Type)
		return
	}
	g.BroadcastToPlayerFn(playerID, ev)
}

// sendSyncState sends the redacted game state to a single player.
// Assumes lock is held by caller.
func (g *DominoGame) sendSyncState(playerID uuid.UUID) {
	state := g.RedactedStateFor(playerID)
	g.fireEventToPlayer(playerID, GameEvent{Type: EventPrivateSyncState, State: &state})
}

// broadcastSyncStateToAll sends each connected player their own view.
// Assumes lock is held by caller.
func (g *DominoGame) broadcastSyncStateToAll() {
	for _, p := range g.Players {
		if p.Connected {
			g.sendSyncState(p.UserID)
		}
	}
}

// logAction publishes the action to the history queue, fire-and-forget.
// Assumes lock is held by caller.
func (g *DominoGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		RoomID:        g.RoomID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cache.Rdb == nil {
			return
		}
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			log.Printf("game %s: failed publishing action %d (%s): %v", g.ID, rec.ActionIndex, rec.ActionType, err)
		}
	}(record)
}
