// store_session.go — Session adapter backed by the shared store. Every
// action is validated against a state rehydrated from the store, and the
// resulting write is conditional on the turn not having moved underneath us.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alejandrejorge-design/domino-domination-online/engine"
	"github.com/alejandrejorge-design/domino-domination-online/internal/cache"
	"github.com/alejandrejorge-design/domino-domination-online/internal/database"
	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// Store is the persistence surface a StoreSession needs. *database.Store
// satisfies it.
type Store interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error)
	GetPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)
	GetGameState(ctx context.Context, roomID uuid.UUID) (models.GameStateRecord, error)
	StartGameTx(ctx context.Context, roomID uuid.UUID, hands map[uuid.UUID][]models.Tile, rec models.GameStateRecord) error
	ApplyPlay(ctx context.Context, roomID, actorID uuid.UUID, newHand []models.Tile, rec models.GameStateRecord) error
	UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status models.RoomStatus) error
	UpdatePlayerScore(ctx context.Context, roomID, userID uuid.UUID, score int) error
	LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error
}

// Notifier fans room change notifications out across instances.
type Notifier interface {
	PublishRoomChange(ctx context.Context, roomID uuid.UUID, table string) error
	SubscribeRoomChanges(ctx context.Context, roomID uuid.UUID) (<-chan cache.ChangeEvent, error)
}

// ErrSideRequired is returned when a play matches both chain ends and the
// action carried no side. The client resubmits with an explicit side.
var ErrSideRequired = errors.New("tile matches both ends, side required")

// StoreSession drives one room's game through the store. It holds no game
// state of its own; every action reloads, validates, and conditionally
// writes back.
type StoreSession struct {
	RoomID   uuid.UUID
	Store    Store
	Notifier Notifier
}

// NewStoreSession binds a room to the store and notifier.
func NewStoreSession(roomID uuid.UUID, store Store, notifier Notifier) *StoreSession {
	return &StoreSession{RoomID: roomID, Store: store, Notifier: notifier}
}

// FetchState loads and redacts the room state for one observer.
func (s *StoreSession) FetchState(ctx context.Context, forUser uuid.UUID) (ObfGameState, error) {
	room, err := s.Store.GetRoom(ctx, s.RoomID)
	if err != nil {
		return ObfGameState{}, err
	}
	players, err := s.Store.GetPlayers(ctx, s.RoomID)
	if err != nil {
		return ObfGameState{}, err
	}

	obf := ObfGameState{
		RoomID:  s.RoomID,
		Phase:   phaseForStatus(room.Status),
		Players: make([]ObfPlayerState, 0, len(players)),
	}

	rec, err := s.Store.GetGameState(ctx, s.RoomID)
	started := err == nil
	if err != nil && !errors.Is(err, database.ErrStateNotFound) {
		return ObfGameState{}, err
	}

	for _, p := range models.RedactPlayers(players, forUser) {
		obf.Players = append(obf.Players, ObfPlayerState{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Hand:        p.Hand,
			HandCount:   p.HandCount,
			Score:       p.Score,
			IsCurrent:   started && p.UserID == rec.CurrentPlayerID,
			Connected:   p.Connected,
		})
	}
	if !started {
		return obf, nil
	}

	obf.Chain = rec.PlacedTiles
	obf.LeftEnd = rec.LeftEnd
	obf.RightEnd = rec.RightEnd
	obf.BoneyardCount = len(rec.Boneyard)
	obf.CurrentPlayerID = rec.CurrentPlayerID
	return obf, nil
}

// ApplyAction validates and persists one action. Concurrent writers for the
// same turn race on the store's conditional update; losers get
// database.ErrConcurrencyConflict and should refetch.
func (s *StoreSession) ApplyAction(ctx context.Context, forUser uuid.UUID, action models.GameAction) error {
	switch action.ActionType {
	case models.ActionStartGame:
		return s.startGame(ctx, forUser)
	case models.ActionPlayTile:
		return s.playTile(ctx, forUser, action.Payload)
	case models.ActionSelectSide:
		// Nothing is parked over the store; the side choice replays the
		// tile with the side made explicit.
		if _, ok := action.Payload["tileId"]; !ok {
			return fmt.Errorf("select side: %w", ErrSideRequired)
		}
		return s.playTile(ctx, forUser, action.Payload)
	case models.ActionPassTurn:
		return s.pass(ctx, forUser)
	case models.ActionLeaveRoom:
		if err := s.Store.LeaveRoom(ctx, s.RoomID, forUser); err != nil {
			return err
		}
		return s.Notifier.PublishRoomChange(ctx, s.RoomID, "players")
	}
	return fmt.Errorf("unknown action type %q", action.ActionType)
}

// SubscribeToChanges ticks whenever another instance touches this room.
func (s *StoreSession) SubscribeToChanges(ctx context.Context) (<-chan struct{}, error) {
	events, err := s.Notifier.SubscribeRoomChanges(ctx, s.RoomID)
	if err != nil {
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range events {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

// startGame deals a fresh round and persists it in one transaction.
func (s *StoreSession) startGame(ctx context.Context, forUser uuid.UUID) error {
	room, err := s.Store.GetRoom(ctx, s.RoomID)
	if err != nil {
		return err
	}
	if room.HostID != forUser {
		return errors.New("only the host can start the game")
	}
	if room.Status != models.RoomWaiting {
		return errors.New("room is not in the waiting state")
	}
	players, err := s.Store.GetPlayers(ctx, s.RoomID)
	if err != nil {
		return err
	}
	if len(players) < 2 {
		return errors.New("at least 2 seated players required")
	}
	if len(players) > engine.MaxPlayers {
		return errors.New("too many players for the table")
	}

	rules := engine.DefaultTableRules()
	rules.NumPlayers = uint8(len(players))
	g := engine.NewGame(uint64(time.Now().UnixNano()), rules)
	if err := g.Start(); err != nil {
		return err
	}
	starterSeat, _ := g.ComputeOpening()

	hands := make(map[uuid.UUID][]models.Tile, len(players))
	order := make([]uuid.UUID, len(players))
	for i, p := range players {
		order[i] = p.UserID
		hands[p.UserID] = wireHand(g.HandOf(uint8(i)))
	}

	rec := models.GameStateRecord{
		RoomID:          s.RoomID,
		PlacedTiles:     []models.PlacedTile{},
		CurrentPlayerID: order[starterSeat],
		TurnOrder:       order,
		Boneyard:        wireHand(boneyardTiles(&g)),
	}
	if err := s.Store.StartGameTx(ctx, s.RoomID, hands, rec); err != nil {
		return err
	}
	logrus.WithField("room_id", s.RoomID).Info("game started")
	return s.Notifier.PublishRoomChange(ctx, s.RoomID, "game_state")
}

// playTile validates a play against the rehydrated state and writes the
// outcome, conditional on the actor still holding the turn.
func (s *StoreSession) playTile(ctx context.Context, forUser uuid.UUID, payload map[string]interface{}) error {
	players, rec, g, err := s.loadRound(ctx)
	if err != nil {
		return err
	}
	seat, ok := seatOf(rec.TurnOrder, forUser)
	if !ok {
		return errors.New("you are not seated in this game")
	}

	tileIDStr, _ := payload["tileId"].(string)
	tileID, err := uuid.Parse(tileIDStr)
	if err != nil {
		return fmt.Errorf("malformed tile id: %w", err)
	}
	stored, ok := tileInHand(players, forUser, tileID)
	if !ok {
		return engine.ErrTileNotInHand
	}
	tile := engine.NewTile(uint8(stored.Left), uint8(stored.Right))
	sideStr, _ := payload["side"].(string)
	side := sideFromString(sideStr)

	prevFirst := g.Chain[0].Tile
	prevLen := g.ChainLen
	err = g.PlayTile(seat, tile, side)
	if errors.Is(err, engine.ErrAmbiguousSideRequired) {
		return ErrSideRequired
	}
	if err != nil {
		return err
	}

	// Map the accepted placement back to the wire record.
	var placed engine.PlacedTile
	prepended := prevLen > 0 && !g.Chain[0].Tile.SameTile(prevFirst)
	if prepended {
		placed = g.Chain[0]
	} else {
		placed = g.Chain[g.ChainLen-1]
	}
	dto := models.PlacedTile{
		Tile: models.Tile{
			ID:       stored.ID,
			Left:     int(placed.Tile.Left()),
			Right:    int(placed.Tile.Right()),
			IsDouble: placed.Tile.IsDouble(),
		},
		X:             placed.X,
		Y:             placed.Y,
		Rotation:      placed.Rotation,
		Side:          placed.Side.String(),
		Direction:     placed.Dir.String(),
		IsCornerTurn:  placed.CornerTurn,
		ConnectionPip: int(placed.Connection),
	}
	if prepended {
		rec.PlacedTiles = append([]models.PlacedTile{dto}, rec.PlacedTiles...)
	} else {
		rec.PlacedTiles = append(rec.PlacedTiles, dto)
	}

	left := int(g.LeftEnd)
	right := int(g.RightEnd)
	rec.LeftEnd = &left
	rec.RightEnd = &right
	rec.CurrentPlayerID = rec.TurnOrder[g.CurrentPlayer]

	newHand := removeTileByID(handOf(players, forUser), tileID)
	if err := s.Store.ApplyPlay(ctx, s.RoomID, forUser, newHand, rec); err != nil {
		return err
	}
	if g.Phase() == engine.PhaseFinished {
		if err := s.finishRound(ctx, rec.TurnOrder, &g); err != nil {
			return err
		}
	}
	return s.Notifier.PublishRoomChange(ctx, s.RoomID, "game_state")
}

// pass validates and persists a pass for the acting player.
func (s *StoreSession) pass(ctx context.Context, forUser uuid.UUID) error {
	_, rec, g, err := s.loadRound(ctx)
	if err != nil {
		return err
	}
	seat, ok := seatOf(rec.TurnOrder, forUser)
	if !ok {
		return errors.New("you are not seated in this game")
	}
	if err := g.Pass(seat); err != nil {
		return err
	}
	rec.CurrentPlayerID = rec.TurnOrder[g.CurrentPlayer]
	if err := s.Store.ApplyPlay(ctx, s.RoomID, forUser, nil, rec); err != nil {
		return err
	}
	if g.Phase() == engine.PhaseFinished {
		if err := s.finishRound(ctx, rec.TurnOrder, &g); err != nil {
			return err
		}
	}
	return s.Notifier.PublishRoomChange(ctx, s.RoomID, "game_state")
}

// finishRound closes the room and records remaining pip totals as scores.
func (s *StoreSession) finishRound(ctx context.Context, order []uuid.UUID, g *engine.GameState) error {
	for seat, userID := range order {
		total := 0
		for _, t := range g.HandOf(uint8(seat)) {
			total += int(t.PipSum())
		}
		if err := s.Store.UpdatePlayerScore(ctx, s.RoomID, userID, total); err != nil {
			return err
		}
	}
	if err := s.Store.UpdateRoomStatus(ctx, s.RoomID, models.RoomFinished); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"room_id":   s.RoomID,
		"stalemate": g.IsStalemate(),
	}).Info("round finished")
	return nil
}

// loadRound fetches the room, players, and state row and rehydrates the
// engine. A finished room is terminal: no further actions are accepted, no
// matter what the rebuilt engine state would allow.
func (s *StoreSession) loadRound(ctx context.Context) ([]models.Player, models.GameStateRecord, engine.GameState, error) {
	room, err := s.Store.GetRoom(ctx, s.RoomID)
	if err != nil {
		return nil, models.GameStateRecord{}, engine.GameState{}, err
	}
	if room.Status == models.RoomFinished {
		return nil, models.GameStateRecord{}, engine.GameState{}, engine.ErrFinished
	}
	players, err := s.Store.GetPlayers(ctx, s.RoomID)
	if err != nil {
		return nil, models.GameStateRecord{}, engine.GameState{}, err
	}
	rec, err := s.Store.GetGameState(ctx, s.RoomID)
	if err != nil {
		return nil, models.GameStateRecord{}, engine.GameState{}, err
	}
	g, err := rehydrate(players, rec)
	if err != nil {
		return nil, models.GameStateRecord{}, engine.GameState{}, err
	}
	return players, rec, g, nil
}

// rehydrate reconstructs a playable engine state from the stored record.
// Layout cursors are rebuilt by replaying the chain: the opening tile first,
// then the left arm outward, then the right arm outward. The arms own
// independent cursors, so the original interleaving does not matter.
func rehydrate(players []models.Player, rec models.GameStateRecord) (engine.GameState, error) {
	rules := engine.DefaultTableRules()
	rules.NumPlayers = uint8(len(rec.TurnOrder))
	g := engine.NewGame(1, rules)
	g.BoneLen = 0

	byUser := make(map[uuid.UUID]models.Player, len(players))
	for _, p := range players {
		byUser[p.UserID] = p
	}
	for seat, userID := range rec.TurnOrder {
		p, ok := byUser[userID]
		if !ok {
			return engine.GameState{}, fmt.Errorf("turn order references unknown player %s", userID)
		}
		if len(p.Hand) > engine.MaxHandSize {
			return engine.GameState{}, fmt.Errorf("player %s hand exceeds limit", userID)
		}
		for i, t := range p.Hand {
			g.Players[seat].Hand[i] = engine.NewTile(uint8(t.Left), uint8(t.Right))
		}
		g.Players[seat].HandLen = uint8(len(p.Hand))
	}
	for _, t := range rec.Boneyard {
		g.Boneyard[g.BoneLen] = engine.NewTile(uint8(t.Left), uint8(t.Right))
		g.BoneLen++
	}

	g.Flags |= engine.FlagStarted
	seat, ok := seatOf(rec.TurnOrder, rec.CurrentPlayerID)
	if !ok {
		return engine.GameState{}, fmt.Errorf("current player %s not in turn order", rec.CurrentPlayerID)
	}
	g.CurrentPlayer = seat

	if len(rec.PlacedTiles) == 0 {
		// Pre-chain: the opening requirement is derivable from the hands.
		_, opening := g.ComputeOpening()
		g.Opening = opening
		return g, nil
	}

	// Chain order is left-to-right; the left arm is the prefix of tiles
	// placed on the left end, the opening tile sits right after it.
	firstIdx := 0
	for i, pt := range rec.PlacedTiles {
		if pt.Side != "left" {
			firstIdx = i
			break
		}
	}
	g.Layout.Reset()
	replayInto(&g, rec.PlacedTiles[firstIdx], engine.SideRight)
	for i := firstIdx - 1; i >= 0; i-- {
		replayInto(&g, rec.PlacedTiles[i], engine.SideLeft)
	}
	for i := firstIdx + 1; i < len(rec.PlacedTiles); i++ {
		replayInto(&g, rec.PlacedTiles[i], engine.SideRight)
	}

	reorderChain(&g, firstIdx)

	if rec.LeftEnd != nil {
		g.LeftEnd = int8(*rec.LeftEnd)
	}
	if rec.RightEnd != nil {
		g.RightEnd = int8(*rec.RightEnd)
	}
	g.TurnNumber = uint16(len(rec.PlacedTiles))
	return g, nil
}

// replayInto advances the layout for one stored placement and records it in
// engine replay order (opening, left arm, right arm).
func replayInto(g *engine.GameState, pt models.PlacedTile, side engine.Side) {
	t := engine.NewTile(uint8(pt.Tile.Left), uint8(pt.Tile.Right))
	pos := g.Layout.NextPosition(t, side)
	g.Chain[g.ChainLen] = engine.PlacedTile{
		Tile:       t,
		X:          pos.X,
		Y:          pos.Y,
		Rotation:   pos.Rotation,
		Side:       side,
		Dir:        pos.Dir,
		CornerTurn: pos.CornerTurn,
		Connection: uint8(pt.ConnectionPip),
	}
	g.ChainLen++
}

// reorderChain converts the replay order written by rehydrate back into
// physical left-to-right order: [opening, L1..Lk, R1..Rm] becomes
// [Lk..L1, opening, R1..Rm].
func reorderChain(g *engine.GameState, firstIdx int) {
	n := int(g.ChainLen)
	var out [engine.SetSize]engine.PlacedTile
	out[firstIdx] = g.Chain[0]
	for i := 0; i < firstIdx; i++ {
		// Left arm was replayed inner to outer; chain index runs outer to inner.
		out[firstIdx-1-i] = g.Chain[1+i]
	}
	for i := firstIdx + 1; i < n; i++ {
		out[i] = g.Chain[i]
	}
	copy(g.Chain[:n], out[:n])
}

// phaseForStatus maps a room lifecycle status onto the client phase string.
func phaseForStatus(status models.RoomStatus) string {
	switch status {
	case models.RoomInProgress:
		return "playing"
	case models.RoomFinished:
		return "finished"
	}
	return "waiting"
}

// seatOf finds a user's seat index within the stored turn order.
func seatOf(order []uuid.UUID, userID uuid.UUID) (uint8, bool) {
	for i, id := range order {
		if id == userID {
			return uint8(i), true
		}
	}
	return 0, false
}

// handOf returns the stored hand for a user.
func handOf(players []models.Player, userID uuid.UUID) []models.Tile {
	for _, p := range players {
		if p.UserID == userID {
			return p.Hand
		}
	}
	return nil
}

// tileInHand locates a tile by id in a user's stored hand.
func tileInHand(players []models.Player, userID, tileID uuid.UUID) (models.Tile, bool) {
	for _, t := range handOf(players, userID) {
		if t.ID == tileID {
			return t, true
		}
	}
	return models.Tile{}, false
}

// removeTileByID returns the hand without the given tile.
func removeTileByID(hand []models.Tile, tileID uuid.UUID) []models.Tile {
	out := make([]models.Tile, 0, len(hand))
	for _, t := range hand {
		if t.ID != tileID {
			out = append(out, t)
		}
	}
	return out
}

// wireHand converts engine tiles to wire tiles with fresh ids.
func wireHand(tiles []engine.Tile) []models.Tile {
	out := make([]models.Tile, len(tiles))
	for i, t := range tiles {
		out[i] = models.Tile{
			ID:       uuid.New(),
			Left:     int(t.Left()),
			Right:    int(t.Right()),
			IsDouble: t.IsDouble(),
		}
	}
	return out
}

// boneyardTiles copies the undealt remainder out of the engine state.
func boneyardTiles(g *engine.GameState) []engine.Tile {
	out := make([]engine.Tile, g.BoneLen)
	copy(out, g.Boneyard[:g.BoneLen])
	return out
}
