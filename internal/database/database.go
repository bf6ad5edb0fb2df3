// Package database is the PostgreSQL persistence layer. All JSON encoding of
// hands and chain placements is confined here; the rest of the service works
// with typed records.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// Sentinel errors surfaced to the session and transport layers.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomNotJoinable     = errors.New("room is not accepting players")
	ErrAlreadyJoined       = errors.New("user already seated in room")
	ErrStateNotFound       = errors.New("game state not found")
	ErrConcurrencyConflict = errors.New("state changed since read")
)

// Store wraps the connection pool. One Store serves the whole process.
type Store struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool using DATABASE_URL and verifies it with a ping.
func Connect(ctx context.Context) (*Store, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logrus.Info("connected to postgres")
	return &Store{Pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	host_id     UUID NOT NULL,
	status      TEXT NOT NULL DEFAULT 'waiting',
	max_players INT  NOT NULL DEFAULT 4,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS players (
	id           UUID PRIMARY KEY,
	room_id      UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	user_id      UUID NOT NULL,
	display_name TEXT NOT NULL,
	seat         INT  NOT NULL,
	hand         JSONB NOT NULL DEFAULT '[]',
	score        INT  NOT NULL DEFAULT 0,
	is_connected BOOLEAN NOT NULL DEFAULT true,
	joined_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (room_id, user_id),
	UNIQUE (room_id, seat)
);

CREATE TABLE IF NOT EXISTS game_state (
	room_id           UUID PRIMARY KEY REFERENCES rooms(id) ON DELETE CASCADE,
	left_end          INT,
	right_end         INT,
	placed_tiles      JSONB NOT NULL DEFAULT '[]',
	current_player_id UUID,
	turn_order        JSONB NOT NULL DEFAULT '[]',
	boneyard          JSONB NOT NULL DEFAULT '[]',
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateRoom inserts a new room. Transient insert failures are retried up to
// three times with an increasing delay before giving up.
func (s *Store) CreateRoom(ctx context.Context, name string, hostID uuid.UUID, maxPlayers int) (models.Room, error) {
	room := models.Room{
		ID:         uuid.New(),
		Name:       name,
		HostID:     hostID,
		Status:     models.RoomWaiting,
		MaxPlayers: maxPlayers,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		err := s.Pool.QueryRow(ctx,
			`INSERT INTO rooms (id, name, host_id, status, max_players)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at, updated_at`,
			room.ID, room.Name, room.HostID, room.Status, room.MaxPlayers,
		).Scan(&room.CreatedAt, &room.UpdatedAt)
		if err == nil {
			return room, nil
		}
		lastErr = err
		logrus.Warnf("create room attempt %d failed: %v", attempt, err)
		select {
		case <-ctx.Done():
			return models.Room{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return models.Room{}, fmt.Errorf("create room: %w", lastErr)
}

// GetRoom fetches one room by id.
func (s *Store) GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	var room models.Room
	err := s.Pool.QueryRow(ctx,
		`SELECT r.id, r.name, r.host_id, r.status, r.max_players, r.created_at, r.updated_at,
		        (SELECT count(*) FROM players p WHERE p.room_id = r.id)
		 FROM rooms r WHERE r.id = $1`,
		roomID,
	).Scan(&room.ID, &room.Name, &room.HostID, &room.Status, &room.MaxPlayers,
		&room.CreatedAt, &room.UpdatedAt, &room.PlayerCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// ListOpenRooms returns rooms still waiting for players, newest first.
func (s *Store) ListOpenRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT r.id, r.name, r.host_id, r.status, r.max_players, r.created_at, r.updated_at,
		        (SELECT count(*) FROM players p WHERE p.room_id = r.id)
		 FROM rooms r WHERE r.status = $1 ORDER BY r.created_at DESC`,
		models.RoomWaiting,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.HostID, &room.Status, &room.MaxPlayers,
			&room.CreatedAt, &room.UpdatedAt, &room.PlayerCount); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// UpdateRoomStatus moves a room through its lifecycle.
func (s *Store) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status models.RoomStatus) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE rooms SET status = $2, updated_at = now() WHERE id = $1`,
		roomID, status,
	)
	if err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// JoinRoom seats a user in a waiting room. The seat check and insert run in
// one transaction so two racing joins cannot exceed the room capacity.
func (s *Store) JoinRoom(ctx context.Context, roomID, userID uuid.UUID, displayName string) (models.Player, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return models.Player{}, fmt.Errorf("begin join: %w", err)
	}
	defer tx.Rollback(ctx)

	var status models.RoomStatus
	var maxPlayers, seated int
	err = tx.QueryRow(ctx,
		`SELECT r.status, r.max_players,
		        (SELECT count(*) FROM players p WHERE p.room_id = r.id)
		 FROM rooms r WHERE r.id = $1 FOR UPDATE`,
		roomID,
	).Scan(&status, &maxPlayers, &seated)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Player{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Player{}, fmt.Errorf("lock room: %w", err)
	}
	if status != models.RoomWaiting {
		return models.Player{}, ErrRoomNotJoinable
	}
	if seated >= maxPlayers {
		return models.Player{}, ErrRoomFull
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&exists); err != nil {
		return models.Player{}, fmt.Errorf("check membership: %w", err)
	}
	if exists {
		return models.Player{}, ErrAlreadyJoined
	}

	p := models.Player{
		ID:          uuid.New(),
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		Seat:        seated,
		Hand:        []models.Tile{},
		Connected:   true,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO players (id, room_id, user_id, display_name, seat)
		 VALUES ($1, $2, $3, $4, $5) RETURNING joined_at`,
		p.ID, p.RoomID, p.UserID, p.DisplayName, p.Seat,
	).Scan(&p.JoinedAt)
	if err != nil {
		return models.Player{}, fmt.Errorf("insert player: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Player{}, fmt.Errorf("commit join: %w", err)
	}
	return p, nil
}

// LeaveRoom removes a player from a room.
func (s *Store) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx,
		`DELETE FROM players WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	return nil
}

// GetPlayers returns all seated players of a room in seat order.
func (s *Store) GetPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, room_id, user_id, display_name, seat, hand, score, is_connected, joined_at
		 FROM players WHERE room_id = $1 ORDER BY seat`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		var p models.Player
		var handJSON []byte
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.DisplayName, &p.Seat,
			&handJSON, &p.Score, &p.Connected, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if err := json.Unmarshal(handJSON, &p.Hand); err != nil {
			return nil, fmt.Errorf("decode hand for player %s: %w", p.ID, err)
		}
		p.HandCount = len(p.Hand)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPlayerConnected flips a player's connection flag.
func (s *Store) SetPlayerConnected(ctx context.Context, roomID, userID uuid.UUID, connected bool) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE players SET is_connected = $3 WHERE room_id = $1 AND user_id = $2`,
		roomID, userID, connected,
	)
	if err != nil {
		return fmt.Errorf("set player connected: %w", err)
	}
	return nil
}

// GetGameState fetches the authoritative state row for a room.
func (s *Store) GetGameState(ctx context.Context, roomID uuid.UUID) (models.GameStateRecord, error) {
	var rec models.GameStateRecord
	var placedJSON, orderJSON, boneJSON []byte
	var currentID *uuid.UUID
	err := s.Pool.QueryRow(ctx,
		`SELECT room_id, left_end, right_end, placed_tiles, current_player_id, turn_order, boneyard, updated_at
		 FROM game_state WHERE room_id = $1`,
		roomID,
	).Scan(&rec.RoomID, &rec.LeftEnd, &rec.RightEnd, &placedJSON, &currentID, &orderJSON, &boneJSON, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GameStateRecord{}, ErrStateNotFound
	}
	if err != nil {
		return models.GameStateRecord{}, fmt.Errorf("get game state: %w", err)
	}
	if currentID != nil {
		rec.CurrentPlayerID = *currentID
	}
	if err := json.Unmarshal(placedJSON, &rec.PlacedTiles); err != nil {
		return models.GameStateRecord{}, fmt.Errorf("decode placed tiles: %w", err)
	}
	if err := json.Unmarshal(orderJSON, &rec.TurnOrder); err != nil {
		return models.GameStateRecord{}, fmt.Errorf("decode turn order: %w", err)
	}
	if err := json.Unmarshal(boneJSON, &rec.Boneyard); err != nil {
		return models.GameStateRecord{}, fmt.Errorf("decode boneyard: %w", err)
	}
	return rec, nil
}

// StartGameTx atomically deals the round: every player's hand, the initial
// state row, and the room status move in one transaction, so readers never
// observe a half-dealt game.
func (s *Store) StartGameTx(ctx context.Context, roomID uuid.UUID, hands map[uuid.UUID][]models.Tile, rec models.GameStateRecord) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin start game: %w", err)
	}
	defer tx.Rollback(ctx)

	for userID, hand := range hands {
		handJSON, err := json.Marshal(hand)
		if err != nil {
			return fmt.Errorf("encode hand: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE players SET hand = $3 WHERE room_id = $1 AND user_id = $2`,
			roomID, userID, handJSON,
		)
		if err != nil {
			return fmt.Errorf("write hand: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("write hand: player %s not in room", userID)
		}
	}

	placedJSON, orderJSON, boneJSON, err := encodeStateJSON(rec)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO game_state (room_id, left_end, right_end, placed_tiles, current_player_id, turn_order, boneyard)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (room_id) DO UPDATE SET
		   left_end = EXCLUDED.left_end,
		   right_end = EXCLUDED.right_end,
		   placed_tiles = EXCLUDED.placed_tiles,
		   current_player_id = EXCLUDED.current_player_id,
		   turn_order = EXCLUDED.turn_order,
		   boneyard = EXCLUDED.boneyard,
		   updated_at = now()`,
		roomID, rec.LeftEnd, rec.RightEnd, placedJSON, rec.CurrentPlayerID, orderJSON, boneJSON,
	)
	if err != nil {
		return fmt.Errorf("write game state: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE rooms SET status = $2, updated_at = now() WHERE id = $1`,
		roomID, models.RoomInProgress,
	); err != nil {
		return fmt.Errorf("update room status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit start game: %w", err)
	}
	return nil
}

// ApplyPlay persists the state after an accepted move, conditional on the
// acting player still being the stored current player. A stale actor gets
// ErrConcurrencyConflict and must refetch.
func (s *Store) ApplyPlay(ctx context.Context, roomID, actorID uuid.UUID, newHand []models.Tile, rec models.GameStateRecord) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin apply play: %w", err)
	}
	defer tx.Rollback(ctx)

	placedJSON, orderJSON, boneJSON, err := encodeStateJSON(rec)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE game_state SET
		   left_end = $3, right_end = $4, placed_tiles = $5,
		   current_player_id = $6, turn_order = $7, boneyard = $8,
		   updated_at = now()
		 WHERE room_id = $1 AND current_player_id = $2`,
		roomID, actorID,
		rec.LeftEnd, rec.RightEnd, placedJSON, rec.CurrentPlayerID, orderJSON, boneJSON,
	)
	if err != nil {
		return fmt.Errorf("update game state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrencyConflict
	}

	if newHand != nil {
		handJSON, err := json.Marshal(newHand)
		if err != nil {
			return fmt.Errorf("encode hand: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE players SET hand = $3 WHERE room_id = $1 AND user_id = $2`,
			roomID, actorID, handJSON,
		); err != nil {
			return fmt.Errorf("write hand: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit apply play: %w", err)
	}
	return nil
}

// UpdatePlayerScore writes a player's end-of-round score.
func (s *Store) UpdatePlayerScore(ctx context.Context, roomID, userID uuid.UUID, score int) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE players SET score = $3 WHERE room_id = $1 AND user_id = $2`,
		roomID, userID, score,
	)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}

func encodeStateJSON(rec models.GameStateRecord) (placed, order, bone []byte, err error) {
	if rec.PlacedTiles == nil {
		rec.PlacedTiles = []models.PlacedTile{}
	}
	if rec.TurnOrder == nil {
		rec.TurnOrder = []uuid.UUID{}
	}
	if rec.Boneyard == nil {
		rec.Boneyard = []models.Tile{}
	}
	if placed, err = json.Marshal(rec.PlacedTiles); err != nil {
		return nil, nil, nil, fmt.Errorf("encode placed tiles: %w", err)
	}
	if order, err = json.Marshal(rec.TurnOrder); err != nil {
		return nil, nil, nil, fmt.Errorf("encode turn order: %w", err)
	}
	if bone, err = json.Marshal(rec.Boneyard); err != nil {
		return nil, nil, nil, fmt.Errorf("encode boneyard: %w", err)
	}
	return placed, order, bone, nil
}
