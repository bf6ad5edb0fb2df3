// ws.go — Per-room websocket hub bridging connections to the game session.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alejandrejorge-design/domino-domination-online/internal/cache"
	"github.com/alejandrejorge-design/domino-domination-online/internal/database"
	"github.com/alejandrejorge-design/domino-domination-online/internal/game"
	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

const writeTimeout = 5 * time.Second

// roomHub owns the in-memory game of one room plus the sockets attached to
// it. Hubs are created lazily on first contact with a room.
type roomHub struct {
	roomID  uuid.UUID
	Game    *game.DominoGame
	Session game.Session

	mu    sync.Mutex
	conns map[uuid.UUID]*websocket.Conn
}

// hub returns the room's hub, creating and wiring it on first use. The
// store's host id decides who may start, regardless of attach order.
func (s *Server) hub(roomID, hostID uuid.UUID) *roomHub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hubs[roomID]; ok {
		if h.Game.HostID == uuid.Nil {
			h.Game.HostID = hostID
		}
		return h
	}

	g := game.NewDominoGame()
	g.RoomID = roomID
	g.HostID = hostID
	h := &roomHub{
		roomID: roomID,
		Game:   g,
		conns:  make(map[uuid.UUID]*websocket.Conn),
	}
	h.Session = game.NewLocalSession(g)

	g.BroadcastFn = h.broadcastAll
	g.BroadcastToPlayerFn = h.sendTo
	g.OnGameEnd = s.onGameEnd

	s.hubs[roomID] = h
	return h
}

// onGameEnd persists the round outcome and notifies other instances.
func (s *Server) onGameEnd(roomID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for userID, score := range scores {
		if err := s.Store.UpdatePlayerScore(ctx, roomID, userID, score); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("failed persisting score")
		}
	}
	if err := s.Store.UpdateRoomStatus(ctx, roomID, models.RoomFinished); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("failed closing room")
	}
	if err := cache.PublishRoomChange(ctx, roomID, "rooms"); err != nil {
		logrus.WithError(err).Warn("failed publishing room change")
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "winner": winner}).Info("round persisted")
}

func (h *roomHub) broadcastAll(ev game.GameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conn := range h.conns {
		h.writeConn(userID, conn, ev)
	}
}

func (h *roomHub) sendTo(playerID uuid.UUID, ev game.GameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[playerID]
	if !ok {
		return
	}
	h.writeConn(playerID, conn, ev)
}

// writeConn writes one event; a failed write closes the socket and lets the
// read loop handle the disconnect. Assumes h.mu is held.
func (h *roomHub) writeConn(userID uuid.UUID, conn *websocket.Conn, ev game.GameEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Debug("websocket write failed")
		conn.Close(websocket.StatusAbnormalClosure, "write failed")
	}
}

func (h *roomHub) register(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.conns[userID]; ok {
		old.Close(websocket.StatusPolicyViolation, "superseded by a new connection")
	}
	h.conns[userID] = conn
}

func (h *roomHub) unregister(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == conn {
		delete(h.conns, userID)
	}
}

// handleWS upgrades the connection, seats the user, and pumps actions into
// the game until the socket dies.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed room id")
		return
	}
	room, err := s.Store.GetRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	// Seat the user; an existing seat is a reconnect, not an error.
	player, err := s.Store.JoinRoom(r.Context(), roomID, user.ID, user.Username)
	seat := player.Seat
	if err != nil {
		if !errors.Is(err, database.ErrAlreadyJoined) && !errors.Is(err, database.ErrRoomNotJoinable) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		// Reconnect: the seat lives in the store.
		seated, perr := s.Store.GetPlayers(r.Context(), roomID)
		if perr != nil {
			writeError(w, http.StatusInternalServerError, "could not resolve seat")
			return
		}
		found := false
		for _, sp := range seated {
			if sp.UserID == user.ID {
				seat = sp.Seat
				found = true
				break
			}
		}
		if !found {
			writeError(w, http.StatusConflict, "room is not accepting players")
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logrus.WithError(err).Warn("websocket accept failed")
		return
	}

	hub := s.hub(roomID, room.HostID)
	hub.register(user.ID, conn)
	hub.Game.AddPlayer(&models.Player{
		ID:          uuid.New(),
		RoomID:      roomID,
		UserID:      user.ID,
		DisplayName: user.Username,
		Seat:        seat,
		Connected:   true,
		Conn:        conn,
	})
	logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": user.ID}).Info("websocket attached")

	defer func() {
		hub.unregister(user.ID, conn)
		hub.Game.HandleDisconnect(user.ID)
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	ctx := r.Context()
	for {
		var action models.GameAction
		if err := wsjson.Read(ctx, conn, &action); err != nil {
			logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": user.ID}).
				WithError(err).Debug("websocket read loop ended")
			return
		}
		hub.Game.HandlePlayerAction(user.ID, action)
	}
}
