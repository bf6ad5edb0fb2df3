// Package server exposes the room lifecycle over HTTP and the game itself
// over websockets.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alejandrejorge-design/domino-domination-online/internal/auth"
	"github.com/alejandrejorge-design/domino-domination-online/internal/database"
	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// Server holds the shared dependencies and the per-room hubs.
type Server struct {
	Store *database.Store

	mu   sync.Mutex
	hubs map[uuid.UUID]*roomHub
}

// New creates a server bound to the store.
func New(store *database.Store) *Server {
	return &Server{
		Store: store,
		hubs:  make(map[uuid.UUID]*roomHub),
	}
}

// Routes registers all HTTP endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /rooms", s.withAuth(s.handleCreateRoom))
	mux.HandleFunc("GET /rooms", s.withAuth(s.handleListRooms))
	mux.HandleFunc("POST /rooms/{id}/join", s.withAuth(s.handleJoinRoom))
	mux.HandleFunc("GET /rooms/{id}/state", s.withAuth(s.handleRoomState))
	mux.HandleFunc("GET /rooms/{id}/ws", s.handleWS)
	return mux
}

type contextUser struct {
	ID       uuid.UUID
	Username string
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user contextUser)

// withAuth requires a bearer token and resolves the acting user.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, user)
	}
}

// userFromRequest accepts the token from the Authorization header or, for
// websocket upgrades where headers are awkward, a query parameter.
func userFromRequest(r *http.Request) (contextUser, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return contextUser{}, auth.ErrAuthRequired
	}
	id, username, err := auth.ParseToken(token)
	if err != nil {
		return contextUser{}, err
	}
	return contextUser{ID: id, Username: username}, nil
}

// handleLogin issues a guest identity for a display name. Full account
// management lives outside this service.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}
	userID := uuid.New()
	token, err := auth.CreateToken(userID, req.Username)
	if err != nil {
		logrus.WithError(err).Error("failed creating token")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  models.User{ID: userID, Username: req.Username},
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, user contextUser) {
	var req struct {
		Name       string `json:"name"`
		MaxPlayers int    `json:"maxPlayers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "room name required")
		return
	}
	if req.MaxPlayers < 2 || req.MaxPlayers > 4 {
		req.MaxPlayers = 4
	}

	room, err := s.Store.CreateRoom(r.Context(), req.Name, user.ID, req.MaxPlayers)
	if err != nil {
		logrus.WithError(err).Error("failed creating room")
		writeError(w, http.StatusInternalServerError, "could not create room")
		return
	}
	if _, err := s.Store.JoinRoom(r.Context(), room.ID, user.ID, user.Username); err != nil {
		logrus.WithError(err).Error("host failed to join own room")
		writeError(w, http.StatusInternalServerError, "could not join room")
		return
	}
	room.PlayerCount = 1
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, _ contextUser) {
	rooms, err := s.Store.ListOpenRooms(r.Context())
	if err != nil {
		logrus.WithError(err).Error("failed listing rooms")
		writeError(w, http.StatusInternalServerError, "could not list rooms")
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, user contextUser) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed room id")
		return
	}
	player, err := s.Store.JoinRoom(r.Context(), roomID, user.ID, user.Username)
	switch {
	case errors.Is(err, database.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, database.ErrRoomFull):
		writeError(w, http.StatusConflict, "room is full")
	case errors.Is(err, database.ErrRoomNotJoinable):
		writeError(w, http.StatusConflict, "room is not accepting players")
	case errors.Is(err, database.ErrAlreadyJoined):
		writeError(w, http.StatusConflict, "already seated in this room")
	case err != nil:
		logrus.WithError(err).Error("failed joining room")
		writeError(w, http.StatusInternalServerError, "could not join room")
	default:
		writeJSON(w, http.StatusOK, player)
	}
}

// handleRoomState serves the redacted state for clients polling over HTTP
// instead of holding a websocket.
func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request, user contextUser) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed room id")
		return
	}
	room, err := s.Store.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		logrus.WithError(err).Error("failed fetching room")
		writeError(w, http.StatusInternalServerError, "could not fetch state")
		return
	}
	hub := s.hub(roomID, room.HostID)
	state, err := hub.Session.FetchState(r.Context(), user.ID)
	if err != nil {
		logrus.WithError(err).Error("failed fetching room state")
		writeError(w, http.StatusInternalServerError, "could not fetch state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed writing response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
