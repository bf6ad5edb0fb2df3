// session.go — Session adapters: one in-process, one store-synchronized.
package game

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// Session abstracts how a client drives a running game. LocalSession keeps
// everything in process memory; StoreSession routes every action through the
// shared store so multiple instances stay consistent.
type Session interface {
	FetchState(ctx context.Context, forUser uuid.UUID) (ObfGameState, error)
	ApplyAction(ctx context.Context, forUser uuid.UUID, action models.GameAction) error
	SubscribeToChanges(ctx context.Context) (<-chan struct{}, error)
}

// LocalSession wraps an in-memory DominoGame. State change notifications
// fire after every applied action.
type LocalSession struct {
	Game *DominoGame

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewLocalSession wraps a game into a Session.
func NewLocalSession(g *DominoGame) *LocalSession {
	return &LocalSession{
		Game: g,
		subs: make(map[chan struct{}]struct{}),
	}
}

// FetchState returns the redacted state for one observer.
func (s *LocalSession) FetchState(_ context.Context, forUser uuid.UUID) (ObfGameState, error) {
	return s.Game.GetCurrentObfuscatedGameState(forUser), nil
}

// ApplyAction routes an action into the game and notifies subscribers.
// Rejected actions still notify; subscribers refetch and observe no change.
func (s *LocalSession) ApplyAction(_ context.Context, forUser uuid.UUID, action models.GameAction) error {
	s.Game.HandlePlayerAction(forUser, action)
	s.notify()
	return nil
}

// SubscribeToChanges returns a channel that ticks after every applied
// action. The channel closes when ctx is cancelled.
func (s *LocalSession) SubscribeToChanges(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (s *LocalSession) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default: // subscriber already has a pending tick
		}
	}
}
