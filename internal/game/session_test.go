package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

func TestLocalSessionNotifiesOnAction(t *testing.T) {
	g, _, _ := setupTestGame(t)
	sess := NewLocalSession(g)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := sess.SubscribeToChanges(ctx)
	require.NoError(t, err)

	starter := currentTurnPlayer(g)
	require.NoError(t, sess.ApplyAction(ctx, starter.UserID, playAction(g, g.Engine.Opening, "")))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification after an applied action")
	}

	state, err := sess.FetchState(ctx, starter.UserID)
	require.NoError(t, err)
	assert.Equal(t, "playing", state.Phase)
	require.Len(t, state.Chain, 1)
}

func TestLocalSessionSubscriptionClosesOnCancel(t *testing.T) {
	g, _, _ := setupTestGame(t)
	sess := NewLocalSession(g)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := sess.SubscribeToChanges(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel must close after cancellation")
	case <-time.After(time.Second):
		t.Fatal("channel did not close after cancellation")
	}

	// Further actions must not panic with the subscriber gone.
	starter := currentTurnPlayer(g)
	require.NoError(t, sess.ApplyAction(context.Background(), starter.UserID, models.GameAction{
		ActionType: models.ActionPlayTile,
		Payload:    map[string]interface{}{"tileId": g.Tiles.IDOf(g.Engine.Opening).String()},
	}))
}
