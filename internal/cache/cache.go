// Package cache wraps the Redis client used for cross-instance room change
// notifications and the append-only game action history.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the shared Redis client. Nil when Redis is not configured; callers
// treat a nil client as "feature disabled" rather than an error.
var Rdb *redis.Client

// InitRedis connects using REDIS_ADDR (default localhost:6379) and verifies
// the connection with a ping.
func InitRedis() error {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	Rdb = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		Rdb = nil
		return fmt.Errorf("redis ping: %w", err)
	}
	logrus.Infof("connected to redis at %s", addr)
	return nil
}

// ChangeEvent is published whenever a room's persisted state changes, so
// every instance can refetch and push fresh state to its subscribers.
type ChangeEvent struct {
	RoomID    uuid.UUID `json:"roomId"`
	Table     string    `json:"table"` // "rooms", "players" or "game_state"
	Timestamp int64     `json:"ts"`
}

func roomChannel(roomID uuid.UUID) string {
	return "room_changes:" + roomID.String()
}

// PublishRoomChange notifies all subscribed instances that roomID changed.
func PublishRoomChange(ctx context.Context, roomID uuid.UUID, table string) error {
	if Rdb == nil {
		return nil
	}
	ev := ChangeEvent{RoomID: roomID, Table: table, Timestamp: time.Now().UnixMilli()}
	data, err := json.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := Rdb.Publish(ctx, roomChannel(roomID), data).Err(); err != nil {
		return fmt.Errorf("publish room change: %w", err)
	}
	return nil
}

// SubscribeRoomChanges delivers change events for one room until ctx is
// cancelled. The channel closes on cancellation or subscription failure.
func SubscribeRoomChanges(ctx context.Context, roomID uuid.UUID) (<-chan ChangeEvent, error) {
	if Rdb == nil {
		return nil, fmt.Errorf("redis not initialized")
	}
	sub := Rdb.Subscribe(ctx, roomChannel(roomID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe room changes: %w", err)
	}

	out := make(chan ChangeEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logrus.Warnf("bad change event payload on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- ev:
				default:
					logrus.Warnf("change event dropped for room %s, subscriber too slow", roomID)
				}
			}
		}
	}()
	return out, nil
}

// RedisNotifier adapts the package-level pub/sub functions to an interface
// value for the session layer.
type RedisNotifier struct{}

func (RedisNotifier) PublishRoomChange(ctx context.Context, roomID uuid.UUID, table string) error {
	return PublishRoomChange(ctx, roomID, table)
}

func (RedisNotifier) SubscribeRoomChanges(ctx context.Context, roomID uuid.UUID) (<-chan ChangeEvent, error) {
	return SubscribeRoomChanges(ctx, roomID)
}

// GameActionRecord is one entry of the per-game action history list.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"gameId"`
	RoomID        uuid.UUID              `json:"roomId"`
	ActionIndex   int                    `json:"actionIndex"`
	ActorUserID   uuid.UUID              `json:"actorUserId"`
	ActionType    string                 `json:"actionType"`
	ActionPayload map[string]interface{} `json:"actionPayload"`
	Timestamp     int64                  `json:"timestamp"`
}

// actionHistoryTTL bounds how long finished-game histories linger.
const actionHistoryTTL = 24 * time.Hour

// PublishGameAction appends a record to the game's action history list.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	if Rdb == nil {
		return nil
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	key := "game_actions:" + rec.GameID.String()
	pipe := Rdb.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, actionHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append action record: %w", err)
	}
	return nil
}

// GetGameActions returns the recorded history for a game in append order.
func GetGameActions(ctx context.Context, gameID uuid.UUID) ([]GameActionRecord, error) {
	if Rdb == nil {
		return nil, fmt.Errorf("redis not initialized")
	}
	raw, err := Rdb.LRange(ctx, "game_actions:"+gameID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read action history: %w", err)
	}
	out := make([]GameActionRecord, 0, len(raw))
	for _, item := range raw {
		var rec GameActionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode action record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
