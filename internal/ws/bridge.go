package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const presenceTTL = 90 * time.Second

// RedisBridge wraps the in-memory hub with cross-process fan-out over redis
// pub/sub. Each node publishes its broadcasts and re-delivers frames from
// other nodes to its local rooms; its own frames are skipped by origin id.
// It also mirrors per-user liveness into redis keys so other services can
// cheaply check who is connected somewhere.
type RedisBridge struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
	nodeID  string
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

type bridgeFrame struct {
	Origin string    `json:"origin"`
	Scope  string    `json:"scope"` // "room" or "all"
	ChatID string    `json:"chat_id,omitempty"`
	Env    *Envelope `json:"env"`
}

func NewRedisBridge(hub *Hub, rdb *redis.Client, channel string, log *zap.SugaredLogger) *RedisBridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBridge{
		hub:     hub,
		rdb:     rdb,
		channel: channel,
		nodeID:  uuid.NewString(),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go b.subscribe()
	return b
}

func (b *RedisBridge) subscribe() {
	pubsub := b.rdb.Subscribe(b.ctx, b.channel)
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				b.log.Warn("redis subscription closed")
				return
			}
			var frame bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			if frame.Origin == b.nodeID || frame.Env == nil {
				continue
			}
			switch frame.Scope {
			case "room":
				b.hub.BroadcastRoom(frame.ChatID, frame.Env)
			case "all":
				b.hub.BroadcastAll(frame.Env)
			}
		}
	}
}

func (b *RedisBridge) publish(scope, chatID string, env *Envelope) {
	frame := bridgeFrame{Origin: b.nodeID, Scope: scope, ChatID: chatID, Env: env}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(b.ctx, b.channel, payload).Err(); err != nil {
		b.log.Warnw("bridge publish failed", "err", err)
	}
}

func (b *RedisBridge) Register(c *Client) int {
	n := b.hub.Register(c)
	_ = b.rdb.Set(b.ctx, "presence:"+c.UserID, "online", presenceTTL).Err()
	return n
}

func (b *RedisBridge) Unregister(c *Client) int {
	n := b.hub.Unregister(c)
	if n == 0 {
		_ = b.rdb.Del(b.ctx, "presence:"+c.UserID).Err()
	}
	return n
}

func (b *RedisBridge) JoinRoom(chatID, connID string)  { b.hub.JoinRoom(chatID, connID) }
func (b *RedisBridge) LeaveRoom(chatID, connID string) { b.hub.LeaveRoom(chatID, connID) }

func (b *RedisBridge) BroadcastRoom(chatID string, env *Envelope) {
	b.hub.BroadcastRoom(chatID, env)
	b.publish("room", chatID, env)
}

// BroadcastRoomExcept excludes a connection id, which only exists on this
// node; remote nodes deliver to their whole room.
func (b *RedisBridge) BroadcastRoomExcept(chatID, exceptConnID string, env *Envelope) {
	b.hub.BroadcastRoomExcept(chatID, exceptConnID, env)
	b.publish("room", chatID, env)
}

func (b *RedisBridge) BroadcastAll(env *Envelope) {
	b.hub.BroadcastAll(env)
	b.publish("all", "", env)
}

// SendTo stays local: the acting connection lives on this node.
func (b *RedisBridge) SendTo(connID string, env *Envelope) {
	b.hub.SendTo(connID, env)
}

func (b *RedisBridge) Close() {
	b.cancel()
}
