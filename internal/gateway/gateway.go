package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/teamchat-service/internal/auth"
	"github.com/fathima-sithara/teamchat-service/internal/events"
	"github.com/fathima-sithara/teamchat-service/internal/models"
	"github.com/fathima-sithara/teamchat-service/internal/store"
	wspkg "github.com/fathima-sithara/teamchat-service/internal/ws"
)

type Options struct {
	PingInterval     time.Duration
	ReadDeadline     time.Duration
	MaxMessageSize   int64
	ActionsPerSecond int
}

func (o *Options) fill() {
	if o.PingInterval == 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadDeadline == 0 {
		o.ReadDeadline = 60 * time.Second
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.ActionsPerSecond == 0 {
		o.ActionsPerSecond = 20
	}
}

// Gateway authenticates real-time connections, joins them to chat rooms and
// relays actions between the stores and connected peers.
type Gateway struct {
	hub      wspkg.Broadcaster
	chats    *store.ChatStore
	presence *store.PresenceStore
	tokens   *auth.Manager
	events   *events.Publisher
	log      *zap.SugaredLogger
	opts     Options
}

func New(hub wspkg.Broadcaster, chats *store.ChatStore, presence *store.PresenceStore, tokens *auth.Manager, pub *events.Publisher, log *zap.SugaredLogger, opts Options) *Gateway {
	opts.fill()
	return &Gateway{
		hub:      hub,
		chats:    chats,
		presence: presence,
		tokens:   tokens,
		events:   pub,
		log:      log,
		opts:     opts,
	}
}

// Upgrade gates the HTTP->websocket upgrade.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the fiber websocket handler for /ws.
func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		g.serve(conn)
	})
}

func (g *Gateway) serve(conn *websocket.Conn) {
	token := conn.Query("token")
	if token == "" {
		if header := conn.Headers("Authorization"); header != "" {
			token, _ = auth.ParseBearerToken(header)
		}
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		// refused before any room join
		_ = conn.Close()
		return
	}
	userID := claims.Subject

	client := wspkg.NewClient(conn, userID, claims.Email, g.opts.ActionsPerSecond)
	g.hub.Register(client)
	go client.WritePump(g.opts.PingInterval)

	ctx := context.Background()
	g.log.Infow("connected", "user", userID, "conn", client.ID)

	if _, err := g.presence.GoOnline(ctx, userID); err != nil {
		g.log.Warnw("presence online failed", "user", userID, "err", err)
	}
	g.hub.BroadcastAll(wspkg.NewEnvelope(wspkg.EventPresence, wspkg.PresenceEvent{
		UserID: userID,
		Status: string(models.PresenceOnline),
	}))

	chatIDs, err := g.chats.MemberChatIDs(ctx, userID)
	if err != nil {
		g.log.Warnw("room enumeration failed", "user", userID, "err", err)
	}
	for _, chatID := range chatIDs {
		g.hub.JoinRoom(chatID, client.ID)
	}

	defer g.detach(ctx, client)

	conn.SetReadLimit(g.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(g.opts.ReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.opts.ReadDeadline))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.opts.ReadDeadline))
		if !client.Allow() {
			continue
		}
		var env wspkg.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		g.dispatch(ctx, client, &env)
	}
}

func (g *Gateway) detach(ctx context.Context, client *wspkg.Client) {
	remaining := g.hub.Unregister(client)
	client.Close()
	g.log.Infow("disconnected", "user", client.UserID, "conn", client.ID)

	// A user with zero live connections is offline no matter what their last
	// explicit status write said.
	if remaining == 0 {
		if _, err := g.presence.GoOffline(ctx, client.UserID); err != nil {
			g.log.Warnw("presence offline failed", "user", client.UserID, "err", err)
		}
		g.hub.BroadcastAll(wspkg.NewEnvelope(wspkg.EventPresence, wspkg.PresenceEvent{
			UserID: client.UserID,
			Status: string(models.PresenceOffline),
		}))
	}
}

func (g *Gateway) sendError(client *wspkg.Client, msg string) {
	g.hub.SendTo(client.ID, wspkg.NewEnvelope(wspkg.EventError, wspkg.ErrorEvent{Message: msg}))
}

func (g *Gateway) dispatch(ctx context.Context, client *wspkg.Client, env *wspkg.Envelope) {
	switch env.Type {
	case wspkg.ActionJoin:
		g.handleJoin(ctx, client, env)
	case wspkg.ActionLeave:
		g.handleLeave(client, env)
	case wspkg.ActionMessage:
		g.handleMessage(ctx, client, env)
	case wspkg.ActionTyping:
		g.handleTyping(ctx, client, env)
	case wspkg.ActionRead:
		g.handleRead(ctx, client, env)
	case wspkg.ActionPresence:
		g.handlePresence(ctx, client, env)
	case wspkg.ActionHeartbeat:
		if err := g.presence.Heartbeat(ctx, client.UserID); err != nil {
			g.log.Warnw("heartbeat failed", "user", client.UserID, "err", err)
		}
	case wspkg.ActionReactionAdd:
		g.handleReaction(ctx, client, env, true)
	case wspkg.ActionReactionRemove:
		g.handleReaction(ctx, client, env, false)
	default:
		g.sendError(client, "unknown action")
	}
}

// handleJoin refuses silently when the user is not a member; refusal is
// logged, not surfaced.
func (g *Gateway) handleJoin(ctx context.Context, client *wspkg.Client, env *wspkg.Envelope) {
	var p wspkg.JoinPayload
	if err := env.Decode(&p); err != nil || p.ChatID == "" {
		g.sendError(client, "malformed payload")
		return
	}
	member, err := g.chats.IsMember(ctx, p.ChatID, client.UserID)
	if err != nil {
		g.log.Warnw("membership check failed", "chat", p.ChatID, "err", err)
		return
	}
	if !member {
		g.log.Infow("join refused", "user", client.UserID, "chat", p.ChatID)
		return
	}
	g.hub.JoinRoom(p.ChatID, client.ID)
}

func (g *Gateway) handleLeave(client *wspkg.Client, env *wspkg.Envelope) {
	var p wspkg.JoinPayload
	if err := env.Decode(&p); err != nil || p.ChatID == "" {
		g.sendError(client, "malformed payload")
		return
	}
	g.hub.LeaveRoom(p.ChatID, client.ID)
}

func (g *Gateway) handleMessage(ctx context.Context, client *wspkg.Client, env *wspkg.Envelope) {
	var p wspkg.MessagePayload
	if err := env.Decode(&p); err != nil || p.ChatID == "" {
		g.sendError(client, "malformed payload")
		return
	}
	var replyTo *string
	if p.ReplyToID != "" {
		replyTo = &p.ReplyToID
	}
	msg, err := g.chats.SendMessage(ctx, p.ChatID, client.UserID, p.Content, models.ContentText, replyTo, nil)
	if err != nil {
		g.sendError(client, "failed to send message")
		return
	}
	chat, err := g.chats.GetChat(ctx, p.ChatID, client.UserID)
	if err != nil {
		g.sendError(client, "failed to send message")
		return
	}

	g.hub.BroadcastRoom(p.ChatID, wspkg.NewEnvelope(wspkg.EventMessage, wspkg.MessageEvent{
		Message: msg,
		Chat:    wspkg.ChatRef{ID: chat.ID, Type: chat.Type},
	}))
	g.events.Publish(ctx, events.TypeMessageSent, p.ChatID, client.UserID, msg)
}

// handleTyping is broadcast-only and never echoed back to the sender.
func (g *Gateway) handleTyping(ctx context.Context, client *wspkg.Client, env *wspkg.Envelope) {
	var p wspkg.TypingPayload
	if err := env.Decode(&p); err != nil || p.ChatID == "" {
		return
	}
	member, err := g.chats.IsMember(ctx, p.ChatID, client.UserID)
	if err != nil || !member {
		return
	}
	name, err := g.chats.UserDisplayName(ctx, client.UserID)
	if err != nil {
		name = client.Email
	}
	g.hub.BroadcastRoomExcept(p.ChatID, client.ID, wspkg.NewEnvelope(wspkg.EventTyping, wspkg.TypingEvent{
		ChatID:   p.ChatID,
		UserID:   client.UserID,
		UserName: name,
		IsTyping: p.IsTyping,
	}))
}

func (g *Gateway) handleRead(ctx context.Context, client *wspkg.Client, env *wspkg.Envelope) {
	var p wspkg.ReadPayload
	if err := env.Decode(&p); err != nil || p.ChatID == "" {
		g.sendError(client, "malformed payload")
		return
	}
	var msgID *string
	if p.MessageID != "" {
		msgID = &p.MessageID
	}
	if err := g.chats.MarkAsRead(ctx, p.ChatID, client.UserID, msgID); err != nil {
		g.sendError(client, "failed to mark as read")
		return
	}
	g.hub.BroadcastRoom(p.ChatID, wspkg.NewEnvelope(wspkg.EventRead, wspkg.ReadEvent{
		ChatID:    p.ChatID,
		UserID:    client.UserID,
		MessageID: p.MessageID,
	}))
}

// handlePresence persists then broadcasts system-wide; presence is global,
// not per-chat.
func (g *Gateway) handlePresence(ctx context.Context, client *wspkg.Client, env *wspkg.Envelope) {
	var p wspkg.PresencePayload
	if err := env.Decode(&p); err != nil || p.Status == "" {
		g.sendError(client, "malformed payload")
		return
	}
	var text *string
	if p.StatusText != "" {
		text = &p.StatusText
	}
	if _, err := g.presence.SetPresence(ctx, client.UserID, models.PresenceStatus(p.Status), text); err != nil {
		g.sendError(client, "failed to update presence")
		return
	}
	g.hub.BroadcastAll(wspkg.NewEnvelope(wspkg.EventPresence, wspkg.PresenceEvent{
		UserID:     client.UserID,
		Status:     p.Status,
		StatusText: p.StatusText,
	}))
}

func (g *Gateway) handleReaction(ctx context.Context, client *wspkg.Client, env *wspkg.Envelope, add bool) {
	var p wspkg.ReactionPayload
	if err := env.Decode(&p); err != nil || p.MessageID == "" || p.ChatID == "" {
		g.sendError(client, "malformed payload")
		return
	}
	var (
		groups []models.ReactionGroup
		err    error
	)
	if add {
		groups, err = g.chats.AddReaction(ctx, p.MessageID, client.UserID, p.Emoji)
	} else {
		groups, err = g.chats.RemoveReaction(ctx, p.MessageID, client.UserID, p.Emoji)
	}
	if err != nil {
		g.sendError(client, "failed to update reaction")
		return
	}
	g.hub.BroadcastRoom(p.ChatID, wspkg.NewEnvelope(wspkg.EventReaction, wspkg.ReactionEvent{
		MessageID: p.MessageID,
		Reactions: groups,
	}))
}
