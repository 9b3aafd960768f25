package ws

import (
	"encoding/json"
	"sync"
)

// Broadcaster is the capability surface the gateway works against. The
// in-memory Hub serves a single process; a bridge implementation layers
// cross-process fan-out on top without the gateway noticing.
type Broadcaster interface {
	Register(c *Client) int
	Unregister(c *Client) int
	JoinRoom(chatID, connID string)
	LeaveRoom(chatID, connID string)
	BroadcastRoom(chatID string, env *Envelope)
	BroadcastRoomExcept(chatID, exceptConnID string, env *Envelope)
	BroadcastAll(env *Envelope)
	SendTo(connID string, env *Envelope)
}

// Hub is the process-local connection registry: connection id to client,
// user id to live connection set, chat id to room membership. It is a cache
// of liveness only and is rebuilt empty on restart.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	users   map[string]map[string]*Client // userID -> connID -> client
	rooms   map[string]map[string]*Client // chatID -> connID -> client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		users:   make(map[string]map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds the connection and returns how many live connections the
// user now has. The count is taken under the same lock as the mutation so a
// concurrent connect/disconnect of the same user cannot observe a stale
// value.
func (h *Hub) Register(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
	}
	h.users[c.UserID][c.ID] = c
	return len(h.users[c.UserID])
}

// Unregister removes the connection from every map and returns the user's
// remaining live connection count.
func (h *Hub) Unregister(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.ID)
	for _, room := range h.rooms {
		delete(room, c.ID)
	}
	conns := h.users[c.UserID]
	if conns == nil {
		return 0
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(h.users, c.UserID)
		return 0
	}
	return len(conns)
}

func (h *Hub) JoinRoom(chatID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[string]*Client)
	}
	h.rooms[chatID][connID] = c
}

func (h *Hub) LeaveRoom(chatID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[chatID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

func (h *Hub) BroadcastRoom(chatID string, env *Envelope) {
	h.broadcastRoom(chatID, "", env)
}

// BroadcastRoomExcept delivers to every connection in the room except the
// given one. Typing events use it to avoid echoing the sender.
func (h *Hub) BroadcastRoomExcept(chatID, exceptConnID string, env *Envelope) {
	h.broadcastRoom(chatID, exceptConnID, env)
}

func (h *Hub) broadcastRoom(chatID, exceptConnID string, env *Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, c := range h.rooms[chatID] {
		if connID == exceptConnID {
			continue
		}
		c.Enqueue(b)
	}
}

func (h *Hub) BroadcastAll(env *Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Enqueue(b)
	}
}

// SendTo delivers to a single connection. Error events go through here so
// only the acting connection sees them.
func (h *Hub) SendTo(connID string, env *Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		c.Enqueue(b)
	}
}

// ConnectionCount reports the user's live connections on this node.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Close drops every client. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.Close()
	}
	h.clients = make(map[string]*Client)
	h.users = make(map[string]map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
}
