// Package kds pushes order lifecycle events to kitchen displays over
// websockets. Each connection only sees its own restaurant.
package kds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/mozoqr/events"
	"github.com/yeremiapane/mozoqr/utils"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	role string
	mu   sync.Mutex
}

// Hub holds the connected displays grouped by restaurant.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*websocket.Conn]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*websocket.Conn]*client)}
}

// Register adds a connection to the restaurant's display group.
func (h *Hub) Register(restaurantID uint, conn *websocket.Conn, role string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.clients[restaurantID]
	if !ok {
		group = make(map[*websocket.Conn]*client)
		h.clients[restaurantID] = group
	}
	group[conn] = &client{conn: conn, role: role}
}

// Unregister removes the connection and closes it.
func (h *Hub) Unregister(restaurantID uint, conn *websocket.Conn) {
	h.mu.Lock()
	if group, ok := h.clients[restaurantID]; ok {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.clients, restaurantID)
		}
	}
	h.mu.Unlock()
	conn.Close()
}

// Count returns how many displays are connected for a restaurant.
func (h *Hub) Count(restaurantID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[restaurantID])
}

// Publish sends the event to every display of the event's restaurant.
func (h *Hub) Publish(_ context.Context, event events.Event) error {
	return h.Broadcast(event.RestaurantID, Message{Event: event.Type, Data: event})
}

// Broadcast writes msg to the restaurant's displays. A failed write drops
// that connection; it is not an error for the caller.
func (h *Hub) Broadcast(restaurantID uint, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[restaurantID]))
	for _, c := range h.clients[restaurantID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			utils.ErrorLogger.Warnf("kds: drop %s client of restaurant %d: %v", c.role, restaurantID, err)
			h.Unregister(restaurantID, c.conn)
		}
	}
	return nil
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
