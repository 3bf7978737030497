package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"travel-diary-backend/internal/events"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type     string            `json:"type"`
	DiaryID  string            `json:"diary_id,omitempty"`
	TripDate string            `json:"trip_date,omitempty"`
	PhotoID  string            `json:"photo_id,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Photos   []events.PhotoRef `json:"photos,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections and pushes diary events to their owners
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsConn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsConn),
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	}

	h.connections[userID] = &wsConn{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a WebSocket connection for a user, if conn is still the current one
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.connections[userID]; exists && (conn == nil || c.conn == conn) {
		c.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	c, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.write(data); err != nil {
		h.Unregister(userID, c.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// Handle pushes an event to its owner's connection. Offline users are skipped.
func (h *WSHub) Handle(ctx context.Context, e events.Event) error {
	if !h.IsOnline(e.UserID) {
		return nil
	}
	return h.SendToUser(e.UserID, messageFor(e))
}

func messageFor(e events.Event) WSMessage {
	msg := WSMessage{Type: e.Type, DiaryID: e.DiaryID, TripDate: e.TripDate}
	switch e.Type {
	case events.PhotoTagged:
		if len(e.Photos) > 0 {
			msg.PhotoID = e.Photos[0].PhotoID
			msg.Tag = e.Photos[0].Tag
		}
	default:
		msg.Photos = e.Photos
	}
	return msg
}
