package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"studyhall-platform/internal/auth"
	"studyhall-platform/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The admin stream sits behind the auth middleware; origin checks
		// belong to the reverse proxy in production
		return true
	},
}

// WSClient represents a connected lifecycle-stream client
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *WSHub
	userID    string
	closeChan chan struct{}
}

// WSHub fans lifecycle events out to connected admin dashboards
type WSHub struct {
	clients     map[*WSClient]bool
	userClients map[string][]*WSClient
	broadcast   chan []byte
	register    chan *WSClient
	unregister  chan *WSClient
	mu          sync.RWMutex
}

// NewWSHub creates a new hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:     make(map[*WSClient]bool),
		userClients: make(map[string][]*WSClient),
		broadcast:   make(chan []byte, 1024),
		register:    make(chan *WSClient),
		unregister:  make(chan *WSClient),
	}
}

// Run starts the hub loop
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.userID != "" {
				h.userClients[client.userID] = append(h.userClients[client.userID], client)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if client.userID != "" {
					h.removeClientFromUserMap(client)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, let unregister clean it up
					go func(c *WSClient) {
						h.unregister <- c
					}(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent sends an event to every connected client
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal event: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		log.Println("Broadcast channel full, dropping message")
	}
}

// SendToUser sends a payload to one user's open connections
func (h *WSHub) SendToUser(userID string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.userClients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// removeClientFromUserMap removes a client from the userClients map.
// Caller must hold the write lock.
func (h *WSHub) removeClientFromUserMap(client *WSClient) {
	if clients, ok := h.userClients[client.userID]; ok {
		for i, c := range clients {
			if c == client {
				h.userClients[client.userID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.userClients[client.userID]) == 0 {
			delete(h.userClients, client.userID)
		}
	}
}

// DisconnectUser closes every connection a user holds. Called when a user
// is banned or logs out.
func (h *WSHub) DisconnectUser(userID string) {
	if userID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userClients[userID]
	if !ok || len(clients) == 0 {
		return
	}

	for _, client := range clients {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			close(client.send)
			select {
			case client.closeChan <- struct{}{}:
			default:
			}
		}
	}

	delete(h.userClients, userID)
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// readPump drains the websocket connection and detects disconnects
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		close(c.closeChan)
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		// Clients only listen on this stream
	}
}

var wsHub *WSHub

// InitLifecycleWebSocket starts the hub and subscribes it to the event bus
func InitLifecycleWebSocket(eventBus *events.EventBus) *WSHub {
	wsHub = NewWSHub()

	go wsHub.Run()

	eventBus.SubscribeAll(func(event events.Event) {
		wsHub.BroadcastEvent(event)
	})

	// Banned users and users who log out lose their stream immediately
	dropUser := func(event events.Event) {
		if userID, ok := event.Data["user_id"].(string); ok {
			wsHub.DisconnectUser(userID)
		}
	}
	eventBus.Subscribe(events.EventUserBanned, dropUser)
	eventBus.Subscribe(events.EventUserLogout, dropUser)

	events.SetBroadcastLifecycleEvent(func(userID string, data interface{}) {
		wsHub.SendToUser(userID, data)
	})

	return wsHub
}

// handleLifecycleWebSocket upgrades an admin request to the event stream
func (s *Server) handleLifecycleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       wsHub,
		userID:    auth.GetUserID(c),
		closeChan: make(chan struct{}),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	welcome := map[string]interface{}{
		"type":      "CONNECTED",
		"message":   "lifecycle event stream established",
		"timestamp": time.Now(),
	}
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}
