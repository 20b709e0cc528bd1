// Package websocket streams interview progress events to connected clients.
// Each client subscribes to exactly one interview.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 4 * 1024
	sendBuffer = 64
)

type Hub struct {
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	Hub         *Hub
	Conn        *websocket.Conn
	Send        chan []byte
	ID          string
	InterviewID uint
}

type envelope struct {
	interviewID uint
	payload     []byte
}

// Message is what a client may send; only "ping" is understood
type Message struct {
	Type string `json:"type"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			subs, ok := h.clients[client.InterviewID]
			if !ok {
				subs = make(map[*Client]bool)
				h.clients[client.InterviewID] = subs
			}
			subs[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "client_id", client.ID, "interview_id", client.InterviewID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			slog.Info("Client unregistered", "client_id", client.ID, "interview_id", client.InterviewID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.interviewID] {
				select {
				case client.Send <- msg.payload:
				default:
					slog.Warn("Dropping slow websocket client", "client_id", client.ID, "interview_id", msg.interviewID)
					h.remove(client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, subs := range h.clients {
				for client := range subs {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every client's send channel
func (h *Hub) Stop() {
	close(h.done)
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	subs, ok := h.clients[client.InterviewID]
	if !ok || !subs[client] {
		return
	}
	delete(subs, client)
	close(client.Send)
	if len(subs) == 0 {
		delete(h.clients, client.InterviewID)
	}
}

// Publish sends an event to every subscriber of an interview. It never
// blocks the caller; events are dropped when the hub is saturated.
func (h *Hub) Publish(interviewID uint, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal progress event", "interview_id", interviewID, "error", err)
		return
	}

	select {
	case h.broadcast <- envelope{interviewID: interviewID, payload: payload}:
	default:
		slog.Warn("Progress event dropped, hub is busy", "interview_id", interviewID)
	}
}

// Subscribers returns the number of clients watching an interview
func (h *Hub) Subscribers(interviewID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[interviewID])
}

func (h *Hub) RegisterClient(conn *websocket.Conn, interviewID uint) *Client {
	client := &Client{
		Hub:         h,
		Conn:        conn,
		Send:        make(chan []byte, sendBuffer),
		ID:          uuid.New().String(),
		InterviewID: interviewID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
	return client
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Warn("Failed to unmarshal message", "client_id", c.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			c.trySend([]byte(`{"type":"pong"}`))
		default:
			slog.Warn("Unknown message type", "type", msg.Type, "client_id", c.ID)
		}
	}
}

// trySend may race with the hub closing Send on unregister
func (c *Client) trySend(payload []byte) {
	defer func() { recover() }()
	select {
	case c.Send <- payload:
	default:
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
