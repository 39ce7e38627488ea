package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/session"
)

const (
	TypeDetection = "detection"
	TypeSession   = "session"
)

// SessionSummary is published once a session has been finalized.
type SessionSummary struct {
	Outcome string        `json:"outcome"`
	Person  string        `json:"person,omitempty"`
	Stats   session.Stats `json:"stats"`
	Error   string        `json:"error,omitempty"`
}

// Message is what websocket clients receive
type Message struct {
	Type      string                      `json:"type"`
	Event     *recognition.DetectionEvent `json:"event,omitempty"`
	Session   *SessionSummary             `json:"session,omitempty"`
	Error     string                      `json:"error,omitempty"`
	Timestamp int64                       `json:"timestamp"`
}

func detectionMessage(ev recognition.DetectionEvent) Message {
	msg := Message{Type: TypeDetection, Event: &ev, Timestamp: time.Now().UnixMilli()}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

func sessionMessage(s SessionSummary) Message {
	return Message{Type: TypeSession, Session: &s, Timestamp: time.Now().UnixMilli()}
}

// Sink receives everything a session produces. Implementations must not block.
type Sink interface {
	PublishEvent(ev recognition.DetectionEvent)
	PublishSession(s SessionSummary)
}

// Fanout forwards to each non-nil sink.
type Fanout []Sink

func (f Fanout) PublishEvent(ev recognition.DetectionEvent) {
	for _, s := range f {
		if s != nil {
			s.PublishEvent(ev)
		}
	}
}

func (f Fanout) PublishSession(summary SessionSummary) {
	for _, s := range f {
		if s != nil {
			s.PublishSession(summary)
		}
	}
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a simple pubsub for websocket clients. Slow clients are disconnected
// rather than blocking the session.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg Message) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		log.Printf("realtime: failed to marshal %s message: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- encoded:
	default:
		log.Printf("realtime: dropping %s message, broadcast channel full", msg.Type)
	}
}

func (h *Hub) PublishEvent(ev recognition.DetectionEvent) {
	h.Broadcast(detectionMessage(ev))
}

func (h *Hub) PublishSession(s SessionSummary) {
	h.Broadcast(sessionMessage(s))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers a client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: websocket upgrade error: %v", err)
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// writer
	go func() {
		for msg := range client.send {
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		client.conn.Close()
	}()

	// reader (just consume pings/close)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
