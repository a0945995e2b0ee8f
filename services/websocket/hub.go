package websocket

import (
	"encoding/json"
	"sync"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Hub tracks open connections per browser client and pushes messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mutex sync.RWMutex
}

// Client is one websocket connection owned by a browser client.
type Client struct {
	hub      *Hub
	send     chan []byte
	clientID string
}

// Message is the envelope written to every connection.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logrus.WithField("client_id", client.clientID).Debug("WebSocket client connected")

		case client := <-h.unregister:
			h.remove(client)
			logrus.WithField("client_id", client.clientID).Debug("WebSocket client disconnected")

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop closes every connection and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mutex.Unlock()
}

// SendToClient writes message to every connection of clientID and returns
// how many received it. Connections with a full buffer are dropped.
func (h *Hub) SendToClient(clientID string, message interface{}) int {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return 0
	}
	return h.deliver(data, func(c *Client) bool { return c.clientID == clientID })
}

// Broadcast writes message to every connection.
func (h *Hub) Broadcast(message interface{}) int {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return 0
	}
	return h.deliver(data, func(*Client) bool { return true })
}

func (h *Hub) deliver(data []byte, match func(*Client) bool) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			delete(h.clients, client)
			close(client.send)
			logrus.WithField("client_id", client.clientID).Warn("WebSocket send buffer full, dropping connection")
		}
	}
	return sent
}

// GetClientCount returns the number of open connections.
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeFiberWS registers the connection and blocks until it closes. Each
// initial message is queued before any pushed update.
func (h *Hub) ServeFiberWS(c *fiberws.Conn, clientID string, initial ...interface{}) {
	client := &Client{
		hub:      h,
		send:     make(chan []byte, sendBuffer),
		clientID: clientID,
	}
	for _, msg := range initial {
		if data, err := json.Marshal(msg); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		c.Close()
		return
	}

	go h.fiberWritePump(client, c)
	// read pump stays on the handler goroutine; the fiber conn is released when it returns
	h.fiberReadPump(client, c)
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) fiberWritePump(client *Client, c *fiberws.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("fiberWritePump panic for client %s: %v", client.clientID, r)
		}
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.WriteMessage(fiberws.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(fiberws.TextMessage, message); err != nil {
				logrus.WithError(err).WithField("client_id", client.clientID).Debug("WebSocket write error")
				h.leave(client)
				return
			}

		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(fiberws.PingMessage, nil); err != nil {
				h.leave(client)
				return
			}
		}
	}
}

func (h *Hub) fiberReadPump(client *Client, c *fiberws.Conn) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("fiberReadPump panic for client %s: %v", client.clientID, r)
		}
		h.leave(client)
		c.Close()
	}()

	c.SetReadLimit(maxMessageSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("client_id", client.clientID).Debug("WebSocket unexpected close")
			}
			return
		}
		// server push only; inbound frames are ignored
	}
}
