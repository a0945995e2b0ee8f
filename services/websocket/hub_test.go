package websocket

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, h *Hub, clientID string, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan []byte, buffer), clientID: clientID}
	h.register <- c
	require.Eventually(t, func() bool {
		h.mutex.RLock()
		defer h.mutex.RUnlock()
		return h.clients[c]
	}, time.Second, 5*time.Millisecond)
	return c
}

func TestSendToClientTargetsOwner(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	a := register(t, h, "a", 4)
	b := register(t, h, "b", 4)

	assert.Equal(t, 1, h.SendToClient("a", Message{Type: "session", Data: map[string]string{"role": "student"}}))
	assert.Equal(t, 0, h.SendToClient("nobody", Message{Type: "session"}))

	var got Message
	require.NoError(t, json.Unmarshal(<-a.send, &got))
	assert.Equal(t, "session", got.Type)
	assert.Len(t, b.send, 0)

	assert.Equal(t, 2, h.Broadcast(Message{Type: "ping"}))
}

func TestFullBufferDropsConnection(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	c := register(t, h, "slow", 1)
	assert.Equal(t, 1, h.SendToClient("slow", Message{Type: "one"}))
	assert.Equal(t, 0, h.SendToClient("slow", Message{Type: "two"}))
	assert.Equal(t, 0, h.GetClientCount())

	<-c.send
	_, open := <-c.send
	assert.False(t, open)

	// unregistering a dropped client is a no-op
	h.unregister <- c
}

func TestServeFiberWS(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fiberws.New(func(c *fiberws.Conn) {
		h.ServeFiberWS(c, c.Query("client_id"), Message{Type: "hello"})
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	defer app.Shutdown()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws?client_id=abc", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "hello", msg.Type)

	require.Eventually(t, func() bool { return h.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.SendToClient("abc", Message{Type: "session", Data: "anonymous"}))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "session", msg.Type)
	assert.Equal(t, "anonymous", msg.Data)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
