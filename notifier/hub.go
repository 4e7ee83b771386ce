package notifier

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware in front.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

// Hub fans committed order events out to websocket rooms. Admin connections
// join their company room; portal connections join a per-client room. Pushes
// are best effort: a slow or gone subscriber is dropped, never waited on.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]bool
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*client]bool),
		logger: logger,
	}
}

func CompanyRoom(companyId string) string {
	return "company:" + companyId
}

func ClientRoom(clientId int) string {
	return fmt.Sprintf("client:%d", clientId)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*client]bool)
	}
	h.rooms[c.room][c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[c.room]; ok {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			close(c.send)
			if len(subs) == 0 {
				delete(h.rooms, c.room)
			}
		}
	}
}

// BroadcastOrderEvent pushes one committed transition to the company room
// and the affected client's room.
func (h *Hub) BroadcastOrderEvent(msg config.OrderEventMessage) {
	payload, err := utils.MarshalToJSON(msg)
	if err != nil {
		if h.logger != nil {
			config.LogError(h.logger, "notifier", "BroadcastOrderEvent", "marshal", msg, err)
		}
		return
	}
	h.broadcast(CompanyRoom(msg.CompanyId), []byte(payload))
	h.broadcast(ClientRoom(msg.ClientId), []byte(payload))
}

func (h *Hub) broadcast(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			// Subscriber is not draining; drop the message rather than block
			// the dispatcher.
		}
	}
}

// ServeRoom upgrades the request and subscribes it to one room.
func (h *Hub) ServeRoom(w http.ResponseWriter, r *http.Request, room string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
		room: room,
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
	return nil
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// Inbound messages are ignored; the socket is push-only.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
