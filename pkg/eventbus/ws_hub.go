package eventbus

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexus-automation/nexus/pkg/types"
)

// envelope is the wire message sent to remote observers: a fresh unique
// ID per message plus the scheduler event itself.
type envelope struct {
	ID    string      `json:"id"`
	Event types.Event `json:"event"`
}

// wsHub keeps a set of websocket clients and fans envelopes out to them,
// adapted from the teacher's plain stream-event broadcaster to carry the
// scheduler's richer lifecycle events instead of raw command output.
type wsHub struct {
	upgrader   websocket.Upgrader
	clients    map[*wsClient]bool
	clientsMux sync.RWMutex
	broadcastC chan envelope
	register   chan *wsClient
	unregister chan *wsClient
}

type wsClient struct {
	conn *websocket.Conn
	send chan envelope
	id   string
}

func newWSHub() *wsHub {
	return &wsHub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*wsClient]bool),
		broadcastC: make(chan envelope, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

func (h *wsHub) run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMux.Lock()
			h.clients[c] = true
			h.clientsMux.Unlock()
		case c := <-h.unregister:
			h.clientsMux.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.clientsMux.Unlock()
		case env := <-h.broadcastC:
			h.clientsMux.RLock()
			for c := range h.clients {
				select {
				case c.send <- env:
				default:
					// client too slow, drop the message rather than block the hub
				}
			}
			h.clientsMux.RUnlock()
		}
	}
}

func (h *wsHub) broadcast(env envelope) {
	select {
	case h.broadcastC <- env:
	default:
		// hub backlog full, drop rather than block the publishing scheduler
	}
}

func (h *wsHub) clientCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

func (h *wsHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("eventbus: websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan envelope, 256), id: r.RemoteAddr}
	h.register <- c

	go c.writePump(h)
	go c.readPump(h)
}

func (c *wsClient) writePump(h *wsHub) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only exists to detect client disconnects; observers don't send
// the hub anything meaningful.
func (c *wsClient) readPump(h *wsHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
