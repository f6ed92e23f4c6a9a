package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const sendBuffer = 16

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type connectedPayload struct {
	UserID int64    `json:"user_id"`
	Rooms  []string `json:"rooms"`
}

type client struct {
	send chan outboundMessage[any]
}

// Hub fans realtime events out to websocket clients grouped in rooms.
type Hub struct {
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub(auth Authenticator, logger *zap.Logger) *Hub {
	return &Hub{
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		rooms:  make(map[string]map[*client]struct{}),
	}
}

// Broadcast never blocks; a client whose buffer is full misses the event.
func (h *Hub) Broadcast(room, event string, payload any) {
	msg := outboundMessage[any]{Type: event, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.rooms[room] {
		select {
		case cl.send <- msg:
		default:
			h.logger.Warn("realtime client too slow, event dropped", zap.String("room", room), zap.String("event", event))
		}
	}
}

// join registers the client and queues hello first, so it precedes every broadcast.
func (h *Hub) join(cl *client, rooms []string, hello outboundMessage[any]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl.send <- hello
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*client]struct{})
			h.rooms[room] = members
		}
		members[cl] = struct{}{}
	}
}

// leave removes the client from every room; after it returns no Broadcast can reach cl.
func (h *Hub) leave(cl *client, rooms []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		delete(h.rooms[room], cl)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
}

func roomsFor(p domain.Principal) []string {
	rooms := []string{app.UserRoom(p.UserID)}
	if p.Role == domain.RoleAdmin {
		rooms = append(rooms, app.AdminsRoom)
	}
	return rooms
}

// ServeWS authenticates before upgrading, then joins the caller's rooms until the socket closes.
func (h *Hub) ServeWS(c *gin.Context) {
	p, err := h.auth.Authenticate(c.Request.Context(), tokenFromRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	cl := &client{send: make(chan outboundMessage[any], sendBuffer)}
	rooms := roomsFor(p)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range cl.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	h.join(cl, rooms, outboundMessage[any]{Type: "connected", Payload: connectedPayload{UserID: p.UserID, Rooms: rooms}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		msg := outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		if inbound.Type != "ping" {
			msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		select {
		case cl.send <- msg:
		default:
		}
	}

	h.leave(cl, rooms)
	close(cl.send)
	<-writerDone
}
