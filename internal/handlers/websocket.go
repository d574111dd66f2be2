package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wirejam/wirejam/internal/gateway"
	"github.com/wirejam/wirejam/internal/protocol"
)

// WebSocketOptions tunes the connection lifecycle.
type WebSocketOptions struct {
	AllowedOrigins  []string      // "*" allows any origin
	WriteTimeout    time.Duration // per frame
	PongTimeout     time.Duration // read deadline, extended by every pong
	MaxMessageBytes int64
}

// WebSocketHandler bridges one websocket connection to a gateway session.
type WebSocketHandler struct {
	hub      *gateway.Hub
	opts     WebSocketOptions
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *gateway.Hub, opts WebSocketOptions) *WebSocketHandler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 1 << 20
	}
	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// HandleWebSocket upgrades the request, waits for join_room, and then pumps frames between the
// connection and the session until either side goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomId, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.opts.MaxMessageBytes)

	join, err := h.readJoin(conn)
	if err != nil {
		log.Printf("WebSocket join rejected: roomId=%s, error=%v", roomId, err)
		h.closeWith(conn, websocket.ClosePolicyViolation, "join_room required")
		return
	}
	if join.RoomID != "" && join.RoomID != roomId {
		log.Printf("join_room names a different room, using path: roomId=%s, requested=%s", roomId, join.RoomID)
	}

	sess, err := h.hub.Join(r.Context(), roomId, join)
	if err != nil {
		log.Printf("WebSocket join failed: roomId=%s, error=%v", roomId, err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "join failed")
		return
	}
	log.Printf("WebSocket connected: roomId=%s, sessionId=%s", roomId, sess.ID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, sess)
	}()
	h.readPump(r.Context(), conn, sess)

	h.hub.Leave(sess)
	<-done
	log.Printf("WebSocket disconnected: roomId=%s, sessionId=%s", roomId, sess.ID())
}

var errNotJoin = errors.New("first message must be join_room")

func (h *WebSocketHandler) readJoin(conn *websocket.Conn) (protocol.JoinRoom, error) {
	var join protocol.JoinRoom
	conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return join, err
	}
	msg, err := protocol.Parse(data)
	if err != nil {
		return join, err
	}
	if msg.Type != protocol.KindJoinRoom {
		return join, errNotJoin
	}
	if err := msg.Decode(&join); err != nil && !errors.Is(err, protocol.ErrEmptyPayload) {
		return join, err
	}
	return join, nil
}

// readPump is the only reader of conn.
func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, sess *gateway.Session) {
	conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: sessionId=%s, error=%v", sess.ID(), err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
		msg, err := protocol.Parse(data)
		if err != nil {
			log.Printf("Malformed frame: sessionId=%s, error=%v", sess.ID(), err)
			continue
		}
		h.hub.Handle(ctx, sess, msg)
	}
}

// writePump is the only writer of conn once the session exists.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, sess *gateway.Session) {
	ticker := time.NewTicker(h.opts.PongTimeout * 9 / 10)
	defer ticker.Stop()
	// unblocks readPump when writing fails or the hub drops the session
	defer conn.Close()

	for {
		select {
		case frame := <-sess.Outbound():
			conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("WebSocket write error: sessionId=%s, error=%v", sess.ID(), err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				return
			}
		case <-sess.Done():
			h.closeWith(conn, websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (h *WebSocketHandler) closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteTimeout)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("WebSocket close error: %v", err)
	}
}
