package gateway

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/protocol"
)

// Handle applies one inbound message from s. Malformed or unknown messages are logged and
// dropped; nothing is ever sent back to the client about them.
func (h *Hub) Handle(ctx context.Context, s *Session, msg protocol.Message) {
	switch msg.Type {
	case protocol.KindShapeCreated:
		h.handleShapeCreated(ctx, s, msg)
	case protocol.KindShapeUpdated:
		h.handleShapeUpdated(ctx, s, msg)
	case protocol.KindShapeDeleted:
		h.handleShapeDeleted(ctx, s, msg)
	case protocol.KindCanvasCleared:
		h.handleCanvasCleared(ctx, s)
	case protocol.KindMouseMove:
		h.handleMouseMove(s, msg)
	case protocol.KindChatMessage:
		h.handleChat(s, msg)
	case protocol.KindPing:
		s.enqueue(mustEncode(protocol.KindPong, nil))
	case protocol.KindJoinRoom:
		log.Printf("ignoring repeated join: roomId=%s, sessionId=%s", s.room.id, s.id)
	default:
		log.Printf("ignoring unknown message: roomId=%s, sessionId=%s, type=%q", s.room.id, s.id, msg.Type)
	}
}

// withMember runs fn with the room locked, provided s is still a member.
func (s *Session) withMember(fn func(room *Room)) {
	room := s.room
	room.mu.Lock()
	defer room.mu.Unlock()
	if _, ok := room.sessions[s.id]; !ok {
		return
	}
	fn(room)
}

func decodeShape(s *Session, msg protocol.Message) (models.Shape, bool) {
	var sh models.Shape
	if err := msg.Decode(&sh); err != nil {
		log.Printf("malformed %s: roomId=%s, sessionId=%s, err=%v", msg.Type, s.room.id, s.id, err)
		return models.Shape{}, false
	}
	if !sh.Valid() {
		log.Printf("malformed %s: roomId=%s, sessionId=%s, err=missing id or type", msg.Type, s.room.id, s.id)
		return models.Shape{}, false
	}
	return sh, true
}

func (h *Hub) handleShapeCreated(ctx context.Context, s *Session, msg protocol.Message) {
	sh, ok := decodeShape(s, msg)
	if !ok {
		return
	}
	s.withMember(func(room *Room) {
		if err := h.repo.Upsert(ctx, room.id, sh); err != nil {
			log.Printf("shape upsert failed: roomId=%s, shapeId=%s, err=%v", room.id, sh.ID, err)
			return
		}
		room.broadcastLocked(mustEncode(protocol.KindShapeCreated, sh), s.id)
	})
}

// An update for a shape the room does not hold is dropped: it lost a race with a delete or a
// clear, and relaying it would let peers resurrect the shape.
func (h *Hub) handleShapeUpdated(ctx context.Context, s *Session, msg protocol.Message) {
	sh, ok := decodeShape(s, msg)
	if !ok {
		return
	}
	s.withMember(func(room *Room) {
		found, err := h.repo.Replace(ctx, room.id, sh)
		if err != nil {
			log.Printf("shape replace failed: roomId=%s, shapeId=%s, err=%v", room.id, sh.ID, err)
			return
		}
		if !found {
			log.Printf("dropping update for unknown shape: roomId=%s, shapeId=%s", room.id, sh.ID)
			return
		}
		room.broadcastLocked(mustEncode(protocol.KindShapeUpdated, sh), s.id)
	})
}

func (h *Hub) handleShapeDeleted(ctx context.Context, s *Session, msg protocol.Message) {
	var p protocol.ShapeDeleted
	if err := msg.Decode(&p); err != nil || p.ID == "" {
		log.Printf("malformed %s: roomId=%s, sessionId=%s, err=%v", msg.Type, s.room.id, s.id, err)
		return
	}
	s.withMember(func(room *Room) {
		if err := h.repo.Remove(ctx, room.id, p.ID); err != nil {
			log.Printf("shape remove failed: roomId=%s, shapeId=%s, err=%v", room.id, p.ID, err)
			return
		}
		room.broadcastLocked(mustEncode(protocol.KindShapeDeleted, p), s.id)
	})
}

func (h *Hub) handleCanvasCleared(ctx context.Context, s *Session) {
	s.withMember(func(room *Room) {
		if err := h.repo.Clear(ctx, room.id); err != nil {
			log.Printf("canvas clear failed: roomId=%s, err=%v", room.id, err)
			return
		}
		room.broadcastLocked(mustEncode(protocol.KindCanvasCleared, protocol.CanvasCleared{}), s.id)
		log.Printf("canvas cleared: roomId=%s, sessionId=%s", room.id, s.id)
	})
}

func (h *Hub) handleMouseMove(s *Session, msg protocol.Message) {
	var p protocol.MouseMove
	if err := msg.Decode(&p); err != nil {
		log.Printf("malformed %s: roomId=%s, sessionId=%s, err=%v", msg.Type, s.room.id, s.id, err)
		return
	}
	s.withMember(func(room *Room) {
		s.mouseX, s.mouseY = p.X, p.Y
		room.broadcastLocked(mustEncode(protocol.KindUserMouseMove, protocol.UserMouseMove{
			SessionID: s.id,
			X:         p.X,
			Y:         p.Y,
		}), s.id)
	})
}

// Chat is stamped with the sender's identity and the server time, and echoed back to the
// sender so every member renders the same line.
func (h *Hub) handleChat(s *Session, msg protocol.Message) {
	var p protocol.ChatSend
	if err := msg.Decode(&p); err != nil {
		log.Printf("malformed %s: roomId=%s, sessionId=%s, err=%v", msg.Type, s.room.id, s.id, err)
		return
	}
	text := strings.TrimSpace(p.Message)
	if text == "" || utf8.RuneCountInString(text) > models.MaxChatLength {
		log.Printf("dropping chat: roomId=%s, sessionId=%s, length=%d", s.room.id, s.id, utf8.RuneCountInString(text))
		return
	}
	s.withMember(func(room *Room) {
		room.broadcastLocked(mustEncode(protocol.KindChatMessage, models.ChatMessage{
			SessionID: s.id,
			UserID:    s.identity.UserID,
			Color:     s.identity.Color,
			Message:   text,
			Timestamp: unixSeconds(h.clock.Now()),
		}), "")
	})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
