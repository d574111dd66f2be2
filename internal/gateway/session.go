package gateway

import (
	"sync"

	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/presence"
)

// Session is one connected participant. The transport drains Outbound and writes each frame
// to the wire; Done is closed when the hub drops the session.
type Session struct {
	id       string
	identity presence.Identity
	room     *Room

	// guarded by room.mu
	mouseX, mouseY float64

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, identity presence.Identity, room *Room, buffer int) *Session {
	return &Session{
		id:       id,
		identity: identity,
		room:     room,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) RoomID() string              { return s.room.id }
func (s *Session) Identity() presence.Identity { return s.identity }

// Outbound yields encoded frames in the order the room accepted them.
func (s *Session) Outbound() <-chan []byte { return s.send }

// Done is closed when the session has left or was dropped for falling behind.
func (s *Session) Done() <-chan struct{} { return s.done }

// member must be called with room.mu held.
func (s *Session) member() models.Member {
	return models.Member{
		SessionID: s.id,
		UserID:    s.identity.UserID,
		Color:     s.identity.Color,
		MouseX:    s.mouseX,
		MouseY:    s.mouseY,
	}
}

// enqueue never blocks. A session whose queue is full is closed rather than allowed to stall
// the room; the transport then disconnects it and the normal leave path runs.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		s.close()
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
