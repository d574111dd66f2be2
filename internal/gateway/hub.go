// Package gateway is the room side of the collaboration protocol: membership, the ordered
// fan-out of shape, pointer and chat events, and keeping the shape snapshot in step with what
// was broadcast.
package gateway

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/wirejam/wirejam/internal/idgen"
	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/presence"
	"github.com/wirejam/wirejam/internal/protocol"
	"github.com/wirejam/wirejam/internal/repo"
)

const defaultSendBuffer = 256

// ErrEmptyRoomID is returned by Join when no room was named.
var ErrEmptyRoomID = errors.New("room id required")

// Hub owns every live room. Rooms are created on first join and dropped from the hub when
// their last member leaves; their shapes stay in the repo.
type Hub struct {
	repo       repo.ShapeRepo
	sendBuffer int
	clock      clock.Clock

	mu    sync.Mutex
	rooms map[string]*Room
}

// Room is the ordering authority for one room: every store write and every fan-out happens
// with mu held, so all members observe events in the order they were accepted.
type Room struct {
	id       string
	mu       sync.Mutex
	sessions map[string]*Session
	closed   atomic.Bool
}

type Option func(*Hub)

// WithClock replaces the clock used to stamp chat messages.
func WithClock(c clock.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithSendBuffer sets the per-session outbound queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func NewHub(r repo.ShapeRepo, opts ...Option) *Hub {
	h := &Hub{
		repo:       r,
		sendBuffer: defaultSendBuffer,
		clock:      clock.New(),
		rooms:      make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// lockRoom returns the live room with its mutex held, creating it if needed.
func (h *Hub) lockRoom(roomId string) *Room {
	for {
		h.mu.Lock()
		room, ok := h.rooms[roomId]
		if !ok || room.closed.Load() {
			room = &Room{id: roomId, sessions: make(map[string]*Session)}
			h.rooms[roomId] = room
			log.Printf("room opened: roomId=%s", roomId)
		}
		h.mu.Unlock()

		room.mu.Lock()
		if !room.closed.Load() {
			return room
		}
		room.mu.Unlock()
	}
}

// unlockRoom releases room.mu and retires the room if it has no members left.
func (h *Hub) unlockRoom(room *Room) {
	empty := len(room.sessions) == 0
	if empty {
		room.closed.Store(true)
	}
	room.mu.Unlock()
	if !empty {
		return
	}
	h.mu.Lock()
	if h.rooms[room.id] == room {
		delete(h.rooms, room.id)
		log.Printf("room closed: roomId=%s", room.id)
	}
	h.mu.Unlock()
}

// Join registers a new session. The joiner's queue receives, in order, user_info,
// current_users and load_shapes; every other member then receives user_joined.
func (h *Hub) Join(ctx context.Context, roomId string, req protocol.JoinRoom) (*Session, error) {
	if roomId == "" {
		return nil, ErrEmptyRoomID
	}
	identity := presence.ResolveIdentity(req.UserID, req.Color)

	room := h.lockRoom(roomId)
	defer h.unlockRoom(room)

	shapes, err := h.repo.Snapshot(ctx, roomId)
	if err != nil {
		return nil, err
	}
	if t, ok := h.repo.(repo.Toucher); ok {
		if err := t.Touch(ctx, roomId); err != nil {
			log.Printf("room touch failed: roomId=%s, err=%v", roomId, err)
		}
	}

	s := newSession(idgen.NewSessionID(), identity, room, h.sendBuffer)
	others := room.membersLocked()
	room.sessions[s.id] = s

	s.enqueue(mustEncode(protocol.KindUserInfo, protocol.UserInfo{
		SessionID: s.id,
		UserID:    identity.UserID,
		Color:     identity.Color,
	}))
	s.enqueue(mustEncode(protocol.KindCurrentUsers, protocol.CurrentUsers{Users: others}))
	s.enqueue(mustEncode(protocol.KindLoadShapes, protocol.LoadShapes{Shapes: shapes}))

	room.broadcastLocked(mustEncode(protocol.KindUserJoined, s.member()), s.id)

	log.Printf("session joined: roomId=%s, sessionId=%s, userId=%s, members=%d, shapes=%d",
		roomId, s.id, identity.UserID, len(room.sessions), len(shapes))
	return s, nil
}

// Leave removes the session and tells the remaining members. It is safe to call more than once.
func (h *Hub) Leave(s *Session) {
	room := s.room
	room.mu.Lock()
	if _, ok := room.sessions[s.id]; !ok {
		room.mu.Unlock()
		s.close()
		return
	}
	delete(room.sessions, s.id)
	s.close()
	room.broadcastLocked(mustEncode(protocol.KindUserLeft, protocol.UserLeft{
		SessionID: s.id,
		UserID:    s.identity.UserID,
	}), "")
	log.Printf("session left: roomId=%s, sessionId=%s, remaining=%d", room.id, s.id, len(room.sessions))
	h.unlockRoom(room)
}

// Members lists the live members of a room ordered by session id.
func (h *Hub) Members(roomId string) []models.Member {
	h.mu.Lock()
	room, ok := h.rooms[roomId]
	h.mu.Unlock()
	if !ok {
		return []models.Member{}
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.membersLocked()
}

// Snapshot returns the current shapes of a room.
func (h *Hub) Snapshot(ctx context.Context, roomId string) ([]models.Shape, error) {
	return h.repo.Snapshot(ctx, roomId)
}

// ShapeCount returns the number of shapes stored for a room.
func (h *Hub) ShapeCount(ctx context.Context, roomId string) (int, error) {
	return h.repo.Count(ctx, roomId)
}

// ReplaceShapes swaps the whole snapshot of a room, as when a wireframe file is imported,
// and pushes the new snapshot to every member.
func (h *Hub) ReplaceShapes(ctx context.Context, roomId string, shapes []models.Shape) error {
	room := h.lockRoom(roomId)
	defer h.unlockRoom(room)

	if err := h.repo.ReplaceAll(ctx, roomId, shapes); err != nil {
		return err
	}
	room.broadcastLocked(mustEncode(protocol.KindLoadShapes, protocol.LoadShapes{Shapes: shapes}), "")
	log.Printf("room snapshot replaced: roomId=%s, shapes=%d, members=%d", roomId, len(shapes), len(room.sessions))
	return nil
}

func (r *Room) membersLocked() []models.Member {
	out := make([]models.Member, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.member())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// broadcastLocked queues frame for every member except excludeSessionId.
func (r *Room) broadcastLocked(frame []byte, excludeSessionId string) {
	for id, s := range r.sessions {
		if id == excludeSessionId {
			continue
		}
		if !s.enqueue(frame) {
			log.Printf("dropping slow session: roomId=%s, sessionId=%s", r.id, id)
		}
	}
}

// mustEncode marshals protocol payloads, which are plain structs and cannot fail.
func mustEncode(kind protocol.Kind, payload any) []byte {
	b, err := protocol.Encode(kind, payload)
	if err != nil {
		panic(err)
	}
	return b
}
