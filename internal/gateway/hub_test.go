package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/protocol"
	"github.com/wirejam/wirejam/internal/repo"
)

const roomId = "room-1"

func drain(t *testing.T, s *Session) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for {
		select {
		case b := <-s.Outbound():
			msg, err := protocol.Parse(b)
			require.NoError(t, err)
			out = append(out, msg)
		default:
			return out
		}
	}
}

func kinds(msgs []protocol.Message) []protocol.Kind {
	out := make([]protocol.Kind, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func message(t *testing.T, kind protocol.Kind, payload any) protocol.Message {
	t.Helper()
	msg, err := protocol.New(kind, payload)
	require.NoError(t, err)
	return msg
}

func join(t *testing.T, h *Hub, userID string) *Session {
	t.Helper()
	s, err := h.Join(context.Background(), roomId, protocol.JoinRoom{RoomID: roomId, UserID: userID})
	require.NoError(t, err)
	return s
}

func box(id string, x int) models.Shape {
	return models.Shape{ID: id, Type: "rectangle", X: x, Y: 10, Width: 100, Height: 50}
}

func snapshotIDs(t *testing.T, r repo.ShapeRepo) []string {
	t.Helper()
	shapes, err := r.Snapshot(context.Background(), roomId)
	require.NoError(t, err)
	ids := make([]string, 0, len(shapes))
	for _, s := range shapes {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestJoinSendsIdentityUsersAndSnapshot(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryShapeRepo()
	require.NoError(t, r.Upsert(ctx, roomId, box("A", 0)))
	require.NoError(t, r.Upsert(ctx, roomId, box("B", 0)))
	require.NoError(t, r.Upsert(ctx, roomId, box("C", 0)))
	require.NoError(t, r.Remove(ctx, roomId, "B"))

	h := NewHub(r)
	s := join(t, h, "alice")
	msgs := drain(t, s)
	require.Equal(t, []protocol.Kind{protocol.KindUserInfo, protocol.KindCurrentUsers, protocol.KindLoadShapes}, kinds(msgs))

	var info protocol.UserInfo
	require.NoError(t, msgs[0].Decode(&info))
	assert.Equal(t, s.ID(), info.SessionID)
	assert.Equal(t, "alice", info.UserID)
	assert.NotEmpty(t, info.Color)

	var users protocol.CurrentUsers
	require.NoError(t, msgs[1].Decode(&users))
	assert.Empty(t, users.Users)

	var load protocol.LoadShapes
	require.NoError(t, msgs[2].Decode(&load))
	ids := []string{}
	for _, sh := range load.Shapes {
		ids = append(ids, sh.ID)
	}
	assert.ElementsMatch(t, []string{"A", "C"}, ids)
}

func TestJoinEmptyRoomStillLoadsShapes(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo())
	msgs := drain(t, join(t, h, ""))
	require.Len(t, msgs, 3)
	assert.Equal(t, protocol.KindLoadShapes, msgs[2].Type)
	assert.JSONEq(t, `{"shapes":[]}`, string(msgs[2].Payload))
}

func TestJoinRequiresRoomID(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo())
	_, err := h.Join(context.Background(), "", protocol.JoinRoom{})
	assert.ErrorIs(t, err, ErrEmptyRoomID)
}

func TestJoinAnnouncesToOthers(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo())
	a := join(t, h, "alice")
	drain(t, a)

	b := join(t, h, "bob")
	msgsB := drain(t, b)
	var users protocol.CurrentUsers
	require.NoError(t, msgsB[1].Decode(&users))
	require.Len(t, users.Users, 1)
	assert.Equal(t, a.ID(), users.Users[0].SessionID)
	assert.Equal(t, "alice", users.Users[0].UserID)

	msgsA := drain(t, a)
	require.Equal(t, []protocol.Kind{protocol.KindUserJoined}, kinds(msgsA))
	var joined models.Member
	require.NoError(t, msgsA[0].Decode(&joined))
	assert.Equal(t, b.ID(), joined.SessionID)
	assert.Equal(t, "bob", joined.UserID)

	assert.Len(t, h.Members(roomId), 2)
}

func TestShapeEventsAreNotEchoed(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	a, b := join(t, h, "alice"), join(t, h, "bob")
	drain(t, a)
	drain(t, b)

	h.Handle(context.Background(), a, message(t, protocol.KindShapeCreated, box("X", 10)))
	assert.Empty(t, drain(t, a))
	msgs := drain(t, b)
	require.Equal(t, []protocol.Kind{protocol.KindShapeCreated}, kinds(msgs))
	var got models.Shape
	require.NoError(t, msgs[0].Decode(&got))
	assert.True(t, got.Equal(box("X", 10)))
	assert.Equal(t, []string{"X"}, snapshotIDs(t, r))
}

func TestShapeCreatedIsIdempotent(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	a := join(t, h, "alice")

	h.Handle(context.Background(), a, message(t, protocol.KindShapeCreated, box("X", 10)))
	h.Handle(context.Background(), a, message(t, protocol.KindShapeCreated, box("X", 40)))

	shapes, err := r.Snapshot(context.Background(), roomId)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, 40, shapes[0].X)
}

func TestUpdateForUnknownShapeIsDropped(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	a, b := join(t, h, "alice"), join(t, h, "bob")
	drain(t, a)
	drain(t, b)

	h.Handle(context.Background(), a, message(t, protocol.KindShapeUpdated, box("ghost", 1)))
	assert.Empty(t, drain(t, b))
	assert.Empty(t, snapshotIDs(t, r))
}

func TestDeleteWinsOverLateUpdate(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	ctx := context.Background()
	a, b := join(t, h, "alice"), join(t, h, "bob")
	h.Handle(ctx, a, message(t, protocol.KindShapeCreated, box("X", 10)))
	drain(t, a)
	drain(t, b)

	h.Handle(ctx, b, message(t, protocol.KindShapeDeleted, protocol.ShapeDeleted{ID: "X"}))
	h.Handle(ctx, a, message(t, protocol.KindShapeUpdated, box("X", 300)))

	assert.Equal(t, []protocol.Kind{protocol.KindShapeDeleted}, kinds(drain(t, a)))
	assert.Empty(t, drain(t, b))
	assert.Empty(t, snapshotIDs(t, r))
}

func TestUpdateReplacesAndRelays(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	ctx := context.Background()
	a, b := join(t, h, "alice"), join(t, h, "bob")
	h.Handle(ctx, a, message(t, protocol.KindShapeCreated, box("X", 10)))
	drain(t, b)

	moved := box("X", 200)
	moved.Content = models.StringPtr("hello")
	h.Handle(ctx, a, message(t, protocol.KindShapeUpdated, moved))

	msgs := drain(t, b)
	require.Equal(t, []protocol.Kind{protocol.KindShapeUpdated}, kinds(msgs))
	shapes, err := r.Snapshot(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.True(t, shapes[0].Equal(moved))
}

func TestMalformedShapeIsDropped(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	ctx := context.Background()
	a, b := join(t, h, "alice"), join(t, h, "bob")
	drain(t, a)
	drain(t, b)

	h.Handle(ctx, a, protocol.Message{Type: protocol.KindShapeCreated})
	h.Handle(ctx, a, protocol.Message{Type: protocol.KindShapeCreated, Payload: []byte(`{"id":"","type":"rectangle"}`)})
	h.Handle(ctx, a, protocol.Message{Type: protocol.KindShapeCreated, Payload: []byte(`"nope"`)})
	h.Handle(ctx, a, protocol.Message{Type: protocol.KindShapeDeleted, Payload: []byte(`{}`)})
	h.Handle(ctx, a, protocol.Message{Type: "teleport"})

	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))
	assert.Empty(t, snapshotIDs(t, r))
}

func TestCanvasCleared(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	ctx := context.Background()
	a, b := join(t, h, "alice"), join(t, h, "bob")
	h.Handle(ctx, a, message(t, protocol.KindShapeCreated, box("X", 10)))
	h.Handle(ctx, a, message(t, protocol.KindShapeCreated, box("Y", 10)))
	drain(t, a)
	drain(t, b)

	h.Handle(ctx, b, message(t, protocol.KindCanvasCleared, protocol.CanvasCleared{}))
	assert.Equal(t, []protocol.Kind{protocol.KindCanvasCleared}, kinds(drain(t, a)))
	assert.Empty(t, drain(t, b))
	assert.Empty(t, snapshotIDs(t, r))
}

func TestChatIsStampedAndEchoed(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 500_000_000))
	h := NewHub(repo.NewMemoryShapeRepo(), WithClock(mock))
	a, b := join(t, h, "alice"), join(t, h, "bob")
	drain(t, a)
	drain(t, b)

	h.Handle(context.Background(), a, message(t, protocol.KindChatMessage, protocol.ChatSend{Message: "  hi there "}))

	for _, s := range []*Session{a, b} {
		msgs := drain(t, s)
		require.Equal(t, []protocol.Kind{protocol.KindChatMessage}, kinds(msgs))
		var chat models.ChatMessage
		require.NoError(t, msgs[0].Decode(&chat))
		assert.Equal(t, "hi there", chat.Message)
		assert.Equal(t, a.ID(), chat.SessionID)
		assert.Equal(t, "alice", chat.UserID)
		assert.Equal(t, a.Identity().Color, chat.Color)
		assert.InDelta(t, 1700000000.5, chat.Timestamp, 0.001)
	}
}

func TestChatRejectsEmptyAndOversized(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo())
	a := join(t, h, "alice")
	drain(t, a)

	h.Handle(context.Background(), a, message(t, protocol.KindChatMessage, protocol.ChatSend{Message: "   "}))
	h.Handle(context.Background(), a, message(t, protocol.KindChatMessage, protocol.ChatSend{Message: strings.Repeat("x", models.MaxChatLength+1)}))
	assert.Empty(t, drain(t, a))

	h.Handle(context.Background(), a, message(t, protocol.KindChatMessage, protocol.ChatSend{Message: strings.Repeat("é", models.MaxChatLength)}))
	assert.Len(t, drain(t, a), 1)
}

func TestMouseMoveRelayedAndRemembered(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo())
	a, b := join(t, h, "alice"), join(t, h, "bob")
	drain(t, a)
	drain(t, b)

	h.Handle(context.Background(), a, message(t, protocol.KindMouseMove, protocol.MouseMove{X: 120, Y: 45}))
	assert.Empty(t, drain(t, a))
	msgs := drain(t, b)
	require.Equal(t, []protocol.Kind{protocol.KindUserMouseMove}, kinds(msgs))
	var mv protocol.UserMouseMove
	require.NoError(t, msgs[0].Decode(&mv))
	assert.Equal(t, protocol.UserMouseMove{SessionID: a.ID(), X: 120, Y: 45}, mv)

	c := join(t, h, "carol")
	var users protocol.CurrentUsers
	require.NoError(t, drain(t, c)[1].Decode(&users))
	for _, u := range users.Users {
		if u.SessionID == a.ID() {
			assert.Equal(t, 120.0, u.MouseX)
			assert.Equal(t, 45.0, u.MouseY)
		}
	}
}

func TestPingPong(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo())
	a, b := join(t, h, "alice"), join(t, h, "bob")
	drain(t, a)
	drain(t, b)

	h.Handle(context.Background(), a, protocol.Message{Type: protocol.KindPing})
	assert.Equal(t, []protocol.Kind{protocol.KindPong}, kinds(drain(t, a)))
	assert.Empty(t, drain(t, b))
}

func TestLeaveAnnouncesAndRetiresRoom(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	a, b := join(t, h, "alice"), join(t, h, "bob")
	h.Handle(context.Background(), a, message(t, protocol.KindShapeCreated, box("X", 10)))
	drain(t, b)

	h.Leave(a)
	h.Leave(a)
	<-a.Done()
	msgs := drain(t, b)
	require.Equal(t, []protocol.Kind{protocol.KindUserLeft}, kinds(msgs))
	var left protocol.UserLeft
	require.NoError(t, msgs[0].Decode(&left))
	assert.Equal(t, a.ID(), left.SessionID)
	assert.Len(t, h.Members(roomId), 1)

	// messages from a departed session are ignored
	h.Handle(context.Background(), a, message(t, protocol.KindShapeCreated, box("Y", 10)))
	assert.Empty(t, drain(t, b))

	h.Leave(b)
	assert.Empty(t, h.Members(roomId))
	h.mu.Lock()
	assert.Empty(t, h.rooms)
	h.mu.Unlock()

	c := join(t, h, "carol")
	var load protocol.LoadShapes
	require.NoError(t, drain(t, c)[2].Decode(&load))
	require.Len(t, load.Shapes, 1)
	assert.Equal(t, "X", load.Shapes[0].ID)
}

func TestSlowSessionIsDropped(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo(), WithSendBuffer(4))
	a := join(t, h, "alice")
	b := join(t, h, "bob")
	drain(t, b)

	// a holds three join frames plus user_joined; the next frame overflows.
	h.Handle(context.Background(), b, message(t, protocol.KindShapeCreated, box("X", 10)))
	select {
	case <-a.Done():
	default:
		t.Fatal("slow session was not closed")
	}
	select {
	case <-b.Done():
		t.Fatal("healthy session was closed")
	default:
	}
}

func TestReplaceShapesPushesSnapshotToEveryone(t *testing.T) {
	r := repo.NewMemoryShapeRepo()
	h := NewHub(r)
	ctx := context.Background()
	a, b := join(t, h, "alice"), join(t, h, "bob")
	h.Handle(ctx, a, message(t, protocol.KindShapeCreated, box("old", 10)))
	drain(t, a)
	drain(t, b)

	require.NoError(t, h.ReplaceShapes(ctx, roomId, []models.Shape{box("n1", 0), box("n2", 0)}))
	for _, s := range []*Session{a, b} {
		msgs := drain(t, s)
		require.Equal(t, []protocol.Kind{protocol.KindLoadShapes}, kinds(msgs))
	}
	assert.ElementsMatch(t, []string{"n1", "n2"}, snapshotIDs(t, r))

	// no live room: the store is still replaced
	require.NoError(t, h.ReplaceShapes(ctx, "idle", []models.Shape{box("z", 0)}))
	n, err := h.ShapeCount(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	h.mu.Lock()
	_, live := h.rooms["idle"]
	h.mu.Unlock()
	assert.False(t, live)
}

type failingRepo struct {
	*repo.MemoryShapeRepo
}

func (failingRepo) ReplaceAll(context.Context, string, []models.Shape) error {
	return errors.New("store unavailable")
}

func TestReplaceShapesFailureKeepsSnapshot(t *testing.T) {
	r := failingRepo{repo.NewMemoryShapeRepo()}
	h := NewHub(r)
	ctx := context.Background()
	a := join(t, h, "alice")
	h.Handle(ctx, a, message(t, protocol.KindShapeCreated, box("old-1", 10)))
	drain(t, a)

	err := h.ReplaceShapes(ctx, roomId, []models.Shape{box("n1", 0), box("n2", 0), box("n3", 0)})
	require.Error(t, err)
	assert.Equal(t, []string{"old-1"}, snapshotIDs(t, r))
	assert.Empty(t, drain(t, a))
}

func TestJoinNeverListsDepartedSessions(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo(), WithSendBuffer(4096))
	ctx := context.Background()

	var mu sync.Mutex
	left := map[string]bool{}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				mu.Lock()
				gone := make(map[string]bool, len(left))
				for id := range left {
					gone[id] = true
				}
				mu.Unlock()

				s, err := h.Join(ctx, roomId, protocol.JoinRoom{RoomID: roomId, UserID: fmt.Sprintf("u-%d-%d", w, i)})
				if !assert.NoError(t, err) {
					return
				}
				<-s.Outbound()
				frame := <-s.Outbound()
				msg, err := protocol.Parse(frame)
				if assert.NoError(t, err) && assert.Equal(t, protocol.KindCurrentUsers, msg.Type) {
					var users protocol.CurrentUsers
					assert.NoError(t, msg.Decode(&users))
					for _, m := range users.Users {
						assert.False(t, gone[m.SessionID], "departed session %s listed", m.SessionID)
						assert.NotEqual(t, s.ID(), m.SessionID)
					}
				}

				h.Leave(s)
				mu.Lock()
				left[s.ID()] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	assert.Empty(t, h.Members(roomId))
	h.mu.Lock()
	assert.Empty(t, h.rooms)
	h.mu.Unlock()
}

func TestConcurrentWritersObserveOneOrder(t *testing.T) {
	h := NewHub(repo.NewMemoryShapeRepo(), WithSendBuffer(1024))
	ctx := context.Background()
	observers := []*Session{join(t, h, "obs-1"), join(t, h, "obs-2")}
	writers := []*Session{join(t, h, "w-1"), join(t, h, "w-2"), join(t, h, "w-3")}
	for _, s := range append(observers, writers...) {
		drain(t, s)
	}

	var wg sync.WaitGroup
	for i, w := range writers {
		wg.Add(1)
		go func(i int, w *Session) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				h.Handle(ctx, w, message(t, protocol.KindShapeCreated, box(fmt.Sprintf("s-%d-%d", i, n), n)))
			}
		}(i, w)
	}
	wg.Wait()

	order := func(s *Session) []string {
		var ids []string
		for _, m := range drain(t, s) {
			var sh models.Shape
			require.NoError(t, m.Decode(&sh))
			ids = append(ids, sh.ID)
		}
		return ids
	}
	first := order(observers[0])
	assert.Len(t, first, 150)
	assert.Equal(t, first, order(observers[1]))
}
