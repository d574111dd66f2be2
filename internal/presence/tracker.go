package presence

import (
	"sort"

	"github.com/wirejam/wirejam/internal/models"
)

// Cursor is the display entry for one remote session.
type Cursor struct {
	SessionID string
	UserID    string
	Color     string
	X, Y      float64
}

// Tracker keeps one cursor per remote session. Positions snap to the latest report.
// It is not safe for concurrent use; the owning client serializes access.
type Tracker struct {
	cursors map[string]*Cursor
}

func NewTracker() *Tracker {
	return &Tracker{cursors: make(map[string]*Cursor)}
}

// OnJoin adds a cursor. A session that is already tracked keeps its cursor.
func (t *Tracker) OnJoin(m models.Member) {
	if _, ok := t.cursors[m.SessionID]; ok {
		return
	}
	t.cursors[m.SessionID] = &Cursor{
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Color:     m.Color,
		X:         m.MouseX,
		Y:         m.MouseY,
	}
}

// OnLeave drops the cursor of a session.
func (t *Tracker) OnLeave(sessionID string) {
	delete(t.cursors, sessionID)
}

// OnMove moves a known cursor. Moves for unknown sessions are ignored.
func (t *Tracker) OnMove(sessionID string, x, y float64) {
	if c, ok := t.cursors[sessionID]; ok {
		c.X, c.Y = x, y
	}
}

// Reset forgets every cursor.
func (t *Tracker) Reset() {
	t.cursors = make(map[string]*Cursor)
}

// Len returns the number of remote sessions.
func (t *Tracker) Len() int { return len(t.cursors) }

// Render returns the display list ordered by session id.
func (t *Tracker) Render() []Cursor {
	out := make([]Cursor, 0, len(t.cursors))
	for _, c := range t.cursors {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
