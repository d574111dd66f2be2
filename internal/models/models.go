// Package models defines the records shared by the room server and the collaboration client.
package models

// MinShapeSize is the smallest width or height a shape can be resized to.
const MinShapeSize = 20

// MaxChatLength is the longest chat message the gateway relays.
const MaxChatLength = 500

// Shape is the unit of synchronization. Updates replace every field except ID.
type Shape struct {
	ID      string  `json:"id"`                // unique within a room, never changes
	Type    string  `json:"type"`              // registry tag, see package shape
	X       int     `json:"x"`                 // top-left, canvas pixels
	Y       int     `json:"y"`                 //
	Width   int     `json:"width"`             //
	Height  int     `json:"height"`            //
	Content *string `json:"content,omitempty"` // opaque per-type payload
}

// Valid reports whether the shape carries the identity fields the gateway requires.
func (s Shape) Valid() bool {
	return s.ID != "" && s.Type != ""
}

// Equal compares every field including content.
func (s Shape) Equal(o Shape) bool {
	if s.ID != o.ID || s.Type != o.Type || s.X != o.X || s.Y != o.Y || s.Width != o.Width || s.Height != o.Height {
		return false
	}
	switch {
	case s.Content == nil && o.Content == nil:
		return true
	case s.Content == nil || o.Content == nil:
		return false
	default:
		return *s.Content == *o.Content
	}
}

// ContentString returns the content or "" when absent.
func (s Shape) ContentString() string {
	if s.Content == nil {
		return ""
	}
	return *s.Content
}

// StringPtr is a helper for building shapes with content.
func StringPtr(v string) *string { return &v }

// Member is one connected session in a room, as announced to the other members.
type Member struct {
	SessionID string  `json:"session_id"` // one per connection
	UserID    string  `json:"user_id"`    // display label
	Color     string  `json:"color"`      // cursor / chat color
	MouseX    float64 `json:"mouse_x"`    // last reported pointer position
	MouseY    float64 `json:"mouse_y"`
}

// ChatMessage is a server-stamped chat line. It is never stored.
type ChatMessage struct {
	SessionID string  `json:"session_id"`
	UserID    string  `json:"user_id"`
	Color     string  `json:"color"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"` // unix seconds
}

// RoomSummary is returned by the room info endpoint.
type RoomSummary struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
	ShapeCount  int    `json:"shapeCount"`
}
