// Package protocol defines the JSON envelope exchanged over the room websocket and the payload
// of every message kind.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/wirejam/wirejam/internal/models"
)

// Kind is the message type tag.
type Kind string

const (
	KindJoinRoom      Kind = "join_room"
	KindUserInfo      Kind = "user_info"
	KindCurrentUsers  Kind = "current_users"
	KindLoadShapes    Kind = "load_shapes"
	KindUserJoined    Kind = "user_joined"
	KindUserLeft      Kind = "user_left"
	KindMouseMove     Kind = "mouse_move"
	KindUserMouseMove Kind = "user_mouse_move"
	KindShapeCreated  Kind = "shape_created"
	KindShapeUpdated  Kind = "shape_updated"
	KindShapeDeleted  Kind = "shape_deleted"
	KindCanvasCleared Kind = "canvas_cleared"
	KindChatMessage   Kind = "chat_message"
	KindPing          Kind = "ping"
	KindPong          Kind = "pong"
)

// ErrEmptyPayload is returned by Decode when the message carries no payload.
var ErrEmptyPayload = errors.New("empty payload")

// Message is the envelope of every websocket frame.
type Message struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds a message, marshalling payload when it is not nil.
func New(kind Kind, payload any) (Message, error) {
	msg := Message{Type: kind}
	if payload == nil {
		return msg, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = b
	return msg, nil
}

// Encode marshals a complete frame.
func Encode(kind Kind, payload any) ([]byte, error) {
	msg, err := New(kind, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Parse decodes a frame.
func Parse(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return ErrEmptyPayload
	}
	return json.Unmarshal(m.Payload, dst)
}

// JoinRoom is the first message a client sends. UserID and Color are optional and let a
// reconnecting client keep its identity.
type JoinRoom struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id,omitempty"`
	Color  string `json:"color,omitempty"`
}

// UserInfo tells a joiner its own identity.
type UserInfo struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Color     string `json:"color"`
}

// CurrentUsers lists every other member of the room.
type CurrentUsers struct {
	Users []models.Member `json:"users"`
}

// LoadShapes carries a full room snapshot.
type LoadShapes struct {
	Shapes []models.Shape `json:"shapes"`
}

// UserLeft announces a departed session.
type UserLeft struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

// MouseMove is the pointer position reported by a client.
type MouseMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UserMouseMove is the relayed pointer position of another session.
type UserMouseMove struct {
	SessionID string  `json:"session_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// ShapeDeleted identifies a removed shape.
type ShapeDeleted struct {
	ID string `json:"id"`
}

// CanvasCleared has no fields.
type CanvasCleared struct{}

// ChatSend is what a client sends; the server answers with a models.ChatMessage.
type ChatSend struct {
	Message string `json:"message"`
}
