package client

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/bep/debounce"

	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/protocol"
	"github.com/wirejam/wirejam/internal/shape"
	"github.com/wirejam/wirejam/internal/wireframe"
)

var (
	ErrNoDrawing     = errors.New("no drawing awaiting a type")
	ErrUnknownShape  = errors.New("unknown shape")
	ErrChatEmpty     = errors.New("chat message is empty")
	ErrChatTooLong   = errors.New("chat message too long")
	ErrChatThrottled = errors.New("chat message sent too soon")
	ErrNotEditable   = errors.New("shape has no editable text")
)

// BeginDraw starts a rubber band at (x, y).
func (c *Client) BeginDraw(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ui.Drawing = &models.Shape{X: x, Y: y}
	c.ui.startX, c.ui.startY = x, y
	c.ui.awaitingType = false
}

// DrawTo stretches the rubber band to (x, y).
func (c *Client) DrawTo(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ui.Drawing == nil || c.ui.awaitingType {
		return
	}
	d := c.ui.Drawing
	d.X, d.Y, d.Width, d.Height = rubberBand(c.ui.startX, c.ui.startY, x, y)
}

// EndDraw releases the pointer. A gesture of at most 10 pixels in either direction is
// discarded; otherwise the rubber band waits for ConfirmDraw.
func (c *Client) EndDraw() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.ui.Drawing
	if d == nil {
		return false
	}
	if d.Width <= minDrawSize || d.Height <= minDrawSize {
		c.ui.Drawing = nil
		return false
	}
	c.ui.awaitingType = true
	return true
}

// ConfirmDraw turns the finished rubber band into a shape of type t and announces it.
func (c *Client) ConfirmDraw(t shape.Type) (models.Shape, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.ui.Drawing
	if d == nil || !c.ui.awaitingType {
		return models.Shape{}, ErrNoDrawing
	}
	s := *d
	s.ID = c.newShapeID()
	s.Type = string(t)
	if k := shape.Resolve(t); k.DefaultContent != "" {
		s.Content = models.StringPtr(k.DefaultContent)
	}
	c.ui.Drawing = nil
	c.ui.awaitingType = false

	c.putLocked(s)
	c.ui.Selected = s.ID
	c.emitLocked(protocol.KindShapeCreated, s)
	return s, nil
}

// CancelDraw abandons the rubber band.
func (c *Client) CancelDraw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ui.Drawing = nil
	c.ui.awaitingType = false
}

// Select marks id as the selected shape; an empty id clears the selection.
func (c *Client) Select(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.shapes[id]; !ok {
		id = ""
	}
	c.ui.Selected = id
}

// BeginDrag grabs shape id at pointer (x, y).
func (c *Client) BeginDrag(id string, x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shapes[id]
	if !ok {
		return ErrUnknownShape
	}
	c.ui.Selected, c.ui.Dragging = id, id
	c.ui.startX, c.ui.startY = x, y
	c.ui.origin = s
	return nil
}

// DragTo moves the dragged shape with the pointer, kept inside the canvas.
func (c *Client) DragTo(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.ui.Dragging
	if _, ok := c.shapes[id]; !ok {
		return
	}
	o := c.ui.origin
	c.shapes[id] = dragTo(c.shapes[id], o.X+x-c.ui.startX, o.Y+y-c.ui.startY, c.canvas)
}

// EndDrag drops the shape and announces its final position.
func (c *Client) EndDrag() {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.ui.Dragging
	c.ui.Dragging = ""
	if s, ok := c.shapes[id]; ok {
		c.emitLocked(protocol.KindShapeUpdated, s)
	}
}

// BeginResize grabs grip h of shape id at pointer (x, y).
func (c *Client) BeginResize(id string, h Handle, x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shapes[id]
	if !ok {
		return ErrUnknownShape
	}
	c.ui.Selected, c.ui.Resizing = id, id
	c.ui.startX, c.ui.startY = x, y
	c.ui.origin = s
	c.ui.handle = h
	return nil
}

// ResizeTo follows the pointer with the grabbed grip.
func (c *Client) ResizeTo(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.ui.Resizing
	cur, ok := c.shapes[id]
	if !ok {
		return
	}
	s := resizeBy(c.ui.origin, c.ui.handle, x-c.ui.startX, y-c.ui.startY, c.canvas)
	s.Content = cur.Content
	c.shapes[id] = s
}

// EndResize releases the grip and announces the new bounds.
func (c *Client) EndResize() {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.ui.Resizing
	c.ui.Resizing = ""
	if s, ok := c.shapes[id]; ok {
		c.emitLocked(protocol.KindShapeUpdated, s)
	}
}

// Focus records that the text control of shape id holds input focus. Only text shapes
// (block-text, text-input) have one.
func (c *Client) Focus(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.editableLocked(id); err != nil {
		return err
	}
	c.ui.Focused = id
	return nil
}

func (c *Client) editableLocked(id string) (models.Shape, error) {
	s, ok := c.shapes[id]
	if !ok {
		return models.Shape{}, ErrUnknownShape
	}
	if !shape.Resolve(shape.Type(s.Type)).Editable() {
		return models.Shape{}, ErrNotEditable
	}
	return s, nil
}

// Blur releases input focus.
func (c *Client) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ui.Focused = ""
}

// EditContent changes the text of shape id locally. The update is announced once edits
// have paused for the debounce window; a burst of keystrokes produces one message.
func (c *Client) EditContent(id, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.editableLocked(id)
	if err != nil {
		return err
	}
	s.Content = models.StringPtr(content)
	c.shapes[id] = s

	d, ok := c.debounced[id]
	if !ok {
		d = debounce.New(c.editDelay)
		c.debounced[id] = d
	}
	d(func() { c.flushContent(id) })
	return nil
}

func (c *Client) flushContent(id string) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.shapes[id]; ok {
		c.emitLocked(protocol.KindShapeUpdated, s)
	}
}

// KeyDown handles editor keys. Delete and Backspace remove the selected shape unless a text
// control has focus, in which case they edit text.
func (c *Client) KeyDown(key string) {
	if key != "Delete" && key != "Backspace" {
		return
	}
	c.mu.Lock()
	focused, selected := c.ui.Focused, c.ui.Selected
	c.mu.Unlock()
	if focused != "" || selected == "" {
		return
	}
	c.Delete(selected)
}

// Delete removes shape id and announces it.
func (c *Client) Delete(id string) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.shapes[id]; !ok {
		return
	}
	c.removeLocked(id)
	c.emitLocked(protocol.KindShapeDeleted, protocol.ShapeDeleted{ID: id})
}

// Clear empties the canvas and announces it.
func (c *Client) Clear() {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.emitLocked(protocol.KindCanvasCleared, protocol.CanvasCleared{})
}

// AddShape places s on the canvas and announces it, as a paste or a template would. The id
// is assigned here when empty.
func (c *Client) AddShape(s models.Shape) models.Shape {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.ID == "" {
		s.ID = c.newShapeID()
	}
	c.putLocked(s)
	c.emitLocked(protocol.KindShapeCreated, s)
	return s
}

// MoveMouse reports the local pointer. Positions within 5 pixels of the last one sent are
// not sent.
func (c *Client) MoveMouse(x, y float64) {
	c.mu.Lock()
	if c.mouse.Allow(x, y) {
		c.queueLocked(protocol.KindMouseMove, protocol.MouseMove{X: x, Y: y})
	}
	c.mu.Unlock()
	c.flush()
}

// SendChat sends a chat line. At most one line per chat interval is accepted; the line
// appears in ChatHistory when the server echoes it back.
func (c *Client) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrChatEmpty
	}
	if utf8.RuneCountInString(text) > models.MaxChatLength {
		return ErrChatTooLong
	}
	c.mu.Lock()
	if !c.chatLimiter.AllowN(c.clock.Now(), 1) {
		c.mu.Unlock()
		return ErrChatThrottled
	}
	c.queueLocked(protocol.KindChatMessage, protocol.ChatSend{Message: text})
	c.mu.Unlock()
	c.flush()
	return nil
}

// Export writes the canvas as a wireframe file.
func (c *Client) Export(w io.Writer) error {
	f := wireframe.New(c.Shapes(), c.canvas)
	f.Created = c.clock.Now().UTC()
	return wireframe.Encode(w, f)
}

// Import replaces the local canvas with the shapes of a wireframe file. Loading a file is a
// local operation and announces nothing; POST /api/v1/room/{roomId}/wireframe shares a file
// with the room.
func (c *Client) Import(r io.Reader) (int, error) {
	f, err := wireframe.Decode(r)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	for _, s := range f.Shapes {
		c.putLocked(s)
	}
	return len(f.Shapes), nil
}
