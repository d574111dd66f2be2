// Package client is the collaboration core of an editor: it keeps the local canvas, applies
// remote room events without clobbering shapes the user is editing, and turns local gestures
// into protocol messages.
package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/deque"
	"golang.org/x/time/rate"

	"github.com/wirejam/wirejam/internal/idgen"
	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/presence"
	"github.com/wirejam/wirejam/internal/protocol"
	"github.com/wirejam/wirejam/internal/wireframe"
)

const (
	DefaultEditDebounce = 300 * time.Millisecond
	DefaultChatInterval = time.Second
	DefaultChatHistory  = 200
)

// Options configures a Client. Zero values take the defaults.
type Options struct {
	Canvas       wireframe.Canvas
	EditDebounce time.Duration
	ChatInterval time.Duration
	ChatHistory  int
	Clock        clock.Clock
	Logger       *log.Logger
	// OnEvent, when set, is called after every applied inbound message with the client lock
	// released.
	OnEvent func(protocol.Message)
}

// Client is one participant's view of a room. All state is guarded by mu; inbound messages
// are applied by Run and local gestures by the exported intent methods.
type Client struct {
	transport Transport
	canvas    wireframe.Canvas
	clock     clock.Clock
	logger    *log.Logger
	onEvent   func(protocol.Message)

	// sendMu serializes flushes so pending messages leave in the order they were queued.
	sendMu  sync.Mutex
	pending []protocol.Message

	mu       sync.Mutex
	self     protocol.UserInfo
	shapes   map[string]models.Shape
	order    []string // creation order, for rendering
	ui       Interaction
	skipEmit bool
	cursors  *presence.Tracker

	site   string
	nextID int

	editDelay time.Duration
	debounced map[string]func(func())

	mouse       presence.MoveThrottle
	chatLimiter *rate.Limiter
	chat        deque.Deque[models.ChatMessage]
	chatCap     int
}

func New(t Transport, opts Options) *Client {
	if opts.Canvas.Width <= 0 || opts.Canvas.Height <= 0 {
		opts.Canvas = wireframe.Canvas{Width: wireframe.DefaultCanvasWidth, Height: wireframe.DefaultCanvasHeight}
	}
	if opts.EditDebounce <= 0 {
		opts.EditDebounce = DefaultEditDebounce
	}
	if opts.ChatInterval <= 0 {
		opts.ChatInterval = DefaultChatInterval
	}
	if opts.ChatHistory <= 0 {
		opts.ChatHistory = DefaultChatHistory
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		transport:   t,
		canvas:      opts.Canvas,
		clock:       opts.Clock,
		logger:      opts.Logger,
		onEvent:     opts.OnEvent,
		shapes:      make(map[string]models.Shape),
		cursors:     presence.NewTracker(),
		site:        idgen.NewSiteID(),
		editDelay:   opts.EditDebounce,
		debounced:   make(map[string]func(func())),
		chatLimiter: rate.NewLimiter(rate.Every(opts.ChatInterval), 1),
		chatCap:     opts.ChatHistory,
	}
}

// Join asks the server to add this client to roomId. After a reconnect the previous
// identity is requested again.
func (c *Client) Join(roomId string) error {
	c.mu.Lock()
	req := protocol.JoinRoom{RoomID: roomId, UserID: c.self.UserID, Color: c.self.Color}
	c.mu.Unlock()
	msg, err := protocol.New(protocol.KindJoinRoom, req)
	if err != nil {
		return err
	}
	return c.transport.Send(msg)
}

// Run applies inbound messages until ctx is done or the transport closes.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.transport.Inbound():
			if !ok {
				return io.EOF
			}
			c.Apply(msg)
			if c.onEvent != nil {
				c.onEvent(msg)
			}
		}
	}
}

// Apply reconciles one inbound message into local state.
func (c *Client) Apply(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch msg.Type {
	case protocol.KindUserInfo:
		err = msg.Decode(&c.self)
	case protocol.KindCurrentUsers:
		var p protocol.CurrentUsers
		if err = msg.Decode(&p); err == nil {
			c.cursors.Reset()
			for _, m := range p.Users {
				c.cursors.OnJoin(m)
			}
		}
	case protocol.KindUserJoined:
		var m models.Member
		if err = msg.Decode(&m); err == nil {
			c.cursors.OnJoin(m)
		}
	case protocol.KindUserLeft:
		var p protocol.UserLeft
		if err = msg.Decode(&p); err == nil {
			c.cursors.OnLeave(p.SessionID)
		}
	case protocol.KindUserMouseMove:
		var p protocol.UserMouseMove
		if err = msg.Decode(&p); err == nil {
			c.cursors.OnMove(p.SessionID, p.X, p.Y)
		}
	case protocol.KindLoadShapes:
		var p protocol.LoadShapes
		if err = msg.Decode(&p); err == nil {
			c.applyLoad(p.Shapes)
		}
	case protocol.KindShapeCreated:
		var s models.Shape
		if err = msg.Decode(&s); err == nil {
			c.applyCreated(s)
		}
	case protocol.KindShapeUpdated:
		var s models.Shape
		if err = msg.Decode(&s); err == nil {
			c.applyUpdated(s)
		}
	case protocol.KindShapeDeleted:
		var p protocol.ShapeDeleted
		if err = msg.Decode(&p); err == nil {
			c.removeLocked(p.ID)
		}
	case protocol.KindCanvasCleared:
		c.clearLocked()
	case protocol.KindChatMessage:
		var m models.ChatMessage
		if err = msg.Decode(&m); err == nil {
			c.appendChatLocked(m)
		}
	case protocol.KindPong:
	default:
		c.logger.Printf("ignoring message: type=%s", msg.Type)
	}
	if err != nil {
		c.logger.Printf("malformed message: type=%s, error=%v", msg.Type, err)
	}
}

func (c *Client) applyLoad(shapes []models.Shape) {
	c.clearLocked()
	for _, s := range shapes {
		if s.Valid() {
			c.putLocked(s)
		}
	}
}

func (c *Client) applyCreated(s models.Shape) {
	if !s.Valid() {
		return
	}
	if _, ok := c.shapes[s.ID]; ok {
		return
	}
	c.putLocked(s)
}

// applyUpdated replaces every field of a known shape unless the user is working on it.
func (c *Client) applyUpdated(s models.Shape) {
	if _, ok := c.shapes[s.ID]; !ok {
		return
	}
	if c.ui.Active(s.ID) {
		c.logger.Printf("keeping local edit: shapeId=%s", s.ID)
		return
	}
	c.shapes[s.ID] = s
}

func (c *Client) putLocked(s models.Shape) {
	if _, ok := c.shapes[s.ID]; !ok {
		c.order = append(c.order, s.ID)
	}
	c.shapes[s.ID] = s
}

func (c *Client) removeLocked(id string) {
	if _, ok := c.shapes[id]; !ok {
		c.ui.forget(id)
		return
	}
	delete(c.shapes, id)
	delete(c.debounced, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.ui.forget(id)
}

// clearLocked drops every committed shape and the selection. An in-progress draw is kept.
func (c *Client) clearLocked() {
	c.shapes = make(map[string]models.Shape)
	c.order = nil
	c.debounced = make(map[string]func(func()))
	c.ui.reset()
}

func (c *Client) appendChatLocked(m models.ChatMessage) {
	c.chat.PushBack(m)
	for c.chat.Len() > c.chatCap {
		c.chat.PopFront()
	}
}

// emitLocked queues one local mutation unless emission is suppressed.
func (c *Client) emitLocked(kind protocol.Kind, payload any) {
	if c.skipEmit {
		return
	}
	c.queueLocked(kind, payload)
}

func (c *Client) queueLocked(kind protocol.Kind, payload any) {
	msg, err := protocol.New(kind, payload)
	if err != nil {
		c.logger.Printf("encode failed: type=%s, error=%v", kind, err)
		return
	}
	c.pending = append(c.pending, msg)
}

// flush hands queued messages to the transport. It must be called without mu held; a
// stalled write holds up later flushes but never the state lock.
func (c *Client) flush() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for {
		c.mu.Lock()
		out := c.pending
		c.pending = nil
		c.mu.Unlock()
		if len(out) == 0 {
			return
		}
		for _, msg := range out {
			if err := c.transport.Send(msg); err != nil {
				c.logger.Printf("send failed: type=%s, error=%v", msg.Type, err)
			}
		}
	}
}

func (c *Client) newShapeID() string {
	id := fmt.Sprintf("shape-%s-%d", c.site, c.nextID)
	c.nextID++
	return id
}

// Self returns the identity assigned by the server.
func (c *Client) Self() protocol.UserInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Shapes returns the canvas in creation order.
func (c *Client) Shapes() []models.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Shape, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.shapes[id])
	}
	return out
}

// Shape returns one shape by id.
func (c *Client) Shape(id string) (models.Shape, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shapes[id]
	return s, ok
}

// Interaction returns a copy of the gesture state.
func (c *Client) Interaction() Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	ui := c.ui
	if ui.Drawing != nil {
		d := *ui.Drawing
		ui.Drawing = &d
	}
	return ui
}

// Cursors returns the remote pointers.
func (c *Client) Cursors() []presence.Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors.Render()
}

// ChatHistory returns the retained chat lines, oldest first.
func (c *Client) ChatHistory() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ChatMessage, 0, c.chat.Len())
	for i := 0; i < c.chat.Len(); i++ {
		out = append(out, c.chat.At(i))
	}
	return out
}

// SetSkipEmission turns suppression of every local mutation message on or off.
func (c *Client) SetSkipEmission(skip bool) {
	c.mu.Lock()
	c.skipEmit = skip
	c.mu.Unlock()
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
