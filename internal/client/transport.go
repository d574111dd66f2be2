package client

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/wirejam/wirejam/internal/protocol"
)

// ErrClosed is returned by Send after the transport has been closed.
var ErrClosed = errors.New("transport closed")

// Transport carries protocol messages to and from the room. Sends are fire-and-forget: a nil
// error only means the frame was handed to the connection.
type Transport interface {
	Send(msg protocol.Message) error
	// Inbound is closed when the connection ends.
	Inbound() <-chan protocol.Message
	Close() error
}

// WSTransport is a Transport over a gorilla websocket connection.
type WSTransport struct {
	conn    *websocket.Conn
	inbound chan protocol.Message

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// DialOptions controls DialWebSocket.
type DialOptions struct {
	Header     http.Header
	MaxRetries uint64 // additional attempts after the first; 0 means no retry
	Logger     *log.Logger
}

// DialWebSocket connects to url, retrying with exponential backoff until ctx is done or the
// retries run out.
func DialWebSocket(ctx context.Context, url string, opts DialOptions) (*WSTransport, error) {
	var conn *websocket.Conn
	attempt := 0
	dial := func() error {
		attempt++
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Printf("dial failed: url=%s, attempt=%d, error=%v", url, attempt, err)
			}
			return err
		}
		conn = c
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, opts.MaxRetries), ctx)
	if err := backoff.Retry(dial, policy); err != nil {
		return nil, err
	}
	return NewWSTransport(conn), nil
}

// NewWSTransport starts reading from an established connection.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	t := &WSTransport{
		conn:    conn,
		inbound: make(chan protocol.Message, 64),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *WSTransport) readLoop() {
	defer close(t.inbound)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			continue
		}
		select {
		case t.inbound <- msg:
		case <-t.closed:
			return
		}
	}
}

func (t *WSTransport) Send(msg protocol.Message) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.conn.WriteJSON(msg)
}

func (t *WSTransport) Inbound() <-chan protocol.Message { return t.inbound }

func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
