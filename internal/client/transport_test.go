package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirejam/wirejam/internal/protocol"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWSTransportRoundTrip(t *testing.T) {
	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tr, err := DialWebSocket(context.Background(), url, DialOptions{})
	require.NoError(t, err)

	ping, err := protocol.New(protocol.KindPing, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(ping))

	select {
	case got := <-tr.Inbound():
		assert.Equal(t, protocol.KindPing, got.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("no echo")
	}

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send(ping), ErrClosed)
	for range tr.Inbound() {
	}
}

func TestDialWebSocketGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	start := time.Now()
	_, err := DialWebSocket(context.Background(), url, DialOptions{MaxRetries: 2})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DialWebSocket(ctx, url, DialOptions{MaxRetries: 100})
	assert.Error(t, err)
}
