package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirejam/wirejam/internal/gateway"
	"github.com/wirejam/wirejam/internal/handlers"
	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/protocol"
	"github.com/wirejam/wirejam/internal/repo"
	"github.com/wirejam/wirejam/internal/service"
)

const sampleWireframe = `{"version":"1.0","created":"2024-01-01T00:00:00Z","canvas":{"width":1024,"height":600},
"shapes":[{"id":"a","type":"rectangle","x":10,"y":10,"width":100,"height":50},
{"id":"b","type":"button","x":50,"y":80,"width":120,"height":40,"content":"Go"}]}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := gateway.NewHub(repo.NewMemoryShapeRepo())
	svc := service.NewRoomService(hub, service.NewRoomIDGenerator())
	ws := handlers.NewWebSocketHandler(hub, handlers.WebSocketOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		PongTimeout:    5 * time.Second,
	})
	srv := httptest.NewServer(NewRouter(handlers.NewRoomHandler(svc), ws, []string{"http://localhost:3000"}))
	t.Cleanup(srv.Close)
	return srv
}

func uploadWireframe(t *testing.T, srv *httptest.Server, roomId, body string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "wireframe.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/room/"+roomId+"/wireframe", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRoom(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/room/create", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool   `json:"success"`
		RoomID  string `json:"roomId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Len(t, out.RoomID, 36)
}

func TestGetUnknownRoom(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/room/nobody-here")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/api/v1/room/nobody-here/wireframe")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestImportExportWireframe(t *testing.T) {
	srv := newTestServer(t)
	resp := uploadWireframe(t, srv, "r1", sampleWireframe)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := http.Get(srv.URL + "/api/v1/room/r1")
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	var info struct {
		Room  models.RoomSummary `json:"room"`
		Users []models.Member    `json:"users"`
	}
	require.NoError(t, json.NewDecoder(got.Body).Decode(&info))
	assert.Equal(t, models.RoomSummary{RoomID: "r1", ShapeCount: 2}, info.Room)
	assert.Empty(t, info.Users)

	exp, err := http.Get(srv.URL + "/api/v1/room/r1/wireframe")
	require.NoError(t, err)
	defer exp.Body.Close()
	require.Equal(t, http.StatusOK, exp.StatusCode)
	assert.Contains(t, exp.Header.Get("Content-Disposition"), "wireframe-r1.json")
	var file struct {
		Version string         `json:"version"`
		Shapes  []models.Shape `json:"shapes"`
	}
	require.NoError(t, json.NewDecoder(exp.Body).Decode(&file))
	assert.Equal(t, "1.0", file.Version)
	assert.Len(t, file.Shapes, 2)
}

func TestImportRawJSONBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/room/r2/wireframe", "application/json", strings.NewReader(sampleWireframe))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestImportRejectsMalformed(t *testing.T) {
	srv := newTestServer(t)
	resp := uploadWireframe(t, srv, "r1", `{"shapes": [`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = uploadWireframe(t, srv, "r1", `{"shapes":[{"id":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	noFile, err := http.Post(srv.URL+"/api/v1/room/r1/wireframe", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer noFile.Body.Close()
	assert.Equal(t, http.StatusBadRequest, noFile.StatusCode)
}

func wsURL(srv *httptest.Server, roomId string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/room/" + roomId + "/ws"
}

func dialAndJoin(t *testing.T, srv *httptest.Server, roomId, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, roomId), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	frame, err := protocol.Encode(protocol.KindJoinRoom, protocol.JoinRoom{RoomID: roomId, UserID: userID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Parse(data)
	require.NoError(t, err)
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, kind protocol.Kind) protocol.Message {
	t.Helper()
	for {
		if msg := readMessage(t, conn); msg.Type == kind {
			return msg
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadWireframe(t, srv, "r1", sampleWireframe).StatusCode)

	alice := dialAndJoin(t, srv, "r1", "alice")
	assert.Equal(t, protocol.KindUserInfo, readMessage(t, alice).Type)
	assert.Equal(t, protocol.KindCurrentUsers, readMessage(t, alice).Type)
	load := readMessage(t, alice)
	require.Equal(t, protocol.KindLoadShapes, load.Type)
	var snapshot protocol.LoadShapes
	require.NoError(t, load.Decode(&snapshot))
	assert.Len(t, snapshot.Shapes, 2)

	bob := dialAndJoin(t, srv, "r1", "bob")
	readUntil(t, bob, protocol.KindLoadShapes)
	var joined models.Member
	require.NoError(t, readUntil(t, alice, protocol.KindUserJoined).Decode(&joined))
	assert.Equal(t, "bob", joined.UserID)

	frame, err := protocol.Encode(protocol.KindShapeCreated, models.Shape{ID: "c", Type: "rectangle", X: 1, Y: 1, Width: 30, Height: 30})
	require.NoError(t, err)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, frame))

	var created models.Shape
	require.NoError(t, readUntil(t, bob, protocol.KindShapeCreated).Decode(&created))
	assert.Equal(t, "c", created.ID)

	ping, err := protocol.Encode(protocol.KindPing, nil)
	require.NoError(t, err)
	require.NoError(t, bob.WriteMessage(websocket.TextMessage, ping))
	readUntil(t, bob, protocol.KindPong)

	require.NoError(t, bob.Close())
	var left protocol.UserLeft
	require.NoError(t, readUntil(t, alice, protocol.KindUserLeft).Decode(&left))
	assert.NotEmpty(t, left.SessionID)
}

func TestWebSocketRequiresJoinFirst(t *testing.T) {
	srv := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "r1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := protocol.Encode(protocol.KindPing, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t)
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "r1"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
