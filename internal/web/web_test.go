package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-portfolio/roomchat/internal/chat"
	"github.com/go-portfolio/roomchat/internal/web"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
	Тесты поднимают настоящий роутер поверх httptest.Server:
	- API проверяется обычными HTTP-запросами;
	- /ws — через websocket.DefaultDialer, так что кадры проходят
	  полный путь клиент → Client → Session → Dispatcher → Client.
*/

func newTestServer(t *testing.T, origins []string) (*httptest.Server, *chat.Registry) {
	t.Helper()

	registry := chat.NewRegistry(zerolog.Nop())
	h := &web.Handlers{
		Registry:   registry,
		Dispatcher: chat.NewDispatcher(zerolog.Nop()),
		Log:        zerolog.Nop(),
		Options: web.Options{
			Session: chat.SessionConfig{AutoCreateRooms: true, MaxUsernameLen: 24, MaxMessageLen: 2000},
			Client:  chat.ClientConfig{SendBuffer: 16},
		},
	}

	srv := httptest.NewServer(web.NewRouter(h, web.NewCORS(origins)))
	t.Cleanup(srv.Close)
	return srv, registry
}

func getJSON(t *testing.T, req *http.Request, out any) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// --- API ----------------------------------------------------------------------

func TestCreateAndCheckRoom(t *testing.T) {
	srv, registry := newTestServer(t, []string{"*"})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/room/create", nil)
	var created struct {
		RoomID string `json:"roomId"`
	}
	resp := getJSON(t, req, &created)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Len(t, created.RoomID, 6)
	assert.True(t, registry.Exists(created.RoomID))

	var exists struct {
		Exists bool `json:"exists"`
	}
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/room/"+created.RoomID, nil)
	getJSON(t, req, &exists)
	assert.True(t, exists.Exists)

	exists.Exists = true
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/room/NOSUCH", nil)
	getJSON(t, req, &exists)
	assert.False(t, exists.Exists)
}

func TestCreateRoom_WrongMethod(t *testing.T) {
	srv, _ := newTestServer(t, []string{"*"})

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/room/create", nil)
	resp := getJSON(t, req, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, registry := newTestServer(t, []string{"*"})
	_, err := registry.Create()
	require.NoError(t, err)

	var body map[string]any
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	resp := getJSON(t, req, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["rooms"])
	assert.EqualValues(t, 0, body["members"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, []string{"http://app.test"})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/room/create", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := getJSON(t, req, nil)

	assert.Equal(t, "http://app.test", resp.Header.Get("Access-Control-Allow-Origin"))
}

// --- WebSocket ------------------------------------------------------------------

type wsFrame struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	IsTyping bool            `json:"isTyping"`
	Users    []chat.User     `json:"users"`
	Messages []chat.Message  `json:"messages"`
	Message  json.RawMessage `json:"message"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func read(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func names(users []chat.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

// TestWebSocket_RoomLifecycle
// Цель: сценарий Alice/Bob целиком через настоящие WebSocket-соединения.
func TestWebSocket_RoomLifecycle(t *testing.T) {
	srv, registry := newTestServer(t, []string{"*"})
	code, err := registry.Create()
	require.NoError(t, err)

	alice := dial(t, srv)
	send(t, alice, map[string]any{"type": "join", "roomId": code, "username": "Alice"})
	f := read(t, alice)
	assert.Equal(t, "history", f.Type)
	assert.Empty(t, f.Messages)
	assert.Equal(t, []string{"Alice"}, names(f.Users))

	bob := dial(t, srv)
	send(t, bob, map[string]any{"type": "join", "roomId": code, "username": "Bob"})
	f = read(t, bob)
	assert.Equal(t, "history", f.Type)
	assert.Equal(t, []string{"Alice", "Bob"}, names(f.Users))

	f = read(t, alice)
	assert.Equal(t, "user_joined", f.Type)
	assert.Equal(t, "Bob", f.Username)

	send(t, bob, map[string]any{"type": "typing", "isTyping": true})
	f = read(t, alice)
	assert.Equal(t, "typing", f.Type)
	assert.Equal(t, "Bob", f.Username)
	assert.True(t, f.IsTyping)

	send(t, alice, map[string]any{"type": "message", "text": "hi"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		f = read(t, conn)
		require.Equal(t, "message", f.Type)
		var msg chat.Message
		require.NoError(t, json.Unmarshal(f.Message, &msg))
		assert.Equal(t, "Alice", msg.Username)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, uint64(1), msg.ID)
	}

	require.NoError(t, bob.Close())
	f = read(t, alice)
	assert.Equal(t, "user_left", f.Type)
	assert.Equal(t, "Bob", f.Username)
	assert.Equal(t, []string{"Alice"}, names(f.Users))

	require.NoError(t, alice.Close())
	assert.Eventually(t, func() bool { return !registry.Exists(code) }, 2*time.Second, 10*time.Millisecond,
		"комната должна исчезнуть после ухода последнего участника")
}

// Битый кадр даёт error, но соединение продолжает работать.
func TestWebSocket_MalformedFrameKeepsConnection(t *testing.T) {
	srv, _ := newTestServer(t, []string{"*"})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)

	send(t, conn, map[string]any{"type": "join", "roomId": "ROOM", "username": "Alice"})
	assert.Equal(t, "history", read(t, conn).Type)
}

// TestWebSocket_MultibyteMessages
// Цель: сообщение в пределах лимита по рунам доходит целиком, даже если
// в байтах оно длиннее; превышение лимита даёт error, а не разрыв соединения.
func TestWebSocket_MultibyteMessages(t *testing.T) {
	srv, _ := newTestServer(t, []string{"*"})
	conn := dial(t, srv)
	send(t, conn, map[string]any{"type": "join", "roomId": "ROOM", "username": "Alice"})
	require.Equal(t, "history", read(t, conn).Type)

	for _, text := range []string{
		strings.Repeat("字", 1500),
		strings.Repeat("😀", 2000),
	} {
		send(t, conn, map[string]any{"type": "message", "text": text})
		f := read(t, conn)
		require.Equal(t, "message", f.Type)
		var msg chat.Message
		require.NoError(t, json.Unmarshal(f.Message, &msg))
		assert.Equal(t, text, msg.Text)
	}

	send(t, conn, map[string]any{"type": "message", "text": strings.Repeat("字", 2001)})
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)

	// Соединение живо: следующий кадр обрабатывается как обычно.
	send(t, conn, map[string]any{"type": "message", "text": "still here"})
	assert.Equal(t, "message", read(t, conn).Type)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t, []string{"http://app.test"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://app.test")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
