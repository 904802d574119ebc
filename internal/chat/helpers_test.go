package chat_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/go-portfolio/roomchat/internal/chat"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeTransport — простая реализация chat.Transport для тестов.
// Накапливает отправленные кадры; fail заставляет Send возвращать ошибку.
type fakeTransport struct {
	mu     sync.Mutex
	raw    [][]byte
	fail   error
	closed bool
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return chat.ErrTransportClosed
	}
	if f.fail != nil {
		return f.fail
	}
	f.raw = append(f.raw, payload)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// outFrame — разобранный исходящий кадр. Message — сырое поле,
// потому что у error это строка, а у message — объект.
type outFrame struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	IsTyping bool            `json:"isTyping"`
	Users    []chat.User     `json:"users"`
	Messages []chat.Message  `json:"messages"`
	Message  json.RawMessage `json:"message"`
}

func (f outFrame) chatMessage(t *testing.T) chat.Message {
	t.Helper()
	var m chat.Message
	require.NoError(t, json.Unmarshal(f.Message, &m))
	return m
}

func (f outFrame) errorText(t *testing.T) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(f.Message, &s))
	return s
}

func (f *fakeTransport) frames(t *testing.T) []outFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]outFrame, 0, len(f.raw))
	for _, raw := range f.raw {
		var fr outFrame
		require.NoError(t, json.Unmarshal(raw, &fr))
		out = append(out, fr)
	}
	return out
}

// take возвращает накопленные кадры и очищает буфер.
func (f *fakeTransport) take(t *testing.T) []outFrame {
	t.Helper()
	frames := f.frames(t)
	f.mu.Lock()
	f.raw = nil
	f.mu.Unlock()
	return frames
}

func types(frames []outFrame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

func usernames(users []chat.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

// harness — реестр, рассыльщик и фабрика сессий с общими настройками.
type harness struct {
	registry   *chat.Registry
	dispatcher *chat.Dispatcher
	cfg        chat.SessionConfig
	seq        int
	mu         sync.Mutex
}

func newHarness() *harness {
	return &harness{
		registry:   chat.NewRegistry(zerolog.Nop()),
		dispatcher: chat.NewDispatcher(zerolog.Nop()),
		cfg: chat.SessionConfig{
			AutoCreateRooms: true,
			MaxUsernameLen:  24,
			MaxMessageLen:   2000,
		},
	}
}

func (h *harness) connect() (*chat.Session, *fakeTransport) {
	h.mu.Lock()
	h.seq++
	id := fmt.Sprintf("conn-%03d", h.seq)
	h.mu.Unlock()

	tr := &fakeTransport{}
	return chat.NewSession(id, tr, h.registry, h.dispatcher, h.cfg, zerolog.Nop()), tr
}

func frameJSON(t *testing.T, v map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func join(t *testing.T, s *chat.Session, roomID, username string) {
	t.Helper()
	require.NoError(t, s.HandleFrame(frameJSON(t, map[string]any{"type": "join", "roomId": roomID, "username": username})))
}

func say(t *testing.T, s *chat.Session, text string) {
	t.Helper()
	require.NoError(t, s.HandleFrame(frameJSON(t, map[string]any{"type": "message", "text": text})))
}

func typing(t *testing.T, s *chat.Session, isTyping bool) {
	t.Helper()
	require.NoError(t, s.HandleFrame(frameJSON(t, map[string]any{"type": "typing", "isTyping": isTyping})))
}
