package web

import (
	"net/http"
	"time"

	"github.com/go-portfolio/roomchat/internal/chat"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Options — параметры соединений и сессий, приходят из config.
type Options struct {
	Session chat.SessionConfig
	Client  chat.ClientConfig
	// CheckOrigin решает, можно ли принять соединение с данного источника.
	// nil — принимать любые.
	CheckOrigin func(r *http.Request) bool
}

func (h *Handlers) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			// Клиенты не из браузера Origin не присылают
			if r.Header.Get("Origin") == "" || h.Options.CheckOrigin == nil {
				return true
			}
			return h.Options.CheckOrigin(r)
		},
	}
}

// =========================
// ChatConnectionHandler
// GET /ws
// =========================
func (h *Handlers) ChatConnectionHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже записал ответ с ошибкой
		h.Log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade error")
		return
	}

	connID := uuid.NewString()
	log := h.Log.With().Str("conn", connID).Logger()

	client := chat.NewClient(conn, h.Options.Client, log)
	session := chat.NewSession(connID, client, h.Registry, h.Dispatcher, h.Options.Session, log)
	log.Debug().Str("remote", r.RemoteAddr).Msg("connection opened")

	// Запись — в отдельной горутине, чтение — в текущей
	go client.WriteSocket()
	client.ReadSocket(session)
	log.Debug().Msg("connection closed")
}
