package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Минимальные методы websocket.Conn, которые нужны клиенту
type WebSocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// FrameHandler — получатель входящих кадров (на практике *Session).
type FrameHandler interface {
	HandleFrame(raw []byte) error
	Close()
}

// ClientConfig — таймауты и лимиты одного соединения.
type ClientConfig struct {
	SendBuffer int
	ReadLimit  int64
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// Client — WebSocket-соединение участника. Реализует Transport:
// Send кладёт кадр в ограниченный буфер, WriteSocket отправляет его в сеть.
type Client struct {
	conn      WebSocketConn
	send      chan []byte   // Исходящие кадры
	closeCh   chan struct{} // Закрывается ровно один раз в Close
	closeOnce sync.Once
	cfg       ClientConfig
	log       zerolog.Logger
}

func NewClient(conn WebSocketConn, cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 32768
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 3 / 4
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Client{
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		closeCh: make(chan struct{}),
		cfg:     cfg,
		log:     log.With().Str("module", "chat.client").Logger(),
	}
}

// Send не блокируется: при переполненном буфере возвращает
// ErrSendBufferFull, после Close — ErrTransportClosed.
func (client *Client) Send(payload []byte) error {
	select {
	case <-client.closeCh:
		return ErrTransportClosed
	default:
	}

	select {
	case client.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close закрывает соединение; повторные вызовы безопасны.
func (client *Client) Close() error {
	var err error
	client.closeOnce.Do(func() {
		close(client.closeCh)
		err = client.conn.Close()
	})
	return err
}

// Done закрывается, когда клиент закрыт.
func (client *Client) Done() <-chan struct{} { return client.closeCh }

// ReadSocket читает кадры и передаёт их обработчику строго по порядку.
// По завершении закрывает обработчик и соединение.
func (client *Client) ReadSocket(handler FrameHandler) {
	defer func() {
		handler.Close()
		_ = client.Close()
	}()

	// Настройка лимита и времени ожидания чтения
	client.conn.SetReadLimit(client.cfg.ReadLimit)
	_ = client.conn.SetReadDeadline(time.Now().Add(client.cfg.PongWait))
	client.conn.SetPongHandler(func(string) error { // Обновление таймаута при получении PONG
		return client.conn.SetReadDeadline(time.Now().Add(client.cfg.PongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.log.Debug().Err(err).Msg("read error")
			}
			return
		}

		if err := handler.HandleFrame(data); err != nil {
			var perr *ProtocolError
			switch {
			case errors.As(err, &perr):
				client.log.Warn().Err(err).Msg("frame discarded")
			case errors.Is(err, ErrSessionClosed):
				return
			default:
				client.log.Error().Err(err).Msg("frame handling failed")
			}
		}
	}
}
