package chat

import "time"

// Message — одно сообщение в логе комнаты. После добавления не меняется.
type Message struct {
	ID        uint64    `json:"id"`       // Монотонный номер внутри комнаты
	Username  string    `json:"username"` // Автор
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// User — публичное представление участника комнаты (без транспорта).
type User struct {
	ID       string `json:"id"` // Идентификатор соединения
	Username string `json:"username"`
}

// Member связывает соединение с отображаемым именем внутри комнаты.
type Member struct {
	ConnID    string
	Username  string
	Transport Transport
}

//go:generate mockgen -source=types.go -destination=mocks/mock_transport.go -package=mocks

// Transport — исходящая сторона соединения участника.
// Send не должен блокироваться: реализация кладёт данные в буфер
// и возвращает ошибку, если буфер переполнен или соединение закрыто.
type Transport interface {
	Send(payload []byte) error
	Close() error
}

// ----------------------------
// Входящие кадры (клиент → сервер)
// ----------------------------

const (
	FrameJoin       = "join"
	FrameMessage    = "message"
	FrameTyping     = "typing"
	FrameHistory    = "history"
	FrameUserJoined = "user_joined"
	FrameUserLeft   = "user_left"
	FrameError      = "error"
)

// inboundFrame — все поля, которые клиент может прислать.
// Какие из них значимы, зависит от Type.
type inboundFrame struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Text     string `json:"text"`
	IsTyping bool   `json:"isTyping"`
}

// ----------------------------
// Исходящие кадры (сервер → клиент)
// ----------------------------

type HistoryFrame struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
	Users    []User    `json:"users"`
}

// PresenceFrame используется и для user_joined, и для user_left.
type PresenceFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Users    []User `json:"users"`
}

type MessageFrame struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type TypingFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
