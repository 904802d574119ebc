package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// State — состояние сессии соединения.
type State int

const (
	StateUnjoined State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionConfig — правила, общие для всех сессий процесса.
type SessionConfig struct {
	AutoCreateRooms bool // join в неизвестную комнату создаёт её
	MaxUsernameLen  int  // в рунах, 0 — без ограничения
	MaxMessageLen   int  // в рунах, 0 — без ограничения
}

// Session переводит входящие кадры одного соединения в операции
// реестра и комнат. HandleFrame вызывается из одной горутины чтения,
// Close может прийти из любой горутины и выполняется ровно один раз.
type Session struct {
	id         string
	transport  Transport
	registry   *Registry
	dispatcher *Dispatcher
	cfg        SessionConfig
	log        zerolog.Logger

	mu       sync.Mutex
	state    State
	room     *Room
	username string
}

func NewSession(id string, transport Transport, registry *Registry, dispatcher *Dispatcher, cfg SessionConfig, log zerolog.Logger) *Session {
	return &Session{
		id:         id,
		transport:  transport,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("module", "chat.session").Str("conn", id).Logger(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID возвращает комнату сессии или пустую строку, если сессия не в комнате.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return ""
	}
	return s.room.ID
}

// HandleFrame обрабатывает один входящий кадр. Ошибка *ProtocolError
// означает, что кадр отброшен; клиенту уже ушёл кадр error,
// соединение закрывать не нужно.
func (s *Session) HandleFrame(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.sendError("invalid frame payload")
		return &ProtocolError{Reason: "invalid frame payload", Err: err}
	}

	switch frame.Type {
	case FrameJoin:
		s.handleJoin(frame.RoomID, frame.Username)
	case FrameMessage:
		s.handleMessage(frame.Text)
	case FrameTyping:
		s.handleTyping(frame.IsTyping)
	default:
		s.sendError("unsupported frame type")
		return &ProtocolError{Reason: fmt.Sprintf("unsupported frame type %q", frame.Type)}
	}
	return nil
}

// Close завершает сессию: выходит из комнаты, если была в ней.
// Повторные вызовы ничего не делают.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	if s.state == StateJoined {
		s.leave()
	}
	s.state = StateClosed
	s.log.Debug().Msg("session closed")
}

func (s *Session) handleJoin(roomID, username string) {
	roomID = strings.TrimSpace(roomID)
	username = strings.TrimSpace(username)
	if roomID == "" {
		s.sendError("roomId is required")
		return
	}
	if username == "" {
		s.sendError("username is required")
		return
	}
	if s.cfg.MaxUsernameLen > 0 && utf8.RuneCountInString(username) > s.cfg.MaxUsernameLen {
		s.sendError(fmt.Sprintf("username must be at most %d characters", s.cfg.MaxUsernameLen))
		return
	}

	if s.state == StateJoined && s.room.ID == roomID && s.rejoin(username) {
		return
	}

	// Повторный join — переход в другую комнату через обычный выход.
	if s.state == StateJoined {
		s.leave()
	}

	room, err := s.enter(roomID, username)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			s.log.Info().Str("room", roomID).Msg("join to unknown room rejected")
			s.sendError("Room not found")
			return
		}
		s.log.Error().Err(err).Str("room", roomID).Msg("join failed")
		s.sendError("could not join room")
		return
	}

	s.room = room
	s.username = username
	s.state = StateJoined
	s.log.Info().Str("room", roomID).Str("username", username).Msg("joined room")
}

// rejoin обрабатывает повторный join в ту же комнату: комнату не покидаем
// и из реестра не снимаем, журнал сохраняется. Участнику снова уходит
// history; если имя сменилось, остальные получают user_left и user_joined.
// false — участника в комнате уже нет (удалён рассыльщиком), нужен обычный вход.
func (s *Session) rejoin(username string) bool {
	room, oldName := s.room, s.username
	ok := false
	room.Do(func() {
		if ok = room.Rename(s.id, username); !ok {
			return
		}
		users := room.SnapshotMembers()
		if err := s.dispatcher.Send(s.transport, HistoryFrame{
			Type:     FrameHistory,
			Messages: room.SnapshotHistory(),
			Users:    users,
		}); err != nil {
			s.log.Warn().Err(err).Msg("failed to send history")
		}
		if username == oldName {
			return
		}
		s.dispatcher.Broadcast(room, PresenceFrame{Type: FrameUserLeft, Username: oldName, Users: users}, s.id)
		s.dispatcher.Broadcast(room, PresenceFrame{Type: FrameUserJoined, Username: username, Users: users}, s.id)
	})
	if ok {
		s.username = username
		s.log.Info().Str("room", room.ID).Str("username", username).Msg("rejoined room")
	}
	return ok
}

// enter добавляет соединение в комнату и рассылает history / user_joined
// в одной критической секции. Если реестр успел снять комнату между
// поиском и добавлением, комната ищется заново.
func (s *Session) enter(roomID, username string) (*Room, error) {
	for {
		room, err := s.resolve(roomID)
		if err != nil {
			return nil, err
		}

		room.Do(func() {
			if err = room.AddMember(s.id, username, s.transport); err != nil {
				return
			}
			users := room.SnapshotMembers()
			if sendErr := s.dispatcher.Send(s.transport, HistoryFrame{
				Type:     FrameHistory,
				Messages: room.SnapshotHistory(),
				Users:    users,
			}); sendErr != nil {
				s.log.Warn().Err(sendErr).Msg("failed to send history")
			}
			s.dispatcher.Broadcast(room, PresenceFrame{
				Type:     FrameUserJoined,
				Username: username,
				Users:    users,
			}, s.id)
		})

		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return room, nil
	}
}

func (s *Session) resolve(roomID string) (*Room, error) {
	if s.cfg.AutoCreateRooms {
		return s.registry.GetOrCreate(roomID), nil
	}
	room, ok := s.registry.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (s *Session) handleMessage(text string) {
	if s.state != StateJoined {
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if s.cfg.MaxMessageLen > 0 && utf8.RuneCountInString(text) > s.cfg.MaxMessageLen {
		s.sendError(fmt.Sprintf("message must be at most %d characters", s.cfg.MaxMessageLen))
		return
	}

	room := s.room
	room.Do(func() {
		if _, ok := room.Member(s.id); !ok {
			return // удалён рассыльщиком, ждём закрытия соединения
		}
		msg := room.AppendMessage(s.username, text)
		s.dispatcher.Broadcast(room, MessageFrame{Type: FrameMessage, Message: msg}, "")
	})
}

// handleTyping только пересылает сигнал; сервер его не хранит
// и не сбрасывает по таймеру.
func (s *Session) handleTyping(isTyping bool) {
	if s.state != StateJoined {
		return
	}
	room := s.room
	room.Do(func() {
		if _, ok := room.Member(s.id); !ok {
			return
		}
		s.dispatcher.Broadcast(room, TypingFrame{
			Type:     FrameTyping,
			Username: s.username,
			IsTyping: isTyping,
		}, s.id)
	})
}

// leave вызывается под s.mu в состоянии Joined.
func (s *Session) leave() {
	room, username := s.room, s.username
	room.Do(func() {
		removed, _ := room.RemoveMember(s.id)
		if !removed {
			// Уже удалён рассыльщиком после ошибки доставки.
			return
		}
		s.dispatcher.Broadcast(room, PresenceFrame{
			Type:     FrameUserLeft,
			Username: username,
			Users:    room.SnapshotMembers(),
		}, "")
	})
	s.registry.DeleteIfEmpty(room.ID)
	s.log.Info().Str("room", room.ID).Str("username", username).Msg("left room")

	s.room = nil
	s.username = ""
	s.state = StateUnjoined
}

func (s *Session) sendError(message string) {
	if err := s.dispatcher.Send(s.transport, ErrorFrame{Type: FrameError, Message: message}); err != nil {
		s.log.Debug().Err(err).Msg("failed to send error frame")
	}
}
