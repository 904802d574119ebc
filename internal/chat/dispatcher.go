package chat

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Result — итог одной рассылки.
type Result struct {
	Delivered int
	Pruned    []Member
}

// Dispatcher доставляет кадр текущим участникам комнаты.
// Вызывать его нужно внутри Room.Do, чтобы порядок рассылок совпадал
// с порядком изменений комнаты.
type Dispatcher struct {
	log zerolog.Logger
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{log: log.With().Str("module", "chat.dispatcher").Logger()}
}

// Broadcast сериализует кадр один раз и отправляет его всем участникам,
// кроме exclude (пустая строка — без исключений). Участник, которому
// отправить не удалось, удаляется из комнаты, его соединение закрывается,
// а остальные получают user_left.
func (d *Dispatcher) Broadcast(room *Room, frame any, exclude string) Result {
	payload, err := json.Marshal(frame)
	if err != nil {
		d.log.Error().Err(err).Str("room", room.ID).Msg("failed to marshal frame")
		return Result{}
	}

	var res Result
	for _, m := range room.memberList() {
		if m.ConnID == exclude {
			continue
		}
		if err := m.Transport.Send(payload); err != nil {
			d.log.Warn().Err(err).Str("room", room.ID).Str("conn", m.ConnID).Msg("delivery failed, pruning member")
			res.Pruned = append(res.Pruned, m)
			continue
		}
		res.Delivered++
	}

	for _, m := range res.Pruned {
		d.prune(room, m)
	}
	return res
}

// Send отправляет кадр одному транспорту (history, error).
func (d *Dispatcher) Send(t Transport, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return t.Send(payload)
}

// prune удаляет упавшего участника и сообщает об уходе оставшимся.
// Каждый вызов уменьшает комнату, поэтому рекурсия конечна.
func (d *Dispatcher) prune(room *Room, m Member) {
	removed, _ := room.RemoveMember(m.ConnID)
	if err := m.Transport.Close(); err != nil {
		d.log.Debug().Err(err).Str("room", room.ID).Str("conn", m.ConnID).Msg("failed to close pruned transport")
	}
	if !removed {
		return
	}
	d.Broadcast(room, PresenceFrame{
		Type:     FrameUserLeft,
		Username: m.Username,
		Users:    room.SnapshotMembers(),
	}, "")
}
