package chat

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// Room хранит участников и журнал сообщений одной комнаты.
//
// Два мьютекса:
//   - order сериализует переходы сессий (изменение + рассылка) через Do;
//   - mu защищает сами данные, чтобы снимки можно было брать из любой горутины.
type Room struct {
	ID string

	order sync.Mutex

	mu        sync.Mutex
	members   map[string]Member
	joined    []string // connID в порядке входа, для стабильных снимков
	log       []Message
	nextID    uint64
	closed    bool
	createdAt time.Time
	now       func() time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		members:   make(map[string]Member),
		createdAt: time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Do выполняет fn в критической секции комнаты. Рассылки, начатые внутри fn,
// уходят в буферы участников в том же порядке, в каком менялось состояние.
func (r *Room) Do(fn func()) {
	r.order.Lock()
	defer r.order.Unlock()
	fn()
}

// AddMember добавляет участника. Если комната уже снята реестром,
// возвращает ErrRoomClosed, и вызывающий должен заново получить комнату.
func (r *Room) AddMember(connID, username string, transport Transport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.members[connID]; ok {
		return ErrAlreadyMember
	}
	r.members[connID] = Member{ConnID: connID, Username: username, Transport: transport}
	r.joined = append(r.joined, connID)
	return nil
}

// RemoveMember идемпотентен: повторный вызов ничего не делает.
// removed сообщает, был ли участник в комнате, empty — опустела ли она.
func (r *Room) RemoveMember(connID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[connID]; ok {
		delete(r.members, connID)
		r.joined = lo.Without(r.joined, connID)
		removed = true
	}
	return removed, len(r.members) == 0
}

// Rename меняет имя участника, не трогая его место в порядке входа.
// false — такого участника нет.
func (r *Room) Rename(connID, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return false
	}
	m.Username = username
	r.members[connID] = m
	return true
}

func (r *Room) AppendMessage(username, text string) Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	msg := Message{
		ID:        r.nextID,
		Username:  username,
		Text:      text,
		Timestamp: r.now(),
	}
	r.log = append(r.log, msg)
	return msg
}

func (r *Room) SnapshotMembers() []User {
	return lo.Map(r.memberList(), func(m Member, _ int) User {
		return User{ID: m.ConnID, Username: m.Username}
	})
}

func (r *Room) SnapshotHistory() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := make([]Message, len(r.log))
	copy(history, r.log)
	return history
}

// Member возвращает участника по идентификатору соединения.
func (r *Room) Member(connID string) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	return m, ok
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) CreatedAt() time.Time { return r.createdAt }

// memberList — упорядоченный снимок участников вместе с транспортом.
func (r *Room) memberList() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, 0, len(r.joined))
	for _, id := range r.joined {
		out = append(out, r.members[id])
	}
	return out
}

// closeIfEmpty помечает пустую комнату закрытой. Вызывается только реестром
// под его собственным мьютексом.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) != 0 {
		return false
	}
	r.closed = true
	return true
}
