package chat

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	codeAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	defaultCodeLength = 6
	maxCodeAttempts   = 16
)

// Registry — таблица комнат процесса: создание, поиск и удаление пустых.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	codeLen int
	random  io.Reader
	log     zerolog.Logger
}

type RegistryOption func(*Registry)

// WithCodeLength задаёт длину кода комнаты, который выдаёт Create.
func WithCodeLength(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.codeLen = n
		}
	}
}

// WithRandom подменяет источник случайности (нужно тестам).
func WithRandom(src io.Reader) RegistryOption {
	return func(r *Registry) { r.random = src }
}

func NewRegistry(log zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:   make(map[string]*Room),
		codeLen: defaultCodeLength,
		random:  rand.Reader,
		log:     log.With().Str("module", "chat.registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create выдаёт свободный код и регистрирует под ним пустую комнату.
// Коды, занятые живыми комнатами, пропускаются.
func (r *Registry) Create() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return "", err
		}
		if _, taken := r.rooms[code]; taken {
			r.log.Debug().Str("room", code).Int("attempt", attempt).Msg("room code collision, retrying")
			continue
		}
		r.rooms[code] = NewRoom(code)
		r.log.Info().Str("room", code).Msg("room created")
		return code, nil
	}
	return "", ErrCodeSpaceExhausted
}

func (r *Registry) Exists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

func (r *Registry) Get(roomID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// GetOrCreate возвращает существующую комнату или атомарно создаёт новую.
func (r *Registry) GetOrCreate(roomID string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		return room
	}
	room := NewRoom(roomID)
	r.rooms[roomID] = room
	r.log.Info().Str("room", roomID).Msg("room created on join")
	return room
}

// DeleteIfEmpty удаляет запись, только если в комнате нет участников.
// Проверка и удаление идут под мьютексом реестра; комната помечается
// закрытой, поэтому параллельный join в неё получит ErrRoomClosed
// и пересоздаст комнату, а не останется в снятой.
func (r *Registry) DeleteIfEmpty(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok || !room.closeIfEmpty() {
		return false
	}
	delete(r.rooms, roomID)
	r.log.Info().Str("room", roomID).Msg("room removed")
	return true
}

// Sweep снимает комнаты, которые были созданы, но так и не получили
// ни одного участника за olderThan.
func (r *Registry) Sweep(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := time.Now().UTC().Add(-olderThan)
	removed := 0
	for id, room := range r.rooms {
		if room.CreatedAt().After(deadline) {
			continue
		}
		if room.closeIfEmpty() {
			delete(r.rooms, id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Info().Int("rooms", removed).Msg("stale rooms swept")
	}
	return removed
}

// Stats — сводка для healthz.
type Stats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{Rooms: len(r.rooms)}
	for _, room := range r.rooms {
		s.Members += room.Len()
	}
	return s
}

func (r *Registry) newCode() (string, error) {
	var b strings.Builder
	b.Grow(r.codeLen)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < r.codeLen; i++ {
		n, err := rand.Int(r.random, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
