package web

import (
	"net/http"
	"strings"

	"github.com/go-portfolio/roomchat/internal/chat"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Handlers — HTTP-обработчики поверх реестра комнат.
type Handlers struct {
	Registry   *chat.Registry
	Dispatcher *chat.Dispatcher
	Options    Options
	Log        zerolog.Logger
}

// =========================
// Создание комнаты
// POST /api/room/create
// ответ JSON { "roomId": "K3Z9QA" }
// =========================
func (h *Handlers) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.Registry.Create()
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to create room")
		writeError(w, http.StatusServiceUnavailable, "failed to create room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"roomId": roomID})
}

// =========================
// Проверка существования комнаты
// GET /api/room/{roomId}
// ответ JSON { "exists": true }
// =========================
func (h *Handlers) RoomExistsHandler(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(mux.Vars(r)["roomId"])
	writeJSON(w, http.StatusOK, map[string]bool{"exists": h.Registry.Exists(roomID)})
}

// =========================
// GET /healthz
// =========================
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	stats := h.Registry.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"rooms":   stats.Rooms,
		"members": stats.Members,
	})
}
