package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter собирает маршруты сервера. c задаёт CORS для API;
// его же OriginAllowed используется для проверки Origin у WebSocket.
func NewRouter(h *Handlers, c *cors.Cors) http.Handler {
	if c != nil && h.Options.CheckOrigin == nil {
		h.Options.CheckOrigin = c.OriginAllowed
	}

	r := mux.NewRouter()

	// API маршруты
	api := r.PathPrefix("/api/room").Subrouter()
	api.HandleFunc("/create", h.CreateRoomHandler).Methods(http.MethodPost)
	api.HandleFunc("/{roomId}", h.RoomExistsHandler).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	// WebSocket маршрут
	r.HandleFunc("/ws", h.ChatConnectionHandler).Methods(http.MethodGet)

	var handler http.Handler = r
	if c != nil {
		handler = c.Handler(handler)
	}
	return LoggingMiddleware(h.Log)(handler)
}

// NewCORS — CORS-политика для списка источников ("*" — любые).
func NewCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
}
