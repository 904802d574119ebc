package web

import (
	"encoding/json"
	"net/http"
)

// =========================
// withJSON задаёт заголовки JSON
// =========================
func withJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
}

// writeJSON пишет статус и тело ответа в формате JSON.
func writeJSON(w http.ResponseWriter, status int, body any) {
	withJSON(w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
