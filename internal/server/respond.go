package server

import (
	"encoding/json"
	"net/http"
)

// envelope is the JSON shape of every /api and /login response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, envelope{Message: "Unauthorized"})
}

func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, envelope{Error: "Internal Server Error"})
}
