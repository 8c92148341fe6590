// Package response пишет JSON-ответы HTTP-обработчиков.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody - тело ответа с ошибкой.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON отправляет v с заданным кодом статуса.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Error отправляет сообщение об ошибке.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorBody{Detail: detail})
}

func BadRequest(w http.ResponseWriter, detail string) {
	Error(w, http.StatusBadRequest, detail)
}

func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	Error(w, http.StatusUnauthorized, detail)
}

func NotFound(w http.ResponseWriter, detail string) {
	Error(w, http.StatusNotFound, detail)
}

func Conflict(w http.ResponseWriter, detail string) {
	Error(w, http.StatusConflict, detail)
}

func InternalError(w http.ResponseWriter, detail string) {
	Error(w, http.StatusInternalServerError, detail)
}
