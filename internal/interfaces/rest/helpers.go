package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteSuccess(w http.ResponseWriter, data any, logger *slog.Logger) {
	WriteJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: data}, logger)
}
