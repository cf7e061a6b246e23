package rest

import (
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/edge-collector/internal/application"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// WriteError maps application and domain errors to HTTP responses.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode := application.ToHTTPStatus(err)

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:     application.ToErrorCode(err),
			Message:  err.Error(),
			Category: string(application.CategorizeError(err)),
		},
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "status", statusCode, "error", err)
	}

	WriteJSON(w, statusCode, response, logger)
}
