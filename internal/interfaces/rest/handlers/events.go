package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/application/commands"
	"github.com/DanielPopoola/edge-collector/internal/interfaces/rest"
)

const maxEventBytes = 1 << 20

type SendEventData struct {
	RequestID string `json:"requestId,omitempty"`
	Handle    []any  `json:"handle"`
}

func (h *Handlers) SendEvent(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	defer func() { h.metrics.HTTPRequest("/v1/events", status) }()

	cmd, err := h.decodeSendEvent(w, r)
	if err != nil {
		status = application.ToHTTPStatus(err)
		rest.WriteError(w, err, h.logger)
		return
	}

	resp, err := h.events.SendEvent(r.Context(), cmd)
	if err != nil {
		status = application.ToHTTPStatus(err)
		rest.WriteError(w, err, h.logger)
		return
	}

	handle, _ := resp.Body()["handle"].([]any)
	if handle == nil {
		handle = []any{}
	}

	rest.WriteSuccess(w, SendEventData{
		RequestID: resp.RequestID(),
		Handle:    handle,
	}, h.logger)
}

// decodeSendEvent checks the raw body against the published request schema
// before binding it.
func (h *Handlers) decodeSendEvent(w http.ResponseWriter, r *http.Request) (commands.SendEventCommand, error) {
	var cmd commands.SendEventCommand

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		return cmd, application.NewInvalidInputError(fmt.Errorf("read body: %w", err))
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return cmd, application.NewInvalidInputError(fmt.Errorf("decode body: %w", err))
	}
	if err := h.requestSchema.VisitJSON(doc); err != nil {
		return cmd, application.NewInvalidInputError(err)
	}

	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, application.NewInvalidInputError(fmt.Errorf("bind body: %w", err))
	}
	return cmd, nil
}
