package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/edge-collector/internal/api"
	"github.com/DanielPopoola/edge-collector/internal/application/commands"
	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// EventSender is the application operation behind POST /v1/events.
type EventSender interface {
	SendEvent(ctx context.Context, cmd commands.SendEventCommand) (*domain.Response, error)
}

type Handlers struct {
	events        EventSender
	requestSchema *openapi3.Schema
	metrics       Metrics
	logger        *slog.Logger
}

// Metrics counts relay traffic.
type Metrics interface {
	HTTPRequest(route string, status int)
	Handler() http.Handler
}

func NewHandlers(events EventSender, requestSchema *openapi3.Schema, metrics Metrics, logger *slog.Logger) *Handlers {
	return &Handlers{
		events:        events,
		requestSchema: requestSchema,
		metrics:       metrics,
		logger:        logger,
	}
}

// RegisterRoutes mounts the relay routes, the OpenAPI document and the
// metrics endpoint on mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/events", h.SendEvent)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())
	api.RegisterDocsRoutes(mux)
}
