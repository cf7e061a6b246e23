package services

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/config"
	"github.com/getkin/kin-openapi/openapi3"
)

// Instance is one configured collector: a single identity gate and lifecycle
// registry shared by every event it sends.
type Instance struct {
	Lifecycle  *LifecycleRegistry
	Dispatcher *RequestDispatcher
	Gate       *IdentityGate
	Events     *EventService
}

func NewInstance(
	ctx context.Context,
	edge config.EdgeConfig,
	store application.CookieStore,
	transport application.Transport,
	responseSchema *openapi3.Schema,
	metrics Metrics,
	logger *slog.Logger,
) *Instance {
	logger = logger.With("org_id", edge.OrgID, "config_id", edge.ConfigID)

	lifecycle := NewLifecycleRegistry()
	dispatcher := NewRequestDispatcher(
		edge,
		lifecycle,
		NewCookieTransfer(store, edge.OrgID, edge.CookieDomain),
		transport,
		NewResponseProcessor(responseSchema, logger, metrics),
		metrics,
		logger,
	)
	gate := NewIdentityGate(
		ctx,
		dispatcher,
		store,
		NewCookieLegacyIdentity(store, edge.OrgID),
		edge,
		metrics,
		logger,
	)

	return &Instance{
		Lifecycle:  lifecycle,
		Dispatcher: dispatcher,
		Gate:       gate,
		Events:     NewEventService(gate, logger),
	}
}
