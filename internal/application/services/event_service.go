package services

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/edge-collector/internal/application/commands"
	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// Submitter is the entry point that owns identity sequencing.
type Submitter interface {
	Submit(ctx context.Context, payload *domain.Payload, action string, cb Callbacks) (*domain.Response, error)
}

type EventService struct {
	gate   Submitter
	logger *slog.Logger
}

func NewEventService(gate Submitter, logger *slog.Logger) *EventService {
	return &EventService{gate: gate, logger: logger}
}

// SendEvent validates cmd, builds its payload and submits it.
func (s *EventService) SendEvent(ctx context.Context, cmd commands.SendEventCommand) (*domain.Response, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	payload := domain.NewPayload()
	payload.AddEvent(cmd.ToEvent())

	action := cmd.Action()
	resp, err := s.gate.Submit(ctx, payload, action, Callbacks{})
	if err != nil {
		s.logger.Warn("send event failed",
			"action", action,
			"event_type", cmd.Type,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("event sent",
		"action", action,
		"event_type", cmd.Type,
		"request_id", resp.RequestID(),
	)
	return resp, nil
}
