package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/application/commands"
	"github.com/DanielPopoola/edge-collector/internal/application/services"
	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, payload *domain.Payload, action string, cb services.Callbacks) (*domain.Response, error) {
	args := m.Called(ctx, payload, action, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Response), args.Error(1)
}

func TestEventService_SendEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("submits one event on the chosen action", func(t *testing.T) {
		submitter := new(MockSubmitter)
		svc := services.NewEventService(submitter, logger)

		resp := domain.NewResponse(map[string]any{"requestId": "r-1"})
		submitter.On("Submit", mock.Anything, mock.MatchedBy(func(p *domain.Payload) bool {
			return len(p.Events()) == 1 && p.Events()[0].XDM["eventType"] == "page-view" && p.Events()[0].MayUnload()
		}), commands.ActionCollect, mock.Anything).Return(resp, nil).Once()

		got, err := svc.SendEvent(context.Background(), commands.SendEventCommand{
			Type:              "page-view",
			DocumentUnloading: true,
		})

		require.NoError(t, err)
		assert.Equal(t, "r-1", got.RequestID())
		submitter.AssertExpectations(t)
	})

	t.Run("invalid command never reaches the gate", func(t *testing.T) {
		submitter := new(MockSubmitter)
		svc := services.NewEventService(submitter, logger)

		_, err := svc.SendEvent(context.Background(), commands.SendEventCommand{DecisionScopes: []string{""}})

		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidInput))
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("submit errors propagate", func(t *testing.T) {
		submitter := new(MockSubmitter)
		svc := services.NewEventService(submitter, logger)
		serverErr := &domain.ServerReportedError{Messages: []domain.ServerMessage{{Message: "bad"}}}

		submitter.On("Submit", mock.Anything, mock.Anything, commands.ActionInteract, mock.Anything).
			Return(nil, serverErr).Once()

		_, err := svc.SendEvent(context.Background(), commands.SendEventCommand{})
		assert.ErrorIs(t, err, serverErr)
	})
}

func TestLifecycleRegistry_BeforeRequestStopsOnError(t *testing.T) {
	registry := services.NewLifecycleRegistry()
	var ran []string

	registry.Register(services.LifecycleHooks{
		Name: "consent",
		OnBeforeRequest: func(ctx context.Context, event application.BeforeRequestEvent) error {
			ran = append(ran, "consent")
			return assert.AnError
		},
	})
	registry.Register(services.LifecycleHooks{
		Name: "personalization",
		OnBeforeRequest: func(ctx context.Context, event application.BeforeRequestEvent) error {
			ran = append(ran, "personalization")
			return nil
		},
	})

	err := registry.OnBeforeRequest(context.Background(), application.BeforeRequestEvent{Payload: domain.NewPayload()})

	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "consent")
	assert.Equal(t, []string{"consent"}, ran)
}
