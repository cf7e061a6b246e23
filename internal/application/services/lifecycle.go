package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/DanielPopoola/edge-collector/internal/application"
)

// LifecycleHooks is the set of callbacks one component contributes. Any
// field may be nil.
type LifecycleHooks struct {
	Name             string
	OnBeforeRequest  func(ctx context.Context, event application.BeforeRequestEvent) error
	OnResponse       application.ResponseListener
	OnRequestFailure application.FailureListener
}

// LifecycleRegistry runs the hooks of every registered component. Pre-request
// hooks run one at a time in registration order because they mutate the
// payload; response and failure hooks fan out.
type LifecycleRegistry struct {
	mu       sync.RWMutex
	before   []LifecycleHooks
	response *CallbackAggregator[application.ResponseEvent]
	failure  *CallbackAggregator[application.FailureEvent]
}

func NewLifecycleRegistry() *LifecycleRegistry {
	return &LifecycleRegistry{
		response: NewCallbackAggregator[application.ResponseEvent](),
		failure:  NewCallbackAggregator[application.FailureEvent](),
	}
}

func (r *LifecycleRegistry) Register(hooks LifecycleHooks) {
	if hooks.OnBeforeRequest != nil {
		r.mu.Lock()
		r.before = append(r.before, hooks)
		r.mu.Unlock()
	}
	if hooks.OnResponse != nil {
		r.response.Add(hooks.OnResponse)
	}
	if hooks.OnRequestFailure != nil {
		r.failure.Add(hooks.OnRequestFailure)
	}
}

func (r *LifecycleRegistry) OnBeforeRequest(ctx context.Context, event application.BeforeRequestEvent) error {
	r.mu.RLock()
	hooks := append([]LifecycleHooks(nil), r.before...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnBeforeRequest(ctx, event); err != nil {
			return fmt.Errorf("%s: onBeforeRequest: %w", h.Name, err)
		}
	}
	return nil
}

func (r *LifecycleRegistry) OnResponse(ctx context.Context, event application.ResponseEvent) error {
	return r.response.Call(ctx, event)
}

func (r *LifecycleRegistry) OnRequestFailure(ctx context.Context, event application.FailureEvent) error {
	return r.failure.Call(ctx, event)
}
