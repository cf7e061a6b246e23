package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// CallbackAggregator fans one call out to every registered listener and
// settles once all of them have. Listeners added before Call starts
// iterating are included, even if Call was already requested.
type CallbackAggregator[T any] struct {
	mu        sync.Mutex
	listeners []func(context.Context, T) error
}

func NewCallbackAggregator[T any](listeners ...func(context.Context, T) error) *CallbackAggregator[T] {
	a := &CallbackAggregator[T]{}
	for _, l := range listeners {
		a.Add(l)
	}
	return a
}

// Add registers a listener. Nil listeners are ignored.
func (a *CallbackAggregator[T]) Add(listener func(context.Context, T) error) {
	if listener == nil {
		return
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, listener)
	a.mu.Unlock()
}

// Call invokes every listener concurrently and waits for all of them. A
// failing or panicking listener never prevents its siblings from running;
// the returned error joins every failure in registration order.
func (a *CallbackAggregator[T]) Call(ctx context.Context, arg T) error {
	a.mu.Lock()
	listeners := slices.Clone(a.listeners)
	a.mu.Unlock()

	errs := make([]error, len(listeners))
	var wg sync.WaitGroup
	for i, listener := range listeners {
		wg.Go(func() {
			errs[i] = invokeListener(ctx, listener, arg)
		})
	}
	wg.Wait()

	return errors.Join(errs...)
}

func invokeListener[T any](ctx context.Context, listener func(context.Context, T) error, arg T) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("listener panicked: %v", rec)
		}
	}()
	return listener(ctx, arg)
}
