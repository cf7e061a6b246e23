package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/DanielPopoola/edge-collector/internal/application/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackAggregator_CallsEveryListener(t *testing.T) {
	var calls atomic.Int32
	agg := services.NewCallbackAggregator[int](
		func(_ context.Context, n int) error { calls.Add(int32(n)); return nil },
		nil,
		func(_ context.Context, n int) error { calls.Add(int32(n)); return nil },
	)

	require.NoError(t, agg.Call(context.Background(), 2))
	assert.Equal(t, int32(4), calls.Load())
}

func TestCallbackAggregator_FailureDoesNotShortCircuit(t *testing.T) {
	var ran atomic.Bool
	first := errors.New("first failed")
	second := errors.New("second failed")

	agg := services.NewCallbackAggregator[string]()
	agg.Add(func(context.Context, string) error { return first })
	agg.Add(func(context.Context, string) error { return second })
	agg.Add(func(context.Context, string) error { ran.Store(true); return nil })

	err := agg.Call(context.Background(), "x")

	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.True(t, ran.Load())
}

func TestCallbackAggregator_PanicCountsAsFailure(t *testing.T) {
	var ran atomic.Bool
	agg := services.NewCallbackAggregator[string](
		func(context.Context, string) error { panic("kaboom") },
		func(context.Context, string) error { ran.Store(true); return nil },
	)

	err := agg.Call(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.True(t, ran.Load())
}

func TestCallbackAggregator_LateRegistration(t *testing.T) {
	var late atomic.Bool
	agg := services.NewCallbackAggregator[string]()

	// registered after construction, before Call, as a pre-request hook would
	agg.Add(func(context.Context, string) error { late.Store(true); return nil })

	require.NoError(t, agg.Call(context.Background(), "x"))
	assert.True(t, late.Load())
}

func TestCallbackAggregator_Empty(t *testing.T) {
	agg := services.NewCallbackAggregator[string]()
	assert.NoError(t, agg.Call(context.Background(), "x"))
}
