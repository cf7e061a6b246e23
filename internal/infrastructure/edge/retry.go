package edge

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/config"
	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// RetryTransport resends requests that failed in transit or were refused
// by an overloaded edge. When retries run out the last answer is returned
// as is.
type RetryTransport struct {
	inner      application.Transport
	baseDelay  time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewRetryTransport(inner application.Transport, cfg config.RetryConfig, logger *slog.Logger) *RetryTransport {
	return &RetryTransport{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: int(cfg.MaxRetries),
		logger:     logger,
	}
}

func (r *RetryTransport) Send(ctx context.Context, req domain.Request) (*domain.NetworkResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.inner.Send(ctx, req)
		if attempt >= r.maxRetries || !isRetryable(resp, err) {
			return resp, err
		}

		delay := r.backoff(attempt)
		r.logger.Warn("retrying edge request",
			"request_id", req.RequestID,
			"attempt", attempt+1,
			"delay", delay,
			"status", statusOf(resp),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, domain.NewTransportError(ctx.Err())
		case <-timer.C:
		}
	}
}

func isRetryable(resp *domain.NetworkResponse, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return domain.IsErrorCode(err, domain.ErrCodeTransport)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff grows exponentially with up to one base delay of jitter.
func (r *RetryTransport) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	if r.baseDelay <= 0 {
		return base
	}
	return base + rand.N(r.baseDelay)
}

func statusOf(resp *domain.NetworkResponse) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
