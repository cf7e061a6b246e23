package application

import (
	"context"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// Transport is the port for the edge network. Implementations return a
// NetworkResponse for every answer the server gave, whatever its status, and
// an error only when no answer was obtained.
type Transport interface {
	Send(ctx context.Context, req domain.Request) (*domain.NetworkResponse, error)
}

// CookieStore is the port for client-side state persistence.
type CookieStore interface {
	// All returns every unexpired cookie keyed by name.
	All(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, cookie domain.Cookie) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// LegacyIdentityProvider resolves an identifier minted by an older visitor
// library, if one exists. An empty string means none was found.
type LegacyIdentityProvider interface {
	LegacyECID(ctx context.Context) (string, error)
}

type ResponseEvent struct {
	Response *domain.Response
}

type FailureEvent struct {
	Err error
}

type ResponseListener func(ctx context.Context, event ResponseEvent) error

type FailureListener func(ctx context.Context, event FailureEvent) error

// BeforeRequestEvent is handed to the pre-request hook. The hook may register
// further listeners that will run for this request only.
type BeforeRequestEvent struct {
	Payload          *domain.Payload
	OnResponse       func(ResponseListener)
	OnRequestFailure func(FailureListener)
}

// Lifecycle is the port for cross-cutting hooks around every request.
type Lifecycle interface {
	OnBeforeRequest(ctx context.Context, event BeforeRequestEvent) error
	OnResponse(ctx context.Context, event ResponseEvent) error
	OnRequestFailure(ctx context.Context, event FailureEvent) error
}
