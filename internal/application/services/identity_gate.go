package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/config"
	"github.com/DanielPopoola/edge-collector/internal/domain"
)

type gateState int

const (
	stateNoIdentity gateState = iota
	stateBootstrapInFlight
	stateIdentityConfirmed
)

func (s gateState) String() string {
	switch s {
	case stateNoIdentity:
		return "no_identity"
	case stateBootstrapInFlight:
		return "bootstrap_in_flight"
	case stateIdentityConfirmed:
		return "identity_confirmed"
	default:
		return "unknown"
	}
}

// Callbacks are the per-call listeners handed to the dispatcher.
type Callbacks struct {
	OnResponse       application.ResponseListener
	OnRequestFailure application.FailureListener
}

type dispatchStartedKey struct{}

// DispatchStarted reports that the request carried by ctx has entered the
// dispatcher. Dispatcher implementations call it on entry so the identity
// gate can release the next waiting request. Extra calls are ignored.
func DispatchStarted(ctx context.Context) {
	if release, ok := ctx.Value(dispatchStartedKey{}).(func()); ok {
		release()
	}
}

type gateWaiter struct {
	// receives true once identity is confirmed, false when this waiter must
	// run the next bootstrap attempt
	outcome chan bool
}

// IdentityGate makes sure only one request at a time tries to establish the
// visitor identity. Requests arriving while an attempt is in flight wait in
// arrival order. Once the identity cookie exists they are released one by
// one, each entering the dispatcher before the next is let go.
type IdentityGate struct {
	mu    sync.Mutex
	state gateState
	queue []*gateWaiter
	// set from confirmation until the queue has been handed out
	draining bool

	dispatcher Dispatcher
	cookies    application.CookieStore
	legacy     application.LegacyIdentityProvider
	edge       config.EdgeConfig
	metrics    Metrics
	logger     *slog.Logger
}

func NewIdentityGate(
	ctx context.Context,
	dispatcher Dispatcher,
	cookies application.CookieStore,
	legacy application.LegacyIdentityProvider,
	edge config.EdgeConfig,
	metrics Metrics,
	logger *slog.Logger,
) *IdentityGate {
	g := &IdentityGate{
		dispatcher: dispatcher,
		cookies:    cookies,
		legacy:     legacy,
		edge:       edge,
		metrics:    metricsOrNop(metrics),
		logger:     logger,
	}
	if g.identityExists(ctx) {
		g.state = stateIdentityConfirmed
	}
	return g
}

// Submit dispatches payload, first establishing identity if none exists yet.
func (g *IdentityGate) Submit(ctx context.Context, payload *domain.Payload, action string, cb Callbacks) (*domain.Response, error) {
	g.mu.Lock()
	if g.state == stateNoIdentity {
		g.mu.Unlock()
		// a cookie written outside the gate, e.g. by another instance
		// sharing the store, counts as confirmation
		exists := g.identityExists(ctx)
		g.mu.Lock()
		if exists && g.state == stateNoIdentity {
			g.state = stateIdentityConfirmed
		}
	}

	switch {
	case g.state == stateIdentityConfirmed && !g.draining:
		g.mu.Unlock()
		return g.dispatch(ctx, payload, action, cb)

	case g.state == stateNoIdentity:
		g.state = stateBootstrapInFlight
		g.mu.Unlock()
		return g.bootstrap(ctx, payload, action, cb)
	}

	// either a bootstrap is in flight or earlier waiters are still being
	// released; both keep arrival order
	w := &gateWaiter{outcome: make(chan bool, 1)}
	g.queue = append(g.queue, w)
	depth := len(g.queue)
	delayed := g.state == stateBootstrapInFlight
	g.mu.Unlock()

	g.metrics.GateQueueDepth(depth)
	if delayed {
		g.logger.Info("Delaying request while retrieving ECID from server.")
	}

	select {
	case confirmed := <-w.outcome:
		if delayed {
			g.logger.Info("Resuming previously delayed request.")
		}
		if confirmed {
			return g.dispatchReleased(ctx, payload, action, cb)
		}
		return g.bootstrap(ctx, payload, action, cb)

	case <-ctx.Done():
		g.abandon(w)
		return nil, ctx.Err()
	}
}

// Pending reports how many requests are waiting on identity.
func (g *IdentityGate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

func (g *IdentityGate) dispatch(ctx context.Context, payload *domain.Payload, action string, cb Callbacks) (*domain.Response, error) {
	return g.dispatcher.Dispatch(ctx, payload, action, cb.OnResponse, cb.OnRequestFailure)
}

// dispatchReleased sends a waiter freed by confirmation. The next waiter is
// released once this request has entered the dispatcher, or when the
// dispatch returns if the dispatcher never reports its start.
func (g *IdentityGate) dispatchReleased(ctx context.Context, payload *domain.Payload, action string, cb Callbacks) (*domain.Response, error) {
	var once sync.Once
	releaseNext := func() { once.Do(g.releaseNext) }
	defer releaseNext()

	return g.dispatch(context.WithValue(ctx, dispatchStartedKey{}, releaseNext), payload, action, cb)
}

func (g *IdentityGate) bootstrap(ctx context.Context, payload *domain.Payload, action string, cb Callbacks) (*domain.Response, error) {
	g.metrics.BootstrapAttempt()
	g.augment(ctx, payload)

	var once sync.Once
	confirm := func(ctx context.Context) {
		once.Do(func() {
			exists := g.identityExists(ctx)
			if !exists {
				g.logger.Warn("identity bootstrap did not confirm",
					"error", domain.ErrIdentityCookieNotFound,
					"waiting", g.Pending(),
				)
			}
			g.settle(exists)
		})
	}

	responses := NewCallbackAggregator[application.ResponseEvent](cb.OnResponse,
		func(ctx context.Context, _ application.ResponseEvent) error {
			confirm(context.WithoutCancel(ctx))
			return nil
		},
	)
	failures := NewCallbackAggregator[application.FailureEvent](cb.OnRequestFailure,
		func(ctx context.Context, _ application.FailureEvent) error {
			confirm(context.WithoutCancel(ctx))
			return nil
		},
	)

	resp, err := g.dispatcher.Dispatch(ctx, payload, action, responses.Call, failures.Call)

	// neither listener runs when the dispatch fails before send
	confirm(context.WithoutCancel(ctx))

	return resp, err
}

// augment prepares the identity-establishing request. A missing legacy ID
// never blocks the request.
func (g *IdentityGate) augment(ctx context.Context, payload *domain.Payload) {
	if g.edge.ThirdPartyCookiesEnabled {
		payload.UseIDThirdPartyDomain()
	}
	if g.legacy == nil {
		return
	}

	ecid, err := g.legacy.LegacyECID(ctx)
	if err != nil {
		g.logger.Warn("failed to read legacy identity", "error", err)
		return
	}
	if ecid != "" {
		payload.AddIdentity(domain.NamespaceECID, domain.Identity{ID: ecid})
	}
}

func (g *IdentityGate) settle(confirmed bool) {
	g.mu.Lock()
	defer func() {
		g.logger.Debug("identity gate settled", "state", g.state, "waiting", len(g.queue))
		g.mu.Unlock()
	}()

	if confirmed {
		g.state = stateIdentityConfirmed
		g.draining = true
		g.releaseNextLocked()
		return
	}

	if len(g.queue) == 0 {
		g.state = stateNoIdentity
		return
	}

	next := g.queue[0]
	g.queue = g.queue[1:]
	next.outcome <- false
	g.metrics.GateQueueDepth(len(g.queue))
}

func (g *IdentityGate) releaseNext() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseNextLocked()
}

// releaseNextLocked hands confirmation to the head of the queue only. The
// caller must hold g.mu and the gate must be confirmed.
func (g *IdentityGate) releaseNextLocked() {
	if len(g.queue) == 0 {
		g.draining = false
		g.metrics.GateQueueDepth(0)
		return
	}

	next := g.queue[0]
	g.queue = g.queue[1:]
	next.outcome <- true
	g.metrics.GateQueueDepth(len(g.queue))
}

// abandon removes a waiter whose caller gave up. If the waiter had already
// been handed an outcome, the role it was given moves on to the next one.
func (g *IdentityGate) abandon(w *gateWaiter) {
	g.mu.Lock()
	if i := slices.Index(g.queue, w); i >= 0 {
		g.queue = slices.Delete(g.queue, i, i+1)
		depth := len(g.queue)
		g.mu.Unlock()
		g.metrics.GateQueueDepth(depth)
		return
	}
	g.mu.Unlock()

	if confirmed := <-w.outcome; confirmed {
		g.releaseNext()
		return
	}
	g.settle(false)
}

func (g *IdentityGate) identityExists(ctx context.Context) bool {
	_, ok, err := g.cookies.Get(ctx, domain.IdentityCookieName(g.edge.OrgID))
	if err != nil {
		g.logger.Debug("identity cookie lookup failed", "error", err)
		return false
	}
	return ok
}
