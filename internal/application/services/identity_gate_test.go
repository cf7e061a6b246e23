package services_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/application/services"
	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyECID = "legacy-ecid"

type dispatchCall struct {
	payload *domain.Payload
	// true answers with a response, false with a transport failure
	done chan bool
	// closed by the test to report the dispatch as started, when holdStart is set
	start chan struct{}
}

// blockingDispatcher parks every dispatch until the test answers it.
type blockingDispatcher struct {
	calls     chan *dispatchCall
	holdStart bool
}

func newBlockingDispatcher() *blockingDispatcher {
	return &blockingDispatcher{calls: make(chan *dispatchCall, 64)}
}

func (d *blockingDispatcher) Dispatch(
	ctx context.Context,
	payload *domain.Payload,
	action string,
	onResponse application.ResponseListener,
	onRequestFailure application.FailureListener,
) (*domain.Response, error) {
	call := &dispatchCall{payload: payload, done: make(chan bool), start: make(chan struct{})}
	d.calls <- call
	if d.holdStart {
		<-call.start
	}
	services.DispatchStarted(ctx)

	if <-call.done {
		resp := domain.NewResponse(nil)
		if onResponse != nil {
			if err := onResponse(ctx, application.ResponseEvent{Response: resp}); err != nil {
				return nil, err
			}
		}
		return resp, nil
	}

	err := domain.NewTransportError(errors.New("offline"))
	if onRequestFailure != nil {
		_ = onRequestFailure(ctx, application.FailureEvent{Err: err})
	}
	return nil, err
}

func (d *blockingDispatcher) next(t *testing.T) *dispatchCall {
	t.Helper()
	select {
	case call := <-d.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
		return nil
	}
}

func (d *blockingDispatcher) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case call := <-d.calls:
		t.Fatalf("unexpected dispatch of %p", call.payload)
	case <-time.After(50 * time.Millisecond):
	}
}

type submitResult struct {
	resp *domain.Response
	err  error
}

type gateFixture struct {
	gate       *services.IdentityGate
	dispatcher *blockingDispatcher
	store      *memory.CookieStore
	logs       *syncBuffer
}

// syncBuffer serializes writes from concurrent callers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newGateFixture(t *testing.T, withIdentity bool) *gateFixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewCookieStore()
	require.NoError(t, store.Set(ctx, domain.Cookie{
		Name:  domain.LegacyCookieName(testOrgID),
		Value: "1|MCMID|" + legacyECID + "|MCAAMLH-1700000000|9",
	}))
	if withIdentity {
		require.NoError(t, store.Set(ctx, domain.Cookie{Name: domain.IdentityCookieName(testOrgID), Value: "ecid"}))
	}

	logs := &syncBuffer{}
	dispatcher := newBlockingDispatcher()
	gate := services.NewIdentityGate(
		ctx,
		dispatcher,
		store,
		services.NewCookieLegacyIdentity(store, testOrgID),
		testEdgeConfig(),
		nil,
		slog.New(slog.NewTextHandler(logs, nil)),
	)

	return &gateFixture{gate: gate, dispatcher: dispatcher, store: store, logs: logs}
}

func (f *gateFixture) submit(ctx context.Context, payload *domain.Payload) <-chan submitResult {
	out := make(chan submitResult, 1)
	go func() {
		resp, err := f.gate.Submit(ctx, payload, "interact", services.Callbacks{})
		out <- submitResult{resp: resp, err: err}
	}()
	return out
}

// submitQueued submits and waits until the call is parked in the gate so
// arrival order is deterministic.
func (f *gateFixture) submitQueued(t *testing.T, ctx context.Context, payload *domain.Payload) <-chan submitResult {
	t.Helper()
	before := f.gate.Pending()
	out := f.submit(ctx, payload)
	require.Eventually(t, func() bool { return f.gate.Pending() == before+1 }, 2*time.Second, 5*time.Millisecond)
	return out
}

func (f *gateFixture) confirmIdentity(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), domain.Cookie{
		Name:  domain.IdentityCookieName(testOrgID),
		Value: "new-ecid",
	}))
}

func augmented(p *domain.Payload) bool {
	return p.IsIDThirdPartyDomain() && len(p.Identities(domain.NamespaceECID)) == 1 &&
		p.Identities(domain.NamespaceECID)[0].ID == legacyECID
}

func plain(p *domain.Payload) bool {
	return !p.IsIDThirdPartyDomain() && len(p.Identities(domain.NamespaceECID)) == 0
}

func await(t *testing.T, ch <-chan submitResult) submitResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for submit to return")
		return submitResult{}
	}
}

func TestIdentityGate_ThreeCallsOneBootstrap(t *testing.T) {
	f := newGateFixture(t, false)
	ctx := context.Background()

	payloads := []*domain.Payload{domain.NewPayload(), domain.NewPayload(), domain.NewPayload()}

	first := f.submit(ctx, payloads[0])
	bootstrap := f.dispatcher.next(t)
	assert.Same(t, payloads[0], bootstrap.payload)

	second := f.submitQueued(t, ctx, payloads[1])
	third := f.submitQueued(t, ctx, payloads[2])
	f.dispatcher.assertIdle(t)

	f.confirmIdentity(t)
	bootstrap.done <- true

	released := []*dispatchCall{f.dispatcher.next(t), f.dispatcher.next(t)}
	assert.Same(t, payloads[1], released[0].payload)
	assert.Same(t, payloads[2], released[1].payload)
	for _, call := range released {
		call.done <- true
	}

	for _, ch := range []<-chan submitResult{first, second, third} {
		require.NoError(t, await(t, ch).err)
	}

	assert.True(t, augmented(payloads[0]))
	assert.True(t, plain(payloads[1]))
	assert.True(t, plain(payloads[2]))
	assert.Equal(t, 0, f.gate.Pending())

	logs := f.logs.String()
	assert.Equal(t, 2, strings.Count(logs, "Delaying request while retrieving ECID from server."))
	assert.Equal(t, 2, strings.Count(logs, "Resuming previously delayed request."))
}

func TestIdentityGate_FailedBootstrapHandsOff(t *testing.T) {
	f := newGateFixture(t, false)
	ctx := context.Background()

	payloads := []*domain.Payload{domain.NewPayload(), domain.NewPayload(), domain.NewPayload(), domain.NewPayload()}

	first := f.submit(ctx, payloads[0])
	call0 := f.dispatcher.next(t)

	second := f.submitQueued(t, ctx, payloads[1])
	third := f.submitQueued(t, ctx, payloads[2])
	fourth := f.submitQueued(t, ctx, payloads[3])

	// answered, but no identity cookie was set
	call0.done <- true
	require.NoError(t, await(t, first).err, "bootstrap failure is not surfaced")

	call1 := f.dispatcher.next(t)
	assert.Same(t, payloads[1], call1.payload)
	f.dispatcher.assertIdle(t)
	assert.Equal(t, 2, f.gate.Pending())

	f.confirmIdentity(t)
	call1.done <- true

	rest := []*dispatchCall{f.dispatcher.next(t), f.dispatcher.next(t)}
	assert.Same(t, payloads[2], rest[0].payload)
	assert.Same(t, payloads[3], rest[1].payload)
	for _, call := range rest {
		call.done <- true
	}

	for _, ch := range []<-chan submitResult{second, third, fourth} {
		require.NoError(t, await(t, ch).err)
	}

	assert.True(t, augmented(payloads[0]))
	assert.True(t, augmented(payloads[1]))
	assert.True(t, plain(payloads[2]))
	assert.True(t, plain(payloads[3]))
}

func TestIdentityGate_TransportFailureStillHandsOff(t *testing.T) {
	f := newGateFixture(t, false)
	ctx := context.Background()

	first := f.submit(ctx, domain.NewPayload())
	call0 := f.dispatcher.next(t)

	queued := domain.NewPayload()
	second := f.submitQueued(t, ctx, queued)

	call0.done <- false
	res := await(t, first)
	require.Error(t, res.err)
	assert.True(t, domain.IsErrorCode(res.err, domain.ErrCodeTransport))

	call1 := f.dispatcher.next(t)
	assert.Same(t, queued, call1.payload)
	assert.True(t, augmented(queued))

	f.confirmIdentity(t)
	call1.done <- true
	require.NoError(t, await(t, second).err)
}

func TestIdentityGate_IdentityAlreadyPresent(t *testing.T) {
	f := newGateFixture(t, true)
	ctx := context.Background()

	payload := domain.NewPayload()
	out := f.submit(ctx, payload)
	f.dispatcher.next(t).done <- true
	require.NoError(t, await(t, out).err)

	assert.True(t, plain(payload))
	assert.NotContains(t, f.logs.String(), "Delaying request")
}

func TestIdentityGate_NoQueueRearms(t *testing.T) {
	f := newGateFixture(t, false)
	ctx := context.Background()

	first := f.submit(ctx, domain.NewPayload())
	f.dispatcher.next(t).done <- true
	require.NoError(t, await(t, first).err)

	payload := domain.NewPayload()
	second := f.submit(ctx, payload)
	call := f.dispatcher.next(t)
	assert.True(t, augmented(payload), "next arrival becomes the new bootstrap attempt")

	f.confirmIdentity(t)
	call.done <- true
	require.NoError(t, await(t, second).err)
}

func TestIdentityGate_CancelledWaiterLeavesQueue(t *testing.T) {
	f := newGateFixture(t, false)

	first := f.submit(context.Background(), domain.NewPayload())
	call0 := f.dispatcher.next(t)

	ctx, cancel := context.WithCancel(context.Background())
	waiting := f.submitQueued(t, ctx, domain.NewPayload())

	cancel()
	res := await(t, waiting)
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, 0, f.gate.Pending())

	call0.done <- true
	require.NoError(t, await(t, first).err)
	f.dispatcher.assertIdle(t)
}

func TestIdentityGate_CallerListenersStillRun(t *testing.T) {
	f := newGateFixture(t, false)

	var called bool
	out := make(chan error, 1)
	go func() {
		_, err := f.gate.Submit(context.Background(), domain.NewPayload(), "interact", services.Callbacks{
			OnResponse: func(ctx context.Context, event application.ResponseEvent) error {
				called = true
				return nil
			},
		})
		out <- err
	}()

	f.confirmIdentity(t)
	f.dispatcher.next(t).done <- true
	require.NoError(t, <-out)
	assert.True(t, called)
}

func TestIdentityGate_ReleasesWaitersInArrivalOrder(t *testing.T) {
	prev := runtime.GOMAXPROCS(4)
	t.Cleanup(func() { runtime.GOMAXPROCS(prev) })

	const waiting = 20

	for range 10 {
		f := newGateFixture(t, false)
		ctx := context.Background()

		first := f.submit(ctx, domain.NewPayload())
		bootstrap := f.dispatcher.next(t)

		payloads := make([]*domain.Payload, waiting)
		results := make([]<-chan submitResult, waiting)
		for i := range payloads {
			payloads[i] = domain.NewPayload()
			results[i] = f.submitQueued(t, ctx, payloads[i])
		}

		f.confirmIdentity(t)
		bootstrap.done <- true
		require.NoError(t, await(t, first).err)

		calls := make([]*dispatchCall, waiting)
		for i := range calls {
			calls[i] = f.dispatcher.next(t)
			require.Same(t, payloads[i], calls[i].payload, "waiter %d dispatched out of order", i)
		}
		for _, call := range calls {
			call.done <- true
		}
		for _, ch := range results {
			require.NoError(t, await(t, ch).err)
		}
		assert.Equal(t, 0, f.gate.Pending())
	}
}

func TestIdentityGate_NewArrivalWaitsForRelease(t *testing.T) {
	f := newGateFixture(t, false)
	f.dispatcher.holdStart = true
	ctx := context.Background()

	first := f.submit(ctx, domain.NewPayload())
	bootstrap := f.dispatcher.next(t)
	close(bootstrap.start)

	queuedA, queuedB := domain.NewPayload(), domain.NewPayload()
	resultA := f.submitQueued(t, ctx, queuedA)
	resultB := f.submitQueued(t, ctx, queuedB)

	f.confirmIdentity(t)
	bootstrap.done <- true
	require.NoError(t, await(t, first).err)

	callA := f.dispatcher.next(t)
	assert.Same(t, queuedA, callA.payload)

	// identity is confirmed but B has not been let go yet
	late := domain.NewPayload()
	resultLate := f.submitQueued(t, ctx, late)
	assert.Equal(t, 2, f.gate.Pending())
	f.dispatcher.assertIdle(t)

	close(callA.start)
	callB := f.dispatcher.next(t)
	assert.Same(t, queuedB, callB.payload)
	f.dispatcher.assertIdle(t)

	close(callB.start)
	callLate := f.dispatcher.next(t)
	assert.Same(t, late, callLate.payload)
	close(callLate.start)

	for _, call := range []*dispatchCall{callA, callB, callLate} {
		call.done <- true
	}
	for _, ch := range []<-chan submitResult{resultA, resultB, resultLate} {
		require.NoError(t, await(t, ch).err)
	}
	assert.True(t, plain(late))
	assert.Equal(t, 2, strings.Count(f.logs.String(), "Delaying request while retrieving ECID from server."))

	next := f.submit(ctx, domain.NewPayload())
	call := f.dispatcher.next(t)
	close(call.start)
	call.done <- true
	require.NoError(t, await(t, next).err)
}

// stallingStore blocks identity lookups while stall is set.
type stallingStore struct {
	*memory.CookieStore
	stall   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, name string) (string, bool, error) {
	if s.stall.Load() {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		<-s.release
	}
	return s.CookieStore.Get(ctx, name)
}

func TestIdentityGate_LookupDoesNotHoldGate(t *testing.T) {
	store := &stallingStore{
		CookieStore: memory.NewCookieStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	dispatcher := newBlockingDispatcher()
	gate := services.NewIdentityGate(
		context.Background(),
		dispatcher,
		store,
		nil,
		testEdgeConfig(),
		nil,
		slog.New(slog.NewTextHandler(&syncBuffer{}, nil)),
	)
	store.stall.Store(true)

	out := make(chan error, 1)
	go func() {
		_, err := gate.Submit(context.Background(), domain.NewPayload(), "interact", services.Callbacks{})
		out <- err
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("identity lookup never started")
	}

	pending := make(chan int, 1)
	go func() { pending <- gate.Pending() }()
	select {
	case n := <-pending:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("gate stayed locked during the cookie lookup")
	}

	store.stall.Store(false)
	close(store.release)

	dispatcher.next(t).done <- true
	require.NoError(t, <-out)
}
