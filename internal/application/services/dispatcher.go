package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/config"
	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/DanielPopoola/edge-collector/internal/application/services"

// Dispatcher sends one payload through the full request lifecycle.
// Implementations call DispatchStarted(ctx) on entry.
type Dispatcher interface {
	Dispatch(
		ctx context.Context,
		payload *domain.Payload,
		action string,
		onResponse application.ResponseListener,
		onRequestFailure application.FailureListener,
	) (*domain.Response, error)
}

type RequestDispatcher struct {
	edge         config.EdgeConfig
	lifecycle    application.Lifecycle
	cookies      *CookieTransfer
	transport    application.Transport
	processor    *ResponseProcessor
	metrics      Metrics
	tracer       trace.Tracer
	newRequestID func() string
	logger       *slog.Logger
}

func NewRequestDispatcher(
	edge config.EdgeConfig,
	lifecycle application.Lifecycle,
	cookies *CookieTransfer,
	transport application.Transport,
	processor *ResponseProcessor,
	metrics Metrics,
	logger *slog.Logger,
) *RequestDispatcher {
	return &RequestDispatcher{
		edge:         edge,
		lifecycle:    lifecycle,
		cookies:      cookies,
		transport:    transport,
		processor:    processor,
		metrics:      metricsOrNop(metrics),
		tracer:       otel.Tracer(tracerName),
		newRequestID: uuid.NewString,
		logger:       logger,
	}
}

// BuildURL assembles the collection endpoint for one request.
func BuildURL(scheme, domainName, basePath, apiVersion, action, configID, requestID string) string {
	return fmt.Sprintf("%s://%s/%s/%s/%s?configId=%s&requestId=%s",
		scheme,
		domainName,
		basePath,
		apiVersion,
		action,
		url.QueryEscape(configID),
		url.QueryEscape(requestID),
	)
}

// Dispatch runs, in order: cookie transfer, the pre-request hook, the send,
// structural validation, response cookie persistence, response listeners,
// and finally embedded error extraction. Transport and validation failures
// reach the failure listeners and are returned unchanged.
func (d *RequestDispatcher) Dispatch(
	ctx context.Context,
	payload *domain.Payload,
	action string,
	onResponse application.ResponseListener,
	onRequestFailure application.FailureListener,
) (*domain.Response, error) {
	start := time.Now()
	DispatchStarted(ctx)

	endpointDomain := d.edge.Domain
	if payload.IsIDThirdPartyDomain() {
		endpointDomain = d.edge.IDThirdPartyDomain
	}

	requestID := d.newRequestID()
	requestURL := BuildURL(d.edge.Scheme, endpointDomain, d.edge.BasePath, d.edge.APIVersion, action, d.edge.ConfigID, requestID)

	ctx, span := d.tracer.Start(ctx, "edge.dispatch", trace.WithAttributes(
		attribute.String("edge.action", action),
		attribute.String("edge.request_id", requestID),
		attribute.String("edge.domain", endpointDomain),
	))
	defer span.End()

	responses := NewCallbackAggregator[application.ResponseEvent](d.lifecycle.OnResponse, onResponse)
	failures := NewCallbackAggregator[application.FailureEvent](d.lifecycle.OnRequestFailure, onRequestFailure)

	if err := d.cookies.CookiesToPayload(ctx, payload, endpointDomain); err != nil {
		d.finish(span, action, "cookie_error", start, err)
		return nil, fmt.Errorf("transfer cookies to payload: %w", err)
	}

	err := d.lifecycle.OnBeforeRequest(ctx, application.BeforeRequestEvent{
		Payload:          payload,
		OnResponse:       func(l application.ResponseListener) { responses.Add(l) },
		OnRequestFailure: func(l application.FailureListener) { failures.Add(l) },
	})

	var networkResponse *domain.NetworkResponse
	if err == nil {
		networkResponse, err = d.transport.Send(ctx, domain.Request{
			URL:       requestURL,
			RequestID: requestID,
			Payload:   payload,
			Action:    action,
		})
	}

	var body map[string]any
	if err == nil {
		body, err = d.processor.ValidateWellFormed(networkResponse)
	}

	if err != nil {
		if listenerErr := failures.Call(ctx, application.FailureEvent{Err: err}); listenerErr != nil {
			d.logger.Debug("request failure listener failed",
				"request_id", requestID,
				"error", listenerErr,
			)
		}
		d.finish(span, action, "failure", start, err)
		return nil, err
	}

	response := domain.NewResponse(body)
	if err := d.cookies.ResponseToCookies(ctx, response); err != nil {
		d.finish(span, action, "cookie_error", start, err)
		return nil, fmt.Errorf("persist response cookies: %w", err)
	}

	listenerErr := responses.Call(ctx, application.ResponseEvent{Response: response})

	// Embedded errors are reported only after the success side effects above.
	if err := errors.Join(d.processor.ProcessWarningsAndErrors(response), listenerErr); err != nil {
		d.finish(span, action, "server_error", start, err)
		return nil, err
	}

	d.finish(span, action, "success", start, nil)
	return response, nil
}

func (d *RequestDispatcher) finish(span trace.Span, action, outcome string, start time.Time, err error) {
	d.metrics.ObserveDispatch(action, outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		d.logger.Debug("edge request failed",
			"action", action,
			"outcome", outcome,
			"error", err,
		)
		return
	}
	span.SetStatus(codes.Ok, "")
}
