package services

import (
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// ResponseProcessor checks response structure and surfaces the warnings and
// errors the server embedded in it.
type ResponseProcessor struct {
	schema  *openapi3.Schema
	logger  *slog.Logger
	metrics Metrics
}

// NewResponseProcessor builds a processor. A nil schema limits validation to
// the presence of a JSON object body.
func NewResponseProcessor(schema *openapi3.Schema, logger *slog.Logger, metrics Metrics) *ResponseProcessor {
	return &ResponseProcessor{
		schema:  schema,
		logger:  logger,
		metrics: metricsOrNop(metrics),
	}
}

// ValidateWellFormed returns the decoded body, which is nil for a
// legitimate no-content response.
func (p *ResponseProcessor) ValidateWellFormed(nr *domain.NetworkResponse) (map[string]any, error) {
	if nr.ParsedBody == nil {
		if nr.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		return nil, domain.NewMalformedResponseError(nr.StatusCode, nr.Body)
	}

	body, ok := nr.ParsedBody.(map[string]any)
	if !ok {
		return nil, domain.NewMalformedResponseError(nr.StatusCode, nr.Body)
	}

	if p.schema != nil {
		if err := p.schema.VisitJSON(body); err != nil {
			return nil, domain.NewSchemaViolationError(nr.StatusCode, err)
		}
	}

	return body, nil
}

// ProcessWarningsAndErrors logs every warning and fails when the errors
// collection is non-empty.
func (p *ResponseProcessor) ProcessWarningsAndErrors(response *domain.Response) error {
	for _, warning := range response.Warnings() {
		p.logger.Warn("The server responded with a warning: "+warning.Code+": "+warning.Message,
			"request_id", response.RequestID(),
		)
		p.metrics.ServerWarning()
	}

	if errs := response.Errors(); len(errs) > 0 {
		return &domain.ServerReportedError{Messages: errs}
	}

	return nil
}
