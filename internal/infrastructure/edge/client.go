package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/config"
	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// HTTPTransport posts payloads to the edge network. For endpoints under the
// site's own domain it behaves like a browser would: namespaced cookies go
// out as a Cookie header and Set-Cookie answers are written back to the
// store.
type HTTPTransport struct {
	httpClient *http.Client
	cookies    application.CookieStore
	orgID      string
	apexDomain string
	now        func() time.Time
	logger     *slog.Logger
}

func NewHTTPTransport(
	cfg config.TransportConfig,
	edgeCfg config.EdgeConfig,
	cookies application.CookieStore,
	logger *slog.Logger,
) *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cookies:    cookies,
		orgID:      edgeCfg.OrgID,
		apexDomain: edgeCfg.CookieDomain,
		now:        time.Now,
		logger:     logger,
	}
}

func (c *HTTPTransport) Send(ctx context.Context, req domain.Request) (*domain.NetworkResponse, error) {
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	endpoint, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("error parsing url: %w", err)
	}
	firstParty := domain.IsFirstPartyDomain(endpoint.Hostname(), c.apexDomain)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if firstParty {
		if err := c.attachCookies(ctx, httpReq); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("error reading response body: %w", err))
	}

	if firstParty {
		c.storeCookies(ctx, resp)
	}

	c.logger.Debug("edge response received",
		"request_id", req.RequestID,
		"status", resp.StatusCode,
		"bytes", len(raw),
	)

	networkResp := &domain.NetworkResponse{
		StatusCode: resp.StatusCode,
		Body:       string(raw),
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			networkResp.ParsedBody = parsed
		}
	}

	return networkResp, nil
}

func (c *HTTPTransport) attachCookies(ctx context.Context, httpReq *http.Request) error {
	all, err := c.cookies.All(ctx)
	if err != nil {
		return fmt.Errorf("error reading cookies: %w", err)
	}
	for name, value := range all {
		if domain.IsNamespacedCookie(c.orgID, name) {
			httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}
	return nil
}

// storeCookies is best effort: the response is still usable when a cookie
// cannot be persisted.
func (c *HTTPTransport) storeCookies(ctx context.Context, resp *http.Response) {
	for _, hc := range resp.Cookies() {
		if !domain.IsNamespacedCookie(c.orgID, hc.Name) {
			continue
		}

		cookie := domain.Cookie{Name: hc.Name, Value: hc.Value, Domain: c.apexDomain}
		switch {
		case hc.MaxAge > 0:
			expires := c.now().Add(time.Duration(hc.MaxAge) * time.Second)
			cookie.ExpiresAt = &expires
		case hc.MaxAge < 0:
			expired := c.now()
			cookie.ExpiresAt = &expired
		case !hc.Expires.IsZero():
			expires := hc.Expires
			cookie.ExpiresAt = &expires
		}

		if err := c.cookies.Set(ctx, cookie); err != nil {
			c.logger.Warn("failed to store response cookie", "cookie", hc.Name, "error", err)
		}
	}
}
