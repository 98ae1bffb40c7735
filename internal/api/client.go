// Package api is the agent's sole network boundary. It turns domain calls
// into authenticated HTTP requests against the risk backend, bounds every
// call with a fixed timeout, and translates transport and status-code
// failures into typed errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zerotrust-labs/sentinel/internal/logging"
	"github.com/zerotrust-labs/sentinel/internal/metrics"
	"github.com/zerotrust-labs/sentinel/internal/traces"
)

// DefaultTimeout bounds every outbound call unless overridden.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the current session token and clears it on
// rejection. Implemented by credentials.Manager.
type TokenSource interface {
	Token() (string, bool)
	Clear() error
}

// Client is the HTTP gateway to the risk backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(logger, "gateway") }
}

// NewClient creates a gateway client for the backend at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorBody is the error envelope the backend uses for non-2xx responses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do issues one request and decodes the response body into a map.
// needsAuth calls fail immediately with KindUnauthenticated when no token
// is stored, without touching the network.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, needsAuth bool) (map[string]any, error) {
	ctx, span := traces.StartSpan(ctx, "api."+op, traces.Operation(op))
	defer span.End()

	var token string
	if needsAuth {
		var ok bool
		token, ok = c.tokens.Token()
		if !ok {
			metrics.APIRequestsTotal.WithLabelValues(op, KindUnauthenticated.String()).Inc()
			return nil, &Error{Kind: KindUnauthenticated, Detail: "no session token"}
		}
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if needsAuth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	timer := prometheus.NewTimer(metrics.APIRequestDuration.WithLabelValues(op))
	resp, err := c.httpClient.Do(req)
	timer.ObserveDuration()
	if err != nil {
		apiErr := c.classifyTransport(err)
		metrics.APIRequestsTotal.WithLabelValues(op, apiErr.Kind.String()).Inc()
		c.logger.Warn("request failed",
			"operation", op,
			"kind", apiErr.Kind.String(),
			"request_id", requestID,
			"error", err,
		)
		return nil, apiErr
	}
	defer resp.Body.Close()

	span.SetAttributes(traces.StatusCode(resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(op, KindUnreachable.String()).Inc()
		return nil, &Error{Kind: KindUnreachable, Detail: "read response", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Stale tokens are never retried silently: clear the credential
		// before the error reaches the caller.
		if clearErr := c.tokens.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear rejected token", "error", clearErr)
		}
		apiErr := &Error{
			Kind:   KindTokenRejected,
			Detail: errorDetail(respBody),
			Status: resp.StatusCode,
		}
		metrics.APIRequestsTotal.WithLabelValues(op, apiErr.Kind.String()).Inc()
		c.logger.Warn("token rejected", "operation", op, "status", resp.StatusCode, "request_id", requestID)
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{
			Kind:   KindServerError,
			Detail: errorDetail(respBody),
			Status: resp.StatusCode,
		}
		metrics.APIRequestsTotal.WithLabelValues(op, apiErr.Kind.String()).Inc()
		c.logger.Warn("server error", "operation", op, "status", resp.StatusCode, "detail", apiErr.Detail, "request_id", requestID)
		return nil, apiErr
	}

	payload := map[string]any{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &payload); err != nil {
			metrics.APIRequestsTotal.WithLabelValues(op, KindMalformedResponse.String()).Inc()
			return nil, &Error{Kind: KindMalformedResponse, Detail: "undecodable response body", Status: resp.StatusCode, Err: err}
		}
	}

	metrics.APIRequestsTotal.WithLabelValues(op, "ok").Inc()
	c.logger.Debug("request ok", "operation", op, "status", resp.StatusCode, "request_id", requestID)
	return payload, nil
}

// classifyTransport maps a transport error to Timeout or Unreachable.
func (c *Client) classifyTransport(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Detail: "request timed out", Err: err}
	}
	return &Error{Kind: KindUnreachable, Detail: "backend unreachable", Err: err}
}

// errorDetail extracts the server's error/message field, falling back to
// a generic detail.
func errorDetail(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return "request failed"
}
