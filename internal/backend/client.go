// Package backend is the HTTP transport between the client core and the
// marketplace REST service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/config"
	"github.com/spec-kit/talent-client/internal/observability"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

const maxErrorMessageLen = 512

// Authorizer supplies the bearer credential and is told when the backend
// rejected it. The rejected token is passed back so a response to a request
// made with an older credential cannot clear a newer session.
type Authorizer interface {
	Token() string
	HandleUnauthorized(rejected string)
}

// Client performs JSON requests against the backend.
type Client struct {
	cfg        config.BackendConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu   sync.RWMutex
	auth Authorizer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithMetrics records request latency and breaker state.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a backend client.
func New(cfg config.BackendConfig, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     observability.OrNop(logger).Named("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}

	maxFailures := uint32(5)
	if cfg.BreakerMaxFailures > 0 {
		maxFailures = uint32(cfg.BreakerMaxFailures)
	}
	openFor := 30 * time.Second
	if cfg.BreakerOpenSeconds > 0 {
		openFor = time.Duration(cfg.BreakerOpenSeconds) * time.Second
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "backend",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.metrics.SetBreakerState(breakerStateValue(to))
		},
	})
	return c
}

// SetAuthorizer binds the credential source. It is set after construction
// because the session manager itself logs in through this client.
func (c *Client) SetAuthorizer(a Authorizer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
}

func (c *Client) authorizer() Authorizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// Endpoint returns the absolute URL for path.
func (c *Client) Endpoint(path string) string {
	return c.cfg.Endpoint(path)
}

// BreakerState exposes the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// rawResponse is what one round trip produced.
type rawResponse struct {
	status      int
	contentType string
	body        []byte
}

// errServerStatus marks 5xx responses as failures for the breaker.
type errServerStatus struct{ resp *rawResponse }

func (e *errServerStatus) Error() string {
	return fmt.Sprintf("backend responded %d", e.resp.status)
}

// Do sends a JSON request and decodes a successful response into out.
// A bearer credential is attached when the authorizer has one; a 401 on a
// credentialed request is reported back to the authorizer.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError(fmt.Errorf("encode request: %w", err))
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint(path), payload)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	auth := c.authorizer()
	token := ""
	if auth != nil {
		token = auth.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && token != "" && auth != nil {
		c.logger.Info("credential rejected by backend", zap.String("path", path))
		auth.HandleUnauthorized(token)
	}

	if resp.status < 200 || resp.status >= 300 {
		return apperrors.FromStatus(resp.status, errorMessage(resp.body))
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := decodeEnvelope(resp.body, out); err != nil {
		return apperrors.NewDomainError(apperrors.CodeUpstream, "malformed backend response", http.StatusBadGateway, nil)
	}
	return nil
}

// ForwardRequest is a raw request relayed on behalf of another caller.
type ForwardRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        io.Reader
	Token       string
	RequestID   string
}

// ForwardResponse carries the backend's answer verbatim.
type ForwardResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forward relays a request with the caller's own credential. Unlike Do it
// never touches the bound authorizer.
func (c *Client) Forward(ctx context.Context, fr ForwardRequest) (*ForwardResponse, error) {
	method := fr.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint(fr.Path), fr.Body)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("build request: %w", err))
	}
	if fr.ContentType != "" {
		req.Header.Set("Content-Type", fr.ContentType)
	}
	if fr.Token != "" {
		req.Header.Set("Authorization", "Bearer "+fr.Token)
	}
	if fr.RequestID != "" {
		req.Header.Set(observability.RequestIDHeader, fr.RequestID)
	}

	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	return &ForwardResponse{StatusCode: resp.status, ContentType: resp.contentType, Body: resp.body}, nil
}

// Ping checks that the backend answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) roundTrip(req *http.Request) (*rawResponse, error) {
	if req.Header.Get(observability.RequestIDHeader) == "" {
		req.Header.Set(observability.RequestIDHeader, uuid.NewString())
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: data}
		if resp.StatusCode >= 500 {
			return raw, &errServerStatus{resp: raw}
		}
		return raw, nil
	})

	var serverErr *errServerStatus
	switch {
	case err == nil:
		raw := result.(*rawResponse)
		c.metrics.ObserveBackend(req.Method, raw.status, time.Since(start))
		return raw, nil
	case errors.As(err, &serverErr):
		c.metrics.ObserveBackend(req.Method, serverErr.resp.status, time.Since(start))
		return serverErr.resp, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, apperrors.NewNetworkError("backend temporarily unavailable", err)
	default:
		c.metrics.ObserveBackend(req.Method, 0, time.Since(start))
		c.logger.Warn("backend request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, apperrors.NewNetworkError("request cancelled", ctxErr)
		}
		return nil, apperrors.NewNetworkError("backend unreachable", err)
	}
}

// envelopeKeys are the only fields a {"data": ...} wrapper may carry.
var envelopeKeys = map[string]bool{"data": true, "message": true, "success": true, "status": true, "meta": true}

// decodeEnvelope accepts both bare payloads and {"data": ...} envelopes. An
// object is unwrapped only when every key belongs to the envelope.
func decodeEnvelope(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil && isEnvelope(envelope) {
			return json.Unmarshal(envelope["data"], out)
		}
	}
	return json.Unmarshal(trimmed, out)
}

func isEnvelope(fields map[string]json.RawMessage) bool {
	if _, ok := fields["data"]; !ok {
		return false
	}
	for key := range fields {
		if !envelopeKeys[key] {
			return false
		}
	}
	return true
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &parsed); err == nil {
		if len(parsed.Error) > 0 {
			var text string
			if json.Unmarshal(parsed.Error, &text) == nil && text != "" {
				return text
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
		return ""
	}

	text := strings.TrimSpace(string(trimmed))
	if len(text) > maxErrorMessageLen {
		text = text[:maxErrorMessageLen]
	}
	return text
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
