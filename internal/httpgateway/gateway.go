// Package httpgateway provides the single outbound request primitive used
// by every provider adapter: it composes circuit breaking, per-domain rate
// limiting, connect/request deadlines, and status-based retry with
// exponential backoff, in that order, and notifies the breaker exactly
// once per logical call.
package httpgateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/orgnr/bolagsdata/internal/breaker"
	"github.com/orgnr/bolagsdata/internal/ratelimit"
	"github.com/orgnr/bolagsdata/internal/retrypolicy"
)

// ErrCircuitOpen is returned when the source's breaker currently rejects calls.
var ErrCircuitOpen = errors.New("httpgateway: circuit open")

// ErrNotFound signals an HTTP 404; adapters treat this as "absent", not an error.
var ErrNotFound = errors.New("httpgateway: not found")

// StatusError wraps a non-retryable >=400 response.
type StatusError struct {
	StatusCode    int
	Body          []byte
	CorrelationID string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpgateway: unexpected status %d (request %s)", e.StatusCode, e.CorrelationID)
}

// Request describes one logical outbound call.
type Request struct {
	Source  string // logical breaker key, e.g. "registry_api"; rate limiting is keyed by the URL's host
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	Policy  retrypolicy.Policy
}

// Response is a fully-buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Gateway composes the breaker registry, rate limiter and HTTP client.
type Gateway struct {
	breakers       *breaker.Registry
	limiter        *ratelimit.Limiter
	client         *http.Client
	connectTimeout time.Duration
	requestTimeout time.Duration
}

// New builds a Gateway. connectTimeout bounds TCP+TLS handshake,
// requestTimeout bounds the full round trip including body read.
func New(breakers *breaker.Registry, limiter *ratelimit.Limiter, connectTimeout, requestTimeout time.Duration) *Gateway {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Gateway{
		breakers:       breakers,
		limiter:        limiter,
		client:         &http.Client{Transport: transport},
		connectTimeout: connectTimeout,
		requestTimeout: requestTimeout,
	}
}

// Do executes req per the composition order documented in the package doc,
// retrying per req.Policy, and records exactly one breaker outcome for the
// whole logical call (the last attempt's outcome).
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	b := g.breakers.For(req.Source)

	if !b.CanExecute() {
		b.RecordRejection()
		return nil, ErrCircuitOpen
	}

	domain, err := domainOf(req.URL)
	if err != nil {
		return nil, fmt.Errorf("httpgateway: parse url: %w", err)
	}

	correlationID := uuid.New().String()

	var lastErr error
	var resp *Response

	for attempt := 0; ; attempt++ {
		if err := g.limiter.Acquire(ctx, domain); err != nil {
			return nil, fmt.Errorf("httpgateway: rate limit wait: %w", err)
		}

		resp, lastErr = g.attempt(ctx, req, correlationID)

		if lastErr == nil && resp.StatusCode < 400 {
			b.RecordSuccess()
			return resp, nil
		}

		if lastErr == nil && resp.StatusCode == http.StatusNotFound {
			// Not-found is absence, not a breaker failure.
			b.RecordSuccess()
			return nil, ErrNotFound
		}

		retryable := false
		if lastErr != nil {
			retryable = retrypolicy.IsRetryableErr(lastErr)
		} else {
			retryable = req.Policy.ShouldRetry(resp.StatusCode, attempt)
		}

		if !retryable || attempt >= req.Policy.MaxRetries {
			b.RecordFailure()
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: resp.Body, CorrelationID: correlationID}
		}

		if err := req.Policy.Sleep(ctx, attempt); err != nil {
			b.RecordFailure()
			return nil, err
		}
	}
}

func (g *Gateway) attempt(ctx context.Context, req Request, correlationID string) (*Response, error) {
	cctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(cctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	if req.Headers != nil {
		httpReq.Header = req.Headers
	}
	httpReq.Header.Set("X-Request-Id", correlationID)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func domainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
