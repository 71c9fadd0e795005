// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

/*
executor.go - Resilient Request Executor

Wraps a single GLPI API call with the full resilience policy:

  - Connect/read timeouts (default 5s / 30s)
  - HTTP 429: honors a server-supplied Retry-After hint, otherwise
    exponential backoff with random jitter to desynchronize
    concurrent retriers
  - HTTP 401/403: invalidates the session, re-authenticates through
    the SessionManager, and retries the original request up to the
    re-auth cap
  - HTTP 5xx and network errors: retried up to maxRetries with the
    same backoff-with-jitter policy, then ErrUpstreamUnavailable
  - HTTP 400/404: surfaced immediately, never retried
  - Client-side pacing via a token-bucket rate limiter

A non-JSON body where JSON was expected is not an error: Result.Decode
returns a structured fallback with the raw text and content type so
callers can decide (some upstream error pages are HTML).

Every call emits one request outcome event - success or failure - with
method, endpoint, status, duration, retry count, and correlation ID.
*/
package glpi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/metrics"
)

// maxErrorBodySize limits how much of a response body is read for
// error reporting, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// Request describes one upstream API call.
type Request struct {
	Method string
	Path   string // relative to the API root, e.g. "/search/Ticket"
	Query  url.Values
	Header http.Header // extra headers, e.g. Range for pagination
}

// Result is a completed upstream response.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Retries is how many retry attempts the executor performed before
	// this response.
	Retries int
}

// Fallback carries a body that was expected to be JSON but is not.
type Fallback struct {
	RawText     string `json:"raw_text"`
	ContentType string `json:"content_type"`
}

// Decode unmarshals the JSON body into v. If the body is not JSON the
// call still succeeds and returns a Fallback describing what arrived
// instead; v is left untouched in that case.
func (r *Result) Decode(v interface{}) (*Fallback, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "json") && contentType != "" {
		return &Fallback{RawText: string(r.Body), ContentType: contentType}, nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Fallback{RawText: string(r.Body), ContentType: contentType}, nil
	}
	return nil, nil
}

// ContentRange returns the Content-Range response header, which GLPI
// uses to advertise pagination bounds ("start-end/total").
func (r *Result) ContentRange() string {
	return r.Header.Get("Content-Range")
}

// RequestEvent is the structured outcome event emitted once per
// executed call, success or failure.
type RequestEvent struct {
	Kind          string // "success", "rate_limited", "auth_failure", "upstream_unavailable", "bad_request", "not_found", "canceled"
	Method        string
	Endpoint      string
	Status        int
	Duration      time.Duration
	RetryCount    int
	CorrelationID string
}

// RequestObserver consumes request outcome events. Implementations
// must not block; the executor calls them inline.
type RequestObserver interface {
	ObserveRequest(ev RequestEvent)
}

// ExecutorConfig tunes the resilience policy.
type ExecutorConfig struct {
	BaseURL  string
	AppToken string

	ConnectTimeout time.Duration // default 5s
	ReadTimeout    time.Duration // default 30s

	MaxRetries     int           // default 3
	RetryBaseDelay time.Duration // default 1s
	JitterMax      time.Duration // default 500ms

	// MaxReauthAttempts caps 401/403-triggered re-authentications per
	// request chain. Default: 2.
	MaxReauthAttempts int

	// RequestsPerSecond enables client-side pacing when > 0.
	RequestsPerSecond float64

	// Observer overrides the default metrics+logging observer.
	Observer RequestObserver

	// HTTPClient overrides the built client. Intended for tests.
	HTTPClient *http.Client
}

// Executor performs resilient upstream requests on behalf of the
// gateway. Safe for concurrent use; backoff sleeps suspend only the
// sleeping call, never other in-flight requests.
type Executor struct {
	baseURL   string
	appToken  string
	client    *http.Client
	sessions  *SessionManager
	limiter   *rate.Limiter
	observer  RequestObserver
	maxRetry  int
	maxReauth int
	baseDelay time.Duration
	jitterMax time.Duration
}

// NewExecutor creates a request executor bound to a session manager.
func NewExecutor(sessions *SessionManager, cfg ExecutorConfig) *Executor {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.JitterMax <= 0 {
		cfg.JitterMax = 500 * time.Millisecond
	}
	if cfg.MaxReauthAttempts <= 0 {
		cfg.MaxReauthAttempts = 2
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: cfg.ConnectTimeout,
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	observer := cfg.Observer
	if observer == nil {
		observer = defaultObserver{}
	}

	return &Executor{
		baseURL:   cfg.BaseURL,
		appToken:  cfg.AppToken,
		client:    client,
		sessions:  sessions,
		limiter:   limiter,
		observer:  observer,
		maxRetry:  cfg.MaxRetries,
		maxReauth: cfg.MaxReauthAttempts,
		baseDelay: cfg.RetryBaseDelay,
		jitterMax: cfg.JitterMax,
	}
}

// Do executes one request under the full resilience policy.
func (e *Executor) Do(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	corrID := CorrelationID(ctx)

	var (
		retries    int
		reauths    int
		lastStatus int
	)

	emit := func(kind string) {
		e.observer.ObserveRequest(RequestEvent{
			Kind:          kind,
			Method:        req.Method,
			Endpoint:      req.Path,
			Status:        lastStatus,
			Duration:      time.Since(start),
			RetryCount:    retries,
			CorrelationID: corrID,
		})
	}

	for {
		if err := ctx.Err(); err != nil {
			emit("canceled")
			return nil, err
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				emit("canceled")
				return nil, err
			}
		}

		sess, err := e.sessions.EnsureValid(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthFailure) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				emit("auth_failure")
				return nil, err
			}
			// Transient login failure: counts against the re-auth cap.
			reauths++
			if reauths > e.maxReauth {
				emit("auth_failure")
				return nil, fmt.Errorf("%w: re-auth attempts exhausted: %v", ErrAuthFailure, err)
			}
			metrics.UpstreamRetriesTotal.WithLabelValues(req.Path, "reauth").Inc()
			continue
		}

		httpReq, err := e.buildRequest(ctx, req, sess.Token)
		if err != nil {
			emit("bad_request")
			return nil, err
		}

		resp, err := e.client.Do(httpReq)
		if err != nil {
			retries++
			if retries > e.maxRetry {
				emit("upstream_unavailable")
				return nil, fmt.Errorf("%w: %d attempts failed, last error: %v", ErrUpstreamUnavailable, retries, err)
			}
			metrics.UpstreamRetriesTotal.WithLabelValues(req.Path, "network").Inc()
			if err := e.sleepBackoff(ctx, retries-1, 0); err != nil {
				emit("canceled")
				return nil, err
			}
			continue
		}

		lastStatus = resp.StatusCode

		switch {
		case resp.StatusCode == http.StatusOK ||
			resp.StatusCode == http.StatusPartialContent ||
			resp.StatusCode == http.StatusCreated ||
			resp.StatusCode == http.StatusNoContent:
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				retries++
				if retries > e.maxRetry {
					emit("upstream_unavailable")
					return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, readErr)
				}
				metrics.UpstreamRetriesTotal.WithLabelValues(req.Path, "network").Inc()
				if err := e.sleepBackoff(ctx, retries-1, 0); err != nil {
					emit("canceled")
					return nil, err
				}
				continue
			}
			emit("success")
			return &Result{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Body:       body,
				Retries:    retries,
			}, nil

		case resp.StatusCode == http.StatusBadRequest:
			body := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			emit("bad_request")
			return nil, fmt.Errorf("%w: %s %s: %s", ErrBadRequest, req.Method, req.Path, string(body))

		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			emit("not_found")
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, req.Method, req.Path)

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			_ = resp.Body.Close()
			e.sessions.Invalidate()
			reauths++
			if reauths > e.maxReauth {
				emit("auth_failure")
				return nil, fmt.Errorf("%w: upstream kept rejecting the session after %d re-authentications", ErrAuthFailure, e.maxReauth)
			}
			metrics.UpstreamRetriesTotal.WithLabelValues(req.Path, "reauth").Inc()
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			hint := retryAfterHint(resp)
			_ = resp.Body.Close()
			retries++
			if retries > e.maxRetry {
				emit("rate_limited")
				return nil, fmt.Errorf("%w: rate limit persisted through %d retries", ErrUpstreamUnavailable, e.maxRetry)
			}
			metrics.UpstreamRetriesTotal.WithLabelValues(req.Path, "rate_limited").Inc()
			if err := e.sleepBackoff(ctx, retries-1, hint); err != nil {
				emit("canceled")
				return nil, err
			}
			continue

		case resp.StatusCode >= http.StatusInternalServerError:
			_ = resp.Body.Close()
			retries++
			if retries > e.maxRetry {
				emit("upstream_unavailable")
				return nil, fmt.Errorf("%w: status %d persisted through %d retries", ErrUpstreamUnavailable, resp.StatusCode, e.maxRetry)
			}
			metrics.UpstreamRetriesTotal.WithLabelValues(req.Path, "server_error").Inc()
			if err := e.sleepBackoff(ctx, retries-1, 0); err != nil {
				emit("canceled")
				return nil, err
			}
			continue

		default:
			body := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			emit("bad_request")
			return nil, fmt.Errorf("%w: unexpected status %d for %s %s: %s", ErrBadRequest, resp.StatusCode, req.Method, req.Path, string(body))
		}
	}
}

func (e *Executor) buildRequest(ctx context.Context, req Request, sessionToken string) (*http.Request, error) {
	reqURL := e.baseURL + req.Path
	if len(req.Query) > 0 {
		reqURL += "?" + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("App-Token", e.appToken)
	httpReq.Header.Set("Session-Token", sessionToken)
	httpReq.Header.Set("Accept", "application/json")
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	return httpReq, nil
}

// sleepBackoff waits before the next attempt. A positive hint (from
// Retry-After) is honored exactly; otherwise the delay grows
// exponentially with the attempt count plus random jitter so
// concurrent retriers do not stampede in lockstep.
func (e *Executor) sleepBackoff(ctx context.Context, attempt int, hint time.Duration) error {
	delay := hint
	if delay <= 0 {
		delay = e.baseDelay*time.Duration(1<<uint(attempt)) +
			time.Duration(rand.Int63n(int64(e.jitterMax)))
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfterHint parses the Retry-After response header (RFC 6585),
// seconds form only.
func retryAfterHint(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// readBodyForError reads at most maxErrorBodySize of the response body
// for error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(bytes.TrimRight(body, "\n"), []byte("\n... (truncated)")...)
	}
	return body
}

// defaultObserver feeds outcome events into the Prometheus collectors
// and the structured log.
type defaultObserver struct{}

func (defaultObserver) ObserveRequest(ev RequestEvent) {
	metrics.RecordUpstreamRequest(ev.Method, ev.Endpoint, ev.Status, ev.Duration)

	event := logging.Debug()
	if ev.Kind != "success" {
		event = logging.Warn()
	}
	event.
		Str("kind", ev.Kind).
		Str("method", ev.Method).
		Str("endpoint", ev.Endpoint).
		Int("status", ev.Status).
		Dur("duration", ev.Duration).
		Int("retries", ev.RetryCount).
		Str("correlation_id", ev.CorrelationID).
		Msg("glpi request")
}
