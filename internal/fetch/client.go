// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package fetch provides the one retrying HTTP request helper every source
// adapter uses. Transport failures, timeouts, bad status codes, and
// malformed JSON all collapse into an explicit "source unavailable" result
// rather than an error type zoo: callers branch on Result, never on
// exception classes.
//
// A per-host circuit breaker short-circuits hosts that keep failing, and a
// shared rate limiter caps the outbound request rate across all adapters.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
)

// ErrUnavailable marks a source that could not be fetched this cycle.
// Callers treat it as "no data", never as a fault to escalate.
var ErrUnavailable = errors.New("fetch: source unavailable")

// maxBodySize bounds response reads. Upstream sources are small pages and
// API listings; anything larger is broken.
const maxBodySize = 4 << 20 // 4MB

// maxErrorBodySize limits how much of an error response is kept for
// diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// Request describes one outbound fetch.
type Request struct {
	URL    string
	Method string // default GET
	Query  url.Values
	Header http.Header
	Body   []byte

	// Retries overrides the client default when positive.
	Retries int

	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// Result is the explicit outcome of a fetch. Exactly one of OK()/Err holds.
type Result struct {
	Status int
	Body   []byte
	Err    error
}

// OK reports whether the fetch succeeded with a 2xx status.
func (r Result) OK() bool {
	return r.Err == nil
}

// JSON decodes the body into v. A decode failure downgrades the result to
// unavailable, matching the policy for transport failures.
func (r Result) JSON(v interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}

// Options configures a Client.
type Options struct {
	// Retries is the default number of immediate retries after a
	// transport failure. Default: 2.
	Retries int

	// Timeout is the default per-request deadline. Default: 10s.
	Timeout time.Duration

	// RatePerSecond caps outbound requests across all callers. Default: 5.
	RatePerSecond float64

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		Retries:       2,
		Timeout:       10 * time.Second,
		RatePerSecond: 5,
		UserAgent:     "herald/1.0 (+https://github.com/tomtom215/herald)",
	}
}

// Client is the shared fetch helper. Safe for concurrent use.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    Options

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[Result]
}

// New creates a fetch client with the given options.
func New(opts Options) *Client {
	if opts.Retries <= 0 {
		opts.Retries = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	return &Client{
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), int(opts.RatePerSecond)+1),
		opts:     opts,
		breakers: make(map[string]*gobreaker.CircuitBreaker[Result]),
	}
}

// Do performs the request, retrying transport failures immediately up to
// the configured retry count. The returned Result carries ErrUnavailable
// after exhausted retries, an open circuit, a non-2xx status, or a body
// read failure.
func (c *Client) Do(ctx context.Context, req Request) Result {
	host := hostOf(req.URL)
	cb := c.breaker(host)

	result, err := cb.Execute(func() (Result, error) {
		res := c.doWithRetries(ctx, req)
		if res.Err != nil {
			return res, res.Err
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.FetchRequests.WithLabelValues(host, "rejected").Inc()
			return Result{Err: fmt.Errorf("%w: circuit open for %s", ErrUnavailable, host)}
		}
		metrics.FetchRequests.WithLabelValues(host, "failure").Inc()
		return result
	}

	metrics.FetchRequests.WithLabelValues(host, "success").Inc()
	return result
}

// doWithRetries runs the attempt loop: immediate retry on transport
// failure, Retry-After-aware backoff on HTTP 429.
func (c *Client) doWithRetries(ctx context.Context, req Request) Result {
	retries := req.Retries
	if retries <= 0 {
		retries = c.opts.Retries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return Result{Err: fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())}
		}
		if attempt > 0 {
			metrics.FetchRetries.Inc()
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
		}

		res, retryAfter, err := c.attempt(ctx, req)
		if err == nil {
			return res
		}
		lastErr = err

		if retryAfter > 0 {
			select {
			case <-time.After(retryAfter):
			case <-ctx.Done():
				return Result{Err: fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())}
			}
		}
	}

	logging.Debug().Err(lastErr).Str("url", req.URL).Msg("Fetch retries exhausted")
	return Result{Err: fmt.Errorf("%w: %v", ErrUnavailable, lastErr)}
}

// attempt performs a single HTTP exchange. The returned duration is a 429
// backoff hint; zero means retry immediately.
func (c *Client) attempt(ctx context.Context, req Request) (Result, time.Duration, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	reqURL := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if u, err := url.Parse(reqURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		reqURL += sep + req.Query.Encode()
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, reqURL, body)
	if err != nil {
		return Result{}, 0, fmt.Errorf("build request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		delay := time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, perr := time.ParseDuration(ra + "s"); perr == nil {
				delay = parsed
			}
		}
		return Result{}, delay, fmt.Errorf("rate limited (HTTP 429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := readBodyForError(resp.Body)
		return Result{}, 0, fmt.Errorf("status %d: %s", resp.StatusCode, string(snippet))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{}, 0, fmt.Errorf("read body: %w", err)
	}
	return Result{Status: resp.StatusCode, Body: data}, 0, nil
}

// breaker returns the circuit breaker for a host, creating it on first use.
// Opens at 60% failures over at least 10 requests in a one-minute window,
// re-probes after two minutes.
func (c *Client) breaker(host string) *gobreaker.CircuitBreaker[Result] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        host,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("host", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Fetch circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})
	c.breakers[host] = cb
	return cb
}

// hostOf extracts the host for breaker/metric labeling.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// readBodyForError reads a bounded snippet of an error response body.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}

// stateToFloat converts circuit breaker state to a metric value.
func stateToFloat(state gobreaker.State) float64 {
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

// stateToString converts circuit breaker state to a label value.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
