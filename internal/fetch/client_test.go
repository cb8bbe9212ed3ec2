// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient() *Client {
	opts := DefaultOptions()
	opts.RatePerSecond = 1000 // no throttling in tests
	opts.Timeout = 2 * time.Second
	return New(opts)
}

func TestDefaultUserAgentSent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c := testClient()
	if res := c.Do(context.Background(), Request{URL: srv.URL}); !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if got.Load() != DefaultOptions().UserAgent {
		t.Errorf("User-Agent = %q, want %q", got.Load(), DefaultOptions().UserAgent)
	}
	if DefaultOptions().UserAgent == "" {
		t.Error("default user agent must not be empty")
	}
}

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"title":"Giveaway"}]}`))
	}))
	defer srv.Close()

	c := testClient()
	res := c.Do(context.Background(), Request{URL: srv.URL})

	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}

	var payload struct {
		Data []struct {
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := res.JSON(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Data) != 1 || payload.Data[0].Title != "Giveaway" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestDoRetriesThenUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient()
	res := c.Do(context.Background(), Request{URL: srv.URL, Retries: 2})

	if res.OK() {
		t.Fatal("expected failure result")
	}
	if !errors.Is(res.Err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", res.Err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", got)
	}
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient()
	res := c.Do(context.Background(), Request{URL: srv.URL, Retries: 2})

	if !res.OK() {
		t.Fatalf("expected recovery on retry, got %v", res.Err)
	}
	if string(res.Body) != "ok" {
		t.Errorf("unexpected body %q", res.Body)
	}
}

func TestJSONDecodeFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := testClient()
	res := c.Do(context.Background(), Request{URL: srv.URL})
	if !res.OK() {
		t.Fatalf("fetch itself should succeed: %v", res.Err)
	}

	var v map[string]interface{}
	err := res.JSON(&v)
	if err == nil {
		t.Fatal("expected decode failure")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("decode failure should map to ErrUnavailable, got %v", err)
	}
}

func TestDoConnectionRefusedIsUnavailable(t *testing.T) {
	c := testClient()

	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	res := c.Do(context.Background(), Request{URL: addr, Retries: 1})
	if res.OK() {
		t.Fatal("expected failure against closed server")
	}
	if !errors.Is(res.Err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", res.Err)
	}
}

func TestQueryParametersAppended(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "25" {
			t.Errorf("missing query parameter, got %q", r.URL.RawQuery)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient()
	req := Request{URL: srv.URL}
	req.Query = map[string][]string{"limit": {"25"}}
	if res := c.Do(context.Background(), req); !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
}
