// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package notify defines the notification contract between source adapters
// and the delivery channel, plus the webhook implementation Herald ships
// with. Adapters build a Payload and hand it to a Dispatcher; everything
// about rendering and delivery stays behind that interface.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/herald/internal/fetch"
)

// DefaultDescriptionLimit is the platform description cap applied when the
// configuration does not override it.
const DefaultDescriptionLimit = 4096

// Payload is a normalized notification.
type Payload struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Image       string    `json:"image,omitempty"`
	Footer      string    `json:"footer,omitempty"`
	FooterIcon  string    `json:"footer_icon,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
	Color       int       `json:"color,omitempty"`
}

// Dispatcher delivers payloads to a channel. Implementations must be safe
// for concurrent use.
type Dispatcher interface {
	Send(ctx context.Context, p Payload) error
}

// ClampDescription truncates a description to limit runes, appending an
// ellipsis when truncation happened.
func ClampDescription(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultDescriptionLimit
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit > 3 {
		return string(runes[:limit-3]) + "..."
	}
	return string(runes[:limit])
}

// Webhook posts payloads as JSON to a configured endpoint.
type Webhook struct {
	url    string
	limit  int
	client *fetch.Client
}

// NewWebhook creates a webhook dispatcher. The description limit clamps
// payload descriptions before delivery.
func NewWebhook(url string, descriptionLimit int, client *fetch.Client) *Webhook {
	if descriptionLimit <= 0 {
		descriptionLimit = DefaultDescriptionLimit
	}
	return &Webhook{url: url, limit: descriptionLimit, client: client}
}

// Send delivers the payload. A configured-but-empty URL is a no-op so a
// partially configured instance can still poll and maintain caches.
func (w *Webhook) Send(ctx context.Context, p Payload) error {
	if w.url == "" {
		return nil
	}

	p.Description = ClampDescription(p.Description, w.limit)
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	res := w.client.Do(ctx, fetch.Request{
		URL:    w.url,
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   body,
	})
	if !res.OK() {
		return fmt.Errorf("webhook delivery failed: %w", res.Err)
	}
	return nil
}

// Recorder captures payloads for tests.
type Recorder struct {
	Payloads []Payload

	// FailWith, when set, is returned by Send without recording.
	FailWith error
}

// Send records the payload.
func (r *Recorder) Send(_ context.Context, p Payload) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	r.Payloads = append(r.Payloads, p)
	return nil
}
