// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package source implements Herald's source adapters: one per monitored
// upstream, each composing a source-specific fetch+parse strategy with the
// shared dedup/filter/dispatch pipeline in pipeline.go.
//
// Adapter contract:
//   - A Poll that cannot reach its upstream logs and returns nil work done;
//     it never mutates the seen cache on a failed fetch.
//   - A malformed single item is skipped; the batch continues.
//   - A missing container (no items node at all) aborts the cycle.
//   - Errors never escape to the scheduler as panics.
package source

import (
	"context"
	"time"

	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/notify"
	"github.com/tomtom215/herald/internal/store"
)

// Source is one pollable upstream.
type Source interface {
	// Name is the stable identifier used for storage keys, metrics, and
	// the operator API.
	Name() string

	// Poll runs one fetch-parse-dedup-dispatch cycle.
	Poll(ctx context.Context) error
}

// Item is a parsed candidate from one upstream, normalized for the
// pipeline. ID is the cache identifier: the canonical URL unless the
// source has something more specific (chat message ids, permalinks).
type Item struct {
	ID          string
	Title       string
	Description string
	URL         string
	Image       string
	Published   time.Time
	Footer      string
	Color       int
}

// Payload converts the item to a notification payload.
func (i Item) Payload() notify.Payload {
	return notify.Payload{
		Title:       i.Title,
		Description: i.Description,
		URL:         i.URL,
		Image:       i.Image,
		Footer:      i.Footer,
		Timestamp:   i.Published,
		Color:       i.Color,
	}
}

// Deps bundles the collaborators every adapter needs.
type Deps struct {
	Fetch    *fetch.Client
	Store    *store.Store
	Dispatch notify.Dispatcher

	// Operator receives out-of-band reports (unparseable titles) meant
	// for a human, not the notification channel.
	Operator notify.Dispatcher
}

// exceptionsList is the storage list name for a source's filter list.
func exceptionsList(source string) string {
	return source + "_exceptions"
}
