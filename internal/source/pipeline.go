// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/herald/internal/cache"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
)

// Filter is a case-insensitive substring blocklist applied to item titles.
type Filter []string

// NewFilter lowercases the terms once so Blocks stays allocation-free.
func NewFilter(terms []string) Filter {
	f := make(Filter, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			f = append(f, t)
		}
	}
	return f
}

// Blocks reports whether any filter term appears in text.
func (f Filter) Blocks(text string) bool {
	if len(f) == 0 {
		return false
	}
	text = strings.ToLower(text)
	for _, t := range f {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// PassOptions configures one pipeline pass.
type PassOptions struct {
	// Source names the adapter for metrics and logs.
	Source string

	// Filter blocks items by title. Filtered items are skipped and the
	// pass continues to older items; they do not enter the cache.
	Filter Filter

	// Dispatch sends one item. A dispatch failure stops the pass before
	// the item is cached, so it is retried next cycle.
	Dispatch func(ctx context.Context, item Item) error

	// Persist, when set, is called after every cache advance. Sources
	// that cannot afford to lose progress mid-batch (chat logs) persist
	// incrementally; the rest persist once after the pass.
	Persist func(ring *cache.Ring) error
}

// run wraps Pass with the storage choreography shared by most adapters:
// load the seen cache and the filter list, run the pass, save the cache
// even when the pass stopped on a dispatch error.
func (d Deps) run(ctx context.Context, name string, cacheSize int, items []Item, opts PassOptions) error {
	ring, err := d.Store.LoadCache(name, cacheSize)
	if err != nil {
		return fmt.Errorf("%s: load cache: %w", name, err)
	}
	exceptions, err := d.Store.LoadList(exceptionsList(name))
	if err != nil {
		return fmt.Errorf("%s: load exceptions: %w", name, err)
	}

	opts.Source = name
	if opts.Filter == nil {
		opts.Filter = NewFilter(exceptions)
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(ctx context.Context, item Item) error {
			return d.Dispatch.Send(ctx, item.Payload())
		}
	}

	_, perr := Pass(ctx, items, ring, opts)
	if opts.Persist == nil {
		if serr := d.Store.SaveCache(name, ring); serr != nil {
			return fmt.Errorf("%s: save cache: %w", name, serr)
		}
	}
	return perr
}

// Pass walks items newest-first against the seen cache. The walk stops at
// the first cached ID: everything older was already handled in a previous
// cycle. New unfiltered items are dispatched, then advanced into the
// cache, oldest of the new batch evicting first.
//
// Returns the number of notifications sent. The caller persists the ring
// afterwards unless opts.Persist already did.
func Pass(ctx context.Context, items []Item, ring *cache.Ring, opts PassOptions) (int, error) {
	log := logging.With().Str("source", opts.Source).Logger()

	// Collect the new window newest-first, then dispatch oldest-first so
	// notifications arrive in publication order.
	fresh := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			metrics.ItemsSkipped.WithLabelValues(opts.Source, "no_id").Inc()
			continue
		}
		if ring.Contains(item.ID) {
			break
		}
		if opts.Filter.Blocks(item.Title) {
			log.Debug().Str("title", item.Title).Msg("item filtered")
			metrics.ItemsSkipped.WithLabelValues(opts.Source, "filtered").Inc()
			continue
		}
		fresh = append(fresh, item)
	}

	sent := 0
	for i := len(fresh) - 1; i >= 0; i-- {
		item := fresh[i]
		if err := opts.Dispatch(ctx, item); err != nil {
			return sent, err
		}
		sent++
		metrics.NotificationsSent.WithLabelValues(opts.Source).Inc()
		log.Info().Str("id", item.ID).Str("title", item.Title).Msg("notification sent")

		ring.Advance(item.ID)
		if opts.Persist != nil {
			if err := opts.Persist(ring); err != nil {
				return sent, err
			}
		}
	}
	return sent, nil
}
