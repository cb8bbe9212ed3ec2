// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/notify"
)

// Feed polls an RSS or Atom feed. When keywords are configured, an entry
// is relevant only if at least one keyword appears in its title or body;
// irrelevant entries are skipped without entering the seen cache.
type Feed struct {
	name   string
	cfg    config.FeedSourceConfig
	deps   Deps
	footer string
	color  int

	parser *gofeed.Parser
}

func NewFeed(name string, cfg config.FeedSourceConfig, deps Deps, footer string, color int) *Feed {
	return &Feed{
		name:   name,
		cfg:    cfg,
		deps:   deps,
		footer: footer,
		color:  color,
		parser: gofeed.NewParser(),
	}
}

func (f *Feed) Name() string { return f.name }

func (f *Feed) Poll(ctx context.Context) error {
	log := logging.With().Str("source", f.name).Logger()

	res := f.deps.Fetch.Do(ctx, fetch.Request{URL: f.cfg.URL, Retries: 2})
	if !res.OK() {
		log.Warn().Err(res.Err).Int("status", res.Status).Msg("feed unavailable")
		return nil
	}

	feed, err := f.parser.ParseString(string(res.Body))
	if err != nil {
		return fmt.Errorf("%s: parse feed: %w", f.name, err)
	}

	keywords := NewFilter(f.cfg.Keywords)
	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" || entry.Title == "" {
			continue
		}
		if len(keywords) > 0 && !f.relevant(keywords, entry) {
			metrics.ItemsSkipped.WithLabelValues(f.name, "irrelevant").Inc()
			continue
		}
		item := Item{
			ID:          entry.Link,
			Title:       entry.Title,
			Description: notify.ClampDescription(stripHTML(entryBody(entry)), notify.DefaultDescriptionLimit),
			URL:         entry.Link,
			Footer:      f.footer,
			Color:       f.color,
		}
		if entry.PublishedParsed != nil {
			item.Published = *entry.PublishedParsed
		} else {
			item.Published = time.Now().UTC()
		}
		if entry.Image != nil {
			item.Image = entry.Image.URL
		}
		items = append(items, item)
		if len(items) >= f.cfg.MaxItems {
			break
		}
	}

	return f.deps.run(ctx, f.name, f.cfg.CacheSize, items, PassOptions{})
}

// relevant matches keywords against title and body. The Filter blocklist
// type doubles as an allow-list matcher here.
func (f *Feed) relevant(keywords Filter, entry *gofeed.Item) bool {
	return keywords.Blocks(entry.Title) || keywords.Blocks(entryBody(entry))
}

func entryBody(entry *gofeed.Item) string {
	if entry.Content != "" {
		return entry.Content
	}
	return entry.Description
}

// stripHTML reduces feed body markup to plain text. Tags become spaces so
// adjacent blocks do not run together.
func stripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return collapseSpaces(html.UnescapeString(b.String()))
}
