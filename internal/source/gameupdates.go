// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/notify"
)

const (
	gameUpdatesColor = 0x4CAF50

	// trackedGamesList is the storage list of game names the operator
	// wants release notifications for.
	trackedGamesList = "tracked_games"

	// reportedTitlesCache remembers titles already reported as
	// unparseable so the operator is pinged once, not every cycle.
	reportedTitlesCache = "gameupdates_reports"
	reportedTitlesSize  = 50
)

// GameUpdates polls an HTML release listing for new versions of tracked
// games. Titles that parse but name an untracked game are passed over
// without entering the seen cache, so an empty tracked list notifies
// nothing; titles that do not parse at all are reported to the operator
// once.
type GameUpdates struct {
	cfg  config.GameUpdatesSourceConfig
	deps Deps
}

func NewGameUpdates(cfg config.GameUpdatesSourceConfig, deps Deps) *GameUpdates {
	return &GameUpdates{cfg: cfg, deps: deps}
}

func (g *GameUpdates) Name() string { return "gameupdates" }

func (g *GameUpdates) Poll(ctx context.Context) error {
	log := logging.With().Str("source", g.Name()).Logger()

	res := g.deps.Fetch.Do(ctx, fetch.Request{URL: g.cfg.URL, Retries: 2})
	if !res.OK() {
		log.Warn().Err(res.Err).Int("status", res.Status).Msg("listing unavailable")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return fmt.Errorf("gameupdates: parse listing: %w", err)
	}
	articles := doc.Find("article")
	if articles.Length() == 0 {
		return fmt.Errorf("gameupdates: listing has no articles")
	}

	tracked, err := g.deps.Store.LoadList(trackedGamesList)
	if err != nil {
		return fmt.Errorf("gameupdates: load tracked games: %w", err)
	}
	trackedFilter := NewFilter(tracked)

	reported, err := g.deps.Store.LoadCache(reportedTitlesCache, reportedTitlesSize)
	if err != nil {
		return fmt.Errorf("gameupdates: load report cache: %w", err)
	}
	reportedDirty := false

	items := make([]Item, 0, g.cfg.MaxItems)
	articles.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("h2 a").First()
		raw := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if raw == "" || href == "" {
			metrics.ItemsSkipped.WithLabelValues(g.Name(), "malformed").Inc()
			return true
		}

		release, ok := ParseTitle(raw, g.cfg.StripTokens)
		if !ok {
			metrics.ItemsSkipped.WithLabelValues(g.Name(), "unparseable").Inc()
			if !reported.Contains(raw) {
				g.report(ctx, raw, href)
				reported.Advance(raw)
				reportedDirty = true
			}
			return true
		}
		if !trackedFilter.Blocks(release.Name) {
			metrics.ItemsSkipped.WithLabelValues(g.Name(), "untracked").Inc()
			return true
		}

		item := Item{
			ID:          href,
			Title:       release.Name + " " + release.Marker,
			Description: fmt.Sprintf("%s updated to %s", release.Name, release.Marker),
			URL:         href,
			Footer:      "Game Updates",
			Color:       gameUpdatesColor,
		}
		if src, ok := sel.Find("img").First().Attr("src"); ok {
			item.Image = src
		}
		items = append(items, item)
		return len(items) < g.cfg.MaxItems
	})

	if reportedDirty {
		if err := g.deps.Store.SaveCache(reportedTitlesCache, reported); err != nil {
			return fmt.Errorf("gameupdates: save report cache: %w", err)
		}
	}

	return g.deps.run(ctx, g.Name(), g.cfg.CacheSize, items, PassOptions{})
}

// report pings the operator about a title the extractor cannot handle.
func (g *GameUpdates) report(ctx context.Context, raw, href string) {
	err := g.deps.Operator.Send(ctx, notify.Payload{
		Title:       "Unparseable release title",
		Description: raw,
		URL:         href,
		Footer:      "gameupdates",
	})
	if err != nil {
		logging.Warn().Err(err).Str("title", raw).Msg("operator report failed")
	}
}
