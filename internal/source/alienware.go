// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"context"
	"fmt"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
)

const alienwareColor = 0x0A1E2C

// Alienware polls the Alienware Arena giveaway listing.
type Alienware struct {
	cfg  config.SourceConfig
	deps Deps
}

func NewAlienware(cfg config.SourceConfig, deps Deps) *Alienware {
	return &Alienware{cfg: cfg, deps: deps}
}

func (a *Alienware) Name() string { return "alienware" }

type alienwareTile struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Image string `json:"image_url"`
	State string `json:"state"`
}

func (a *Alienware) Poll(ctx context.Context) error {
	log := logging.With().Str("source", a.Name()).Logger()

	res := a.deps.Fetch.Do(ctx, fetch.Request{URL: a.cfg.URL, Retries: 2})
	if !res.OK() {
		log.Warn().Err(res.Err).Int("status", res.Status).Msg("listing unavailable")
		return nil
	}

	var listing struct {
		Data []alienwareTile `json:"data"`
	}
	if err := res.JSON(&listing); err != nil {
		return fmt.Errorf("alienware: decode listing: %w", err)
	}
	if listing.Data == nil {
		return fmt.Errorf("alienware: listing has no data array")
	}

	items := make([]Item, 0, len(listing.Data))
	for _, t := range listing.Data {
		if t.Title == "" || t.URL == "" {
			continue
		}
		items = append(items, Item{
			ID:     t.URL,
			Title:  t.Title,
			URL:    t.URL,
			Image:  t.Image,
			Footer: "Alienware Arena",
			Color:  alienwareColor,
		})
		if len(items) >= a.cfg.MaxItems {
			break
		}
	}

	return a.deps.run(ctx, a.Name(), a.cfg.CacheSize, items, PassOptions{})
}
