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
	"github.com/tomtom215/herald/internal/metrics"
)

const (
	fanaticalColor    = 0xFF9800
	fanaticalGameURL  = "https://www.fanatical.com/en/game/%s"
	fanaticalCoverURL = "https://fanatical.imgix.net/product/original/%s"
)

// Fanatical polls the Fanatical promotions endpoint for free products.
type Fanatical struct {
	cfg  config.SourceConfig
	deps Deps
}

func NewFanatical(cfg config.SourceConfig, deps Deps) *Fanatical {
	return &Fanatical{cfg: cfg, deps: deps}
}

func (f *Fanatical) Name() string { return "fanatical" }

type fanaticalPromo struct {
	FreeProducts []struct {
		Name  string `json:"name"`
		Slug  string `json:"slug"`
		Cover string `json:"cover"`
		Price struct {
			USD float64 `json:"USD"`
		} `json:"price"`
	} `json:"freeProducts"`
}

func (f *Fanatical) Poll(ctx context.Context) error {
	log := logging.With().Str("source", f.Name()).Logger()

	res := f.deps.Fetch.Do(ctx, fetch.Request{URL: f.cfg.URL, Retries: 2})
	if !res.OK() {
		log.Warn().Err(res.Err).Int("status", res.Status).Msg("promotions unavailable")
		return nil
	}

	var promo fanaticalPromo
	if err := res.JSON(&promo); err != nil {
		return fmt.Errorf("fanatical: decode promotions: %w", err)
	}

	items := make([]Item, 0, len(promo.FreeProducts))
	for _, p := range promo.FreeProducts {
		if p.Name == "" || p.Slug == "" {
			continue
		}
		// The listing mixes genuinely free products with discounted
		// ones; only a zero price qualifies.
		if p.Price.USD != 0 {
			metrics.ItemsSkipped.WithLabelValues(f.Name(), "not_free").Inc()
			continue
		}
		url := fmt.Sprintf(fanaticalGameURL, p.Slug)
		item := Item{
			ID:     url,
			Title:  p.Name,
			URL:    url,
			Footer: "Fanatical",
			Color:  fanaticalColor,
		}
		if p.Cover != "" {
			item.Image = fmt.Sprintf(fanaticalCoverURL, p.Cover)
		}
		items = append(items, item)
		if len(items) >= f.cfg.MaxItems {
			break
		}
	}

	return f.deps.run(ctx, f.Name(), f.cfg.CacheSize, items, PassOptions{})
}
