// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
)

// redditVariant selects the eligibility rules for a subreddit listing.
type redditVariant int

const (
	// variantFreeGames requires an external link and classifies posts by
	// the linked store's domain.
	variantFreeGames redditVariant = iota

	// variantTagged requires a configured marker in the post title.
	variantTagged
)

// Reddit polls a subreddit's new-post listing.
type Reddit struct {
	name    string
	cfg     config.RedditSourceConfig
	deps    Deps
	variant redditVariant
}

// NewFreeGames watches a free-game subreddit: external store links only,
// notification template picked from the link domain.
func NewFreeGames(name string, cfg config.RedditSourceConfig, deps Deps) *Reddit {
	return &Reddit{name: name, cfg: cfg, deps: deps, variant: variantFreeGames}
}

// NewTaggedPosts watches a subreddit for posts carrying the configured
// title marker.
func NewTaggedPosts(name string, cfg config.RedditSourceConfig, deps Deps) *Reddit {
	return &Reddit{name: name, cfg: cfg, deps: deps, variant: variantTagged}
}

func (r *Reddit) Name() string { return r.name }

type redditPost struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Permalink string  `json:"permalink"`
	Domain    string  `json:"domain"`
	Stickied  bool    `json:"stickied"`
	Locked    bool    `json:"locked"`
	Over18    bool    `json:"over_18"`
	IsSelf    bool    `json:"is_self"`
	PollData  any     `json:"poll_data"`
	Thumbnail string  `json:"thumbnail"`
	CreatedAt float64 `json:"created_utc"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// postTemplate styles a notification by the store the post links to.
type postTemplate struct {
	Footer string
	Color  int
}

var domainTemplates = []struct {
	substr string
	tmpl   postTemplate
}{
	{"steampowered.com", postTemplate{"Steam", 0x1B2838}},
	{"epicgames.com", postTemplate{"Epic Games Store", 0x2F2D2E}},
	{"gog.com", postTemplate{"GOG", 0x86328A}},
	{"itch.io", postTemplate{"itch.io", 0xFA5C5C}},
	{"ubisoft.com", postTemplate{"Ubisoft", 0x0070FF}},
	{"indiegala.com", postTemplate{"IndieGala", 0xE8442E}},
}

var defaultTemplate = postTemplate{"Free game", 0x00A8FC}

func templateFor(domain string) postTemplate {
	domain = strings.ToLower(domain)
	for _, d := range domainTemplates {
		if strings.Contains(domain, d.substr) {
			return d.tmpl
		}
	}
	return defaultTemplate
}

func (r *Reddit) Poll(ctx context.Context) error {
	log := logging.With().Str("source", r.name).Logger()

	res := r.deps.Fetch.Do(ctx, fetch.Request{
		URL:     r.cfg.URL,
		Query:   url.Values{"limit": {fmt.Sprint(r.cfg.MaxItems)}},
		Header:  http.Header{"User-Agent": {"herald-bot/1.0"}},
		Retries: 2,
	})
	if !res.OK() {
		log.Warn().Err(res.Err).Int("status", res.Status).Msg("listing unavailable")
		return nil
	}

	var listing redditListing
	if err := res.JSON(&listing); err != nil {
		return fmt.Errorf("%s: decode listing: %w", r.name, err)
	}
	if listing.Data.Children == nil {
		return fmt.Errorf("%s: listing has no children", r.name)
	}

	items := make([]Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if !r.eligible(post) {
			metrics.ItemsSkipped.WithLabelValues(r.name, "ineligible").Inc()
			continue
		}
		permalink := "https://www.reddit.com" + post.Permalink
		item := Item{
			ID:        permalink,
			Title:     post.Title,
			URL:       post.URL,
			Published: time.Unix(int64(post.CreatedAt), 0).UTC(),
		}
		switch r.variant {
		case variantFreeGames:
			tmpl := templateFor(post.Domain)
			item.Footer = tmpl.Footer
			item.Color = tmpl.Color
		case variantTagged:
			item.URL = permalink
			item.Footer = "r/" + r.cfg.Subreddit
			item.Color = defaultTemplate.Color
		}
		if strings.HasPrefix(post.Thumbnail, "http") {
			item.Image = post.Thumbnail
		}
		items = append(items, item)
		if len(items) >= r.cfg.MaxItems {
			break
		}
	}

	return r.deps.run(ctx, r.name, r.cfg.CacheSize, items, PassOptions{})
}

// eligible applies the moderation and variant rules. Ineligible posts are
// skipped without touching the cache, so a later edit (unsticky, unlock)
// still surfaces them.
func (r *Reddit) eligible(post redditPost) bool {
	if post.Title == "" || post.Permalink == "" {
		return false
	}
	if post.Stickied || post.Locked || post.PollData != nil {
		return false
	}
	if post.Over18 && !r.cfg.AllowNSFW {
		return false
	}
	switch r.variant {
	case variantFreeGames:
		// Self posts and crossposts back into reddit carry no store
		// link to give away.
		if post.IsSelf || strings.Contains(strings.ToLower(post.Domain), "reddit") {
			return false
		}
	case variantTagged:
		if r.cfg.TagMarker != "" &&
			!strings.Contains(strings.ToLower(post.Title), strings.ToLower(r.cfg.TagMarker)) {
			return false
		}
	}
	return true
}
