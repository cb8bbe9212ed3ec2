// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"

	"github.com/tomtom215/herald/internal/cache"
	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
)

const chatLogColor = 0x9C27B0

var chatVersionRe = regexp.MustCompile(`(?i)\bv\d+(\.\d+)+\b`)

// ChatLog polls an HTML chat log for messages carrying the configured
// marker. The message id attribute is the cache key, so edits to a
// message body do not re-trigger a notification. Because a burst can
// exceed one cycle's processing cap, the cache is persisted after every
// message instead of once per pass.
type ChatLog struct {
	cfg  config.ChatLogSourceConfig
	deps Deps
}

func NewChatLog(cfg config.ChatLogSourceConfig, deps Deps) *ChatLog {
	return &ChatLog{cfg: cfg, deps: deps}
}

func (c *ChatLog) Name() string { return "chatlog" }

type chatMessage struct {
	id   string
	text string
	link string
}

func (c *ChatLog) Poll(ctx context.Context) error {
	log := logging.With().Str("source", c.Name()).Logger()

	res := c.deps.Fetch.Do(ctx, fetch.Request{URL: c.cfg.URL, Retries: 2})
	if !res.OK() {
		log.Warn().Err(res.Err).Int("status", res.Status).Msg("chat log unavailable")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return fmt.Errorf("chatlog: parse log: %w", err)
	}
	nodes := doc.Find("li[id]")
	if nodes.Length() == 0 {
		return fmt.Errorf("chatlog: log has no messages")
	}

	marker := strings.ToLower(c.cfg.Marker)
	var msgs []chatMessage
	nodes.Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		text := strings.TrimSpace(sel.Text())
		if id == "" || text == "" {
			metrics.ItemsSkipped.WithLabelValues(c.Name(), "malformed").Inc()
			return
		}
		if marker != "" && !strings.Contains(strings.ToLower(text), marker) {
			return
		}
		msg := chatMessage{id: id, text: text}
		if href, ok := sel.Find("a[href]").First().Attr("href"); ok {
			msg.link = href
		}
		msgs = append(msgs, msg)
	})

	// The log lists oldest first; the pipeline wants newest first. Cap
	// at the per-cycle limit so a burst cannot starve the other sources.
	items := make([]Item, 0, c.cfg.MessageLimit)
	for i := len(msgs) - 1; i >= 0 && len(items) < c.cfg.MessageLimit; i-- {
		m := msgs[i]
		items = append(items, Item{
			ID:          m.id,
			Title:       firstLine(m.text),
			Description: m.text,
			URL:         m.link,
			Footer:      "Chat log",
			Color:       chatLogColor,
		})
	}

	ring, err := c.deps.Store.LoadCache(c.Name(), c.cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("chatlog: load cache: %w", err)
	}
	exceptions, err := c.deps.Store.LoadList(exceptionsList(c.Name()))
	if err != nil {
		return fmt.Errorf("chatlog: load exceptions: %w", err)
	}

	_, perr := Pass(ctx, items, ring, PassOptions{
		Source:   c.Name(),
		Filter:   NewFilter(exceptions),
		Dispatch: c.dispatch,
		Persist: func(r *cache.Ring) error {
			return c.deps.Store.SaveCache(c.Name(), r)
		},
	})
	return perr
}

// dispatch enriches one message from its detail page, then sends it.
// Enrichment and translation are best-effort: the raw message text is
// always a valid fallback.
func (c *ChatLog) dispatch(ctx context.Context, item Item) error {
	if item.URL != "" {
		if detail := c.fetchDetail(ctx, item.URL); detail != "" {
			item.Description = detail
		}
	}
	item.Description = c.translate(ctx, item.Description)
	if m := chatVersionRe.FindString(item.Description); m != "" {
		item.Footer = "Chat log · " + strings.ToLower(m[:1]) + m[1:]
	}
	return c.deps.Dispatch.Send(ctx, item.Payload())
}

// fetchDetail pulls the linked page and extracts its leading paragraph.
func (c *ChatLog) fetchDetail(ctx context.Context, url string) string {
	res := c.deps.Fetch.Do(ctx, fetch.Request{URL: url, Retries: 1})
	if !res.OK() {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return ""
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	return strings.TrimSpace(doc.Find("p").First().Text())
}

// translate sends text through the configured translation endpoint.
// Any failure degrades to the untranslated text.
func (c *ChatLog) translate(ctx context.Context, text string) string {
	if c.cfg.TranslateURL == "" || text == "" {
		return text
	}
	body, err := json.Marshal(map[string]string{
		"q":      text,
		"source": "auto",
		"target": "en",
		"format": "text",
	})
	if err != nil {
		return text
	}
	res := c.deps.Fetch.Do(ctx, fetch.Request{
		URL:    c.cfg.TranslateURL,
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   body,
	})
	if !res.OK() {
		logging.Debug().Err(res.Err).Msg("translation unavailable, using original text")
		return text
	}
	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := res.JSON(&out); err != nil || out.TranslatedText == "" {
		return text
	}
	return out.TranslatedText
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return collapseSpaces(s)
}
