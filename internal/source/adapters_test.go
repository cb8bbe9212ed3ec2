// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/notify"
	"github.com/tomtom215/herald/internal/store"
)

func testDeps(t *testing.T) (Deps, *notify.Recorder, *notify.Recorder) {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rec := &notify.Recorder{}
	op := &notify.Recorder{}
	return Deps{
		Fetch:    fetch.New(fetch.Options{RatePerSecond: 1000}),
		Store:    st,
		Dispatch: rec,
		Operator: op,
	}, rec, op
}

const alienwareListing = `{"data": [
	{"id": 3, "title": "Game Three Giveaway", "url": "https://example.com/g/3"},
	{"id": 2, "title": "Game Two Giveaway", "url": "https://example.com/g/2"},
	{"id": 1, "title": "Game One Giveaway", "url": "https://example.com/g/1"}
]}`

func TestAlienwarePollDeduplicatesAcrossCycles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(alienwareListing))
	}))
	defer srv.Close()

	deps, rec, _ := testDeps(t)
	src := NewAlienware(config.SourceConfig{
		Enabled: true, URL: srv.URL, CacheSize: 10, MaxItems: 10,
	}, deps)

	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("first Poll() error = %v", err)
	}
	if len(rec.Payloads) != 3 {
		t.Fatalf("first poll sent %d notifications, want 3", len(rec.Payloads))
	}

	// Same listing again: everything is cached, nothing is re-sent.
	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("second Poll() error = %v", err)
	}
	if len(rec.Payloads) != 3 {
		t.Errorf("second poll sent %d extra notifications, want 0", len(rec.Payloads)-3)
	}
}

func TestAlienwarePollFetchFailureLeavesCacheUntouched(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		if hits > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(alienwareListing))
	}))
	defer srv.Close()

	deps, rec, _ := testDeps(t)
	src := NewAlienware(config.SourceConfig{
		Enabled: true, URL: srv.URL, CacheSize: 10, MaxItems: 10,
	}, deps)

	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("first Poll() error = %v", err)
	}

	// Outage cycle: no error surfaced, no dispatches, and the cache
	// still holds the first cycle's entries.
	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("outage Poll() error = %v", err)
	}
	if len(rec.Payloads) != 3 {
		t.Errorf("outage poll changed notification count to %d", len(rec.Payloads))
	}

	ring, err := deps.Store.LoadCache("alienware", 10)
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if !ring.Contains("https://example.com/g/3") {
		t.Error("cache lost entries after a failed fetch")
	}
}

func TestFanaticalSkipsNonFreeProducts(t *testing.T) {
	listing := `{"freeProducts": [
		{"name": "Actually Free", "slug": "actually-free", "price": {"USD": 0}},
		{"name": "Just Discounted", "slug": "just-discounted", "price": {"USD": 1.99}}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(listing))
	}))
	defer srv.Close()

	deps, rec, _ := testDeps(t)
	src := NewFanatical(config.SourceConfig{
		Enabled: true, URL: srv.URL, CacheSize: 10, MaxItems: 10,
	}, deps)

	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(rec.Payloads) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(rec.Payloads))
	}
	if rec.Payloads[0].Title != "Actually Free" {
		t.Errorf("notified %q, want %q", rec.Payloads[0].Title, "Actually Free")
	}
}

func TestFeedKeywordRelevance(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Status</title>
<item><title>Login service degraded</title><link>https://example.com/p/2</link>
<description>Investigating elevated errors</description></item>
<item><title>Weekly roundup</title><link>https://example.com/p/1</link>
<description>Nothing of note</description></item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(rss))
	}))
	defer srv.Close()

	deps, rec, _ := testDeps(t)
	src := NewFeed("outagefeed", config.FeedSourceConfig{
		Enabled: true, URL: srv.URL, CacheSize: 10, MaxItems: 10,
		Keywords: []string{"degraded", "outage"},
	}, deps, "Status", 0xCC0000)

	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(rec.Payloads) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(rec.Payloads))
	}
	if !strings.Contains(rec.Payloads[0].Title, "degraded") {
		t.Errorf("notified %q, want the degraded-service entry", rec.Payloads[0].Title)
	}
}

func TestRedditEligibility(t *testing.T) {
	freegames := NewFreeGames("freegames", config.RedditSourceConfig{Subreddit: "FreeGameFindings"}, Deps{})
	tagged := NewTaggedPosts("crackwatch", config.RedditSourceConfig{Subreddit: "CrackWatch", TagMarker: "[release]"}, Deps{})

	base := redditPost{Title: "Game is free", Permalink: "/r/x/1", URL: "https://store.example.com/g", Domain: "store.example.com"}

	cases := []struct {
		name string
		src  *Reddit
		mut  func(p redditPost) redditPost
		want bool
	}{
		{"plain external link", freegames, func(p redditPost) redditPost { return p }, true},
		{"stickied", freegames, func(p redditPost) redditPost { p.Stickied = true; return p }, false},
		{"locked", freegames, func(p redditPost) redditPost { p.Locked = true; return p }, false},
		{"nsfw blocked by default", freegames, func(p redditPost) redditPost { p.Over18 = true; return p }, false},
		{"poll", freegames, func(p redditPost) redditPost { p.PollData = map[string]any{}; return p }, false},
		{"self post", freegames, func(p redditPost) redditPost { p.IsSelf = true; return p }, false},
		{"reddit crosspost", freegames, func(p redditPost) redditPost { p.Domain = "self.reddit.com"; return p }, false},
		{"tagged without marker", tagged, func(p redditPost) redditPost { return p }, false},
		{"tagged with marker", tagged, func(p redditPost) redditPost { p.Title = "[RELEASE] Game v1.0"; return p }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.src.eligible(tc.mut(base)); got != tc.want {
				t.Errorf("eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRedditDomainTemplates(t *testing.T) {
	cases := []struct {
		domain string
		footer string
	}{
		{"store.steampowered.com", "Steam"},
		{"www.gog.com", "GOG"},
		{"freegame.itch.io", "itch.io"},
		{"unknown-store.example", "Free game"},
	}
	for _, tc := range cases {
		if got := templateFor(tc.domain); got.Footer != tc.footer {
			t.Errorf("templateFor(%q).Footer = %q, want %q", tc.domain, got.Footer, tc.footer)
		}
	}
}

func TestGameUpdatesTrackedAllowList(t *testing.T) {
	page := `<html><body>
<article><h2><a href="https://example.com/r/3">Download TrackedGame v2.0.1-GOG</a></h2></article>
<article><h2><a href="https://example.com/r/2">OtherGame Build 12</a></h2></article>
<article><h2><a href="https://example.com/r/1">Mystery Bundle Pack</a></h2></article>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	deps, rec, op := testDeps(t)
	if err := deps.Store.SaveList(trackedGamesList, []string{"trackedgame"}); err != nil {
		t.Fatalf("SaveList() error = %v", err)
	}

	src := NewGameUpdates(config.GameUpdatesSourceConfig{
		Enabled: true, URL: srv.URL, CacheSize: 10, MaxItems: 10,
		StripTokens: []string{"Download", "-GOG"},
	}, deps)

	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	// Only the tracked game notifies; the untracked parseable title is
	// passed over silently; the unparseable one goes to the operator.
	if len(rec.Payloads) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(rec.Payloads))
	}
	if want := "TrackedGame v2.0.1"; rec.Payloads[0].Title != want {
		t.Errorf("title = %q, want %q", rec.Payloads[0].Title, want)
	}
	if len(op.Payloads) != 1 {
		t.Fatalf("operator got %d reports, want 1", len(op.Payloads))
	}

	// A second cycle repeats neither the notification nor the report.
	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("second Poll() error = %v", err)
	}
	if len(rec.Payloads) != 1 || len(op.Payloads) != 1 {
		t.Errorf("second poll re-sent: notifications=%d reports=%d", len(rec.Payloads), len(op.Payloads))
	}
}

func TestGameUpdatesEmptyTrackedListNotifiesNothing(t *testing.T) {
	page := `<html><body>
<article><h2><a href="https://example.com/r/4">SomeGame Build 3</a></h2></article>
<article><h2><a href="https://example.com/r/5">OtherGame v1.1</a></h2></article>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	deps, rec, _ := testDeps(t)
	src := NewGameUpdates(config.GameUpdatesSourceConfig{
		Enabled: true, URL: srv.URL, CacheSize: 10, MaxItems: 10,
	}, deps)

	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(rec.Payloads) != 0 {
		t.Errorf("sent %d notifications with no tracked games, want 0", len(rec.Payloads))
	}
}

func TestChatLogMarkerAndIncrementalPersistence(t *testing.T) {
	page := `<html><body><ul>
<li id="m1">chat about weather</li>
<li id="m2">[bot] release one posted</li>
<li id="m3">[bot] release two posted</li>
</ul></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	deps, rec, _ := testDeps(t)
	src := NewChatLog(config.ChatLogSourceConfig{
		Enabled: true, URL: srv.URL, CacheSize: 10,
		Marker: "[bot]", MessageLimit: 5,
	}, deps)

	if err := src.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(rec.Payloads) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(rec.Payloads))
	}

	// Both message ids persisted even though the pass owns persistence.
	ring, err := deps.Store.LoadCache("chatlog", 10)
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if !ring.Contains("m2") || !ring.Contains("m3") {
		t.Errorf("cache = %v, want m2 and m3", ring.Items())
	}
	if ring.Contains("m1") {
		t.Error("unmarked message must not be cached")
	}
}
