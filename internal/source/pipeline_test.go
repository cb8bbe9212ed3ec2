// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/herald/internal/cache"
)

func newestFirst(idList ...string) []Item {
	items := make([]Item, len(idList))
	for i, id := range idList {
		items[i] = Item{ID: id, Title: "title " + id, URL: "https://example.com/" + id}
	}
	return items
}

func TestPassStopsAtFirstCachedID(t *testing.T) {
	ring := cache.RingFrom(5, []string{"c", "b"})

	var sent []string
	_, err := Pass(context.Background(), newestFirst("e", "d", "b", "a"), ring, PassOptions{
		Source: "test",
		Dispatch: func(_ context.Context, item Item) error {
			sent = append(sent, item.ID)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}

	// "a" is older than the cached boundary "b" and must not be sent
	// even though it is absent from the cache.
	want := []string{"d", "e"}
	if len(sent) != len(want) {
		t.Fatalf("sent = %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
	if !ring.Contains("e") || !ring.Contains("d") {
		t.Error("dispatched items should be cached")
	}
	if ring.Contains("a") {
		t.Error("items below the boundary must not enter the cache")
	}
}

func TestPassFilteredItemsDoNotStopTheWalk(t *testing.T) {
	ring := cache.RingFrom(5, []string{"a"})

	var sent []string
	_, err := Pass(context.Background(), newestFirst("c", "b", "a"), ring, PassOptions{
		Source: "test",
		Filter: NewFilter([]string{"title b"}),
		Dispatch: func(_ context.Context, item Item) error {
			sent = append(sent, item.ID)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}

	if len(sent) != 1 || sent[0] != "c" {
		t.Errorf("sent = %v, want [c]", sent)
	}
	if ring.Contains("b") {
		t.Error("filtered item must not enter the cache")
	}
}

func TestPassRepeatIsIdempotent(t *testing.T) {
	ring := cache.NewRing(5)
	items := newestFirst("b", "a")

	first, err := Pass(context.Background(), items, ring, PassOptions{
		Source:   "test",
		Dispatch: func(context.Context, Item) error { return nil },
	})
	if err != nil {
		t.Fatalf("first Pass() error = %v", err)
	}
	if first != 2 {
		t.Fatalf("first pass sent %d, want 2", first)
	}

	second, err := Pass(context.Background(), items, ring, PassOptions{
		Source:   "test",
		Dispatch: func(context.Context, Item) error { return nil },
	})
	if err != nil {
		t.Fatalf("second Pass() error = %v", err)
	}
	if second != 0 {
		t.Errorf("second pass sent %d, want 0", second)
	}
}

func TestPassDispatchFailureLeavesItemUncached(t *testing.T) {
	ring := cache.NewRing(5)
	boom := errors.New("webhook down")

	calls := 0
	_, err := Pass(context.Background(), newestFirst("b", "a"), ring, PassOptions{
		Source: "test",
		Dispatch: func(_ context.Context, item Item) error {
			calls++
			if item.ID == "b" {
				return boom
			}
			return nil
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Pass() error = %v, want %v", err, boom)
	}

	// "a" dispatched fine and is cached; "b" failed and is retried next
	// cycle.
	if !ring.Contains("a") {
		t.Error("successfully dispatched item should be cached")
	}
	if ring.Contains("b") {
		t.Error("failed item must not be cached")
	}
}

func TestPassDispatchesOldestFirst(t *testing.T) {
	ring := cache.NewRing(5)

	var sent []string
	_, err := Pass(context.Background(), newestFirst("c", "b", "a"), ring, PassOptions{
		Source: "test",
		Dispatch: func(_ context.Context, item Item) error {
			sent = append(sent, item.ID)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("sent = %v, want %v", sent, want)
		}
	}
	// Newest item must be at the cache tail so the next cycle's
	// boundary check hits it first.
	got := ring.Items()
	if got[len(got)-1] != "c" {
		t.Errorf("cache tail = %q, want %q", got[len(got)-1], "c")
	}
}

func TestFilterBlocks(t *testing.T) {
	f := NewFilter([]string{"DLC", " demo "})
	cases := []struct {
		text string
		want bool
	}{
		{"Some Game - Soundtrack DLC", true},
		{"some game dlc pack", true},
		{"Tech Demo Build", true},
		{"Full Game", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := f.Blocks(tc.text); got != tc.want {
			t.Errorf("Blocks(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
