// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package cache

// Ring is a fixed-capacity ordered list of string identifiers used as a
// per-source seen cache. The length is pinned at the configured capacity
// from construction onward: Advance always drops the oldest entry (index 0)
// and appends the new identifier at the end, so the invariant cannot be
// violated by call-site discipline.
//
// Slots that have never been filled hold the empty string. Identifiers are
// never empty, so unfilled slots can never produce a false Contains hit.
type Ring struct {
	items []string
}

// NewRing creates an empty ring of the given capacity.
// A capacity below one is treated as one.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{items: make([]string, capacity)}
}

// RingFrom restores a ring of the given capacity from a persisted snapshot.
// When the snapshot is longer than the capacity the newest entries (the
// tail) win; when shorter, the missing oldest slots stay empty.
func RingFrom(capacity int, ids []string) *Ring {
	r := NewRing(capacity)
	if len(ids) > capacity {
		ids = ids[len(ids)-capacity:]
	}
	copy(r.items[capacity-len(ids):], ids)
	return r
}

// Contains reports whether id is present. Linear scan; rings are small
// (capacities of 3 to 10 in practice).
func (r *Ring) Contains(id string) bool {
	if id == "" {
		return false
	}
	for _, v := range r.items {
		if v == id {
			return true
		}
	}
	return false
}

// Advance evicts the oldest entry and appends id as the newest.
func (r *Ring) Advance(id string) {
	copy(r.items, r.items[1:])
	r.items[len(r.items)-1] = id
}

// Len returns the ring capacity, which is also its constant length.
func (r *Ring) Len() int {
	return len(r.items)
}

// Items returns a copy of the ring contents, oldest first. Unfilled slots
// are omitted so the result round-trips through RingFrom.
func (r *Ring) Items() []string {
	out := make([]string, 0, len(r.items))
	for _, v := range r.items {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
