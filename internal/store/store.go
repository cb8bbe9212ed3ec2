// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package store provides Herald's persistent state on BadgerDB: per-source
// seen caches, filter/exception lists, the tracked-games list, node scores
// keyed by URI, and the rolling activity buffers.
//
// Each region uses a distinct key prefix. Adapters only touch their own
// keys, so no coordination beyond badger's own transactions is needed.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/herald/internal/cache"
)

// Key prefixes for the storage regions.
const (
	cacheKeyPrefix    = "cache:"
	listKeyPrefix     = "lists:"
	scoreKeyPrefix    = "nodescore:"
	activityKeyPrefix = "activity:"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("store: not found")

// Store wraps a badger database with Herald's typed regions.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// getJSON reads key into v, mapping a missing key to ErrNotFound.
func (s *Store) getJSON(key string, v interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// setJSON writes v under key.
func (s *Store) setJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// LoadCache restores a source's seen cache. A source that has never run
// gets an empty ring of the configured capacity.
func (s *Store) LoadCache(source string, capacity int) (*cache.Ring, error) {
	var ids []string
	err := s.getJSON(cacheKeyPrefix+source, &ids)
	if errors.Is(err, ErrNotFound) {
		return cache.NewRing(capacity), nil
	}
	if err != nil {
		return nil, err
	}
	return cache.RingFrom(capacity, ids), nil
}

// SaveCache persists a source's seen cache.
func (s *Store) SaveCache(source string, r *cache.Ring) error {
	return s.setJSON(cacheKeyPrefix+source, r.Items())
}

// LoadList reads a named string list (exceptions, tracked games). A list
// that was never written is empty, not an error.
func (s *Store) LoadList(name string) ([]string, error) {
	var items []string
	err := s.getJSON(listKeyPrefix+name, &items)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SaveList writes a named string list.
func (s *Store) SaveList(name string, items []string) error {
	return s.setJSON(listKeyPrefix+name, items)
}

// Score returns the persisted score for a node URI, zero when unknown.
func (s *Store) Score(uri string) (int, error) {
	var score int
	err := s.getJSON(scoreKeyPrefix+uri, &score)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

// SetScore persists the score for a node URI.
func (s *Store) SetScore(uri string, score int) error {
	return s.setJSON(scoreKeyPrefix+uri, score)
}

// AddScore adjusts a node's score by delta and returns the new value.
func (s *Store) AddScore(uri string, delta int) (int, error) {
	score, err := s.Score(uri)
	if err != nil {
		return 0, err
	}
	score += delta
	if err := s.SetScore(uri, score); err != nil {
		return 0, err
	}
	return score, nil
}

// LoadSamples restores a rolling activity buffer by horizon name
// ("short" or "long"). Never-written buffers come back zero-filled.
func (s *Store) LoadSamples(horizon string, capacity int) (*cache.SampleRing, error) {
	var samples []cache.Sample
	err := s.getJSON(activityKeyPrefix+horizon, &samples)
	if errors.Is(err, ErrNotFound) {
		return cache.NewSampleRing(capacity), nil
	}
	if err != nil {
		return nil, err
	}
	return cache.SampleRingFrom(capacity, samples), nil
}

// SaveSamples persists a rolling activity buffer.
func (s *Store) SaveSamples(horizon string, r *cache.SampleRing) error {
	return s.setJSON(activityKeyPrefix+horizon, r.Samples())
}

// Timestamp restores a named clock, zero when never written.
func (s *Store) Timestamp(name string) (time.Time, error) {
	var t time.Time
	err := s.getJSON(activityKeyPrefix+"clock:"+name, &t)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// SetTimestamp persists a named clock.
func (s *Store) SetTimestamp(name string, t time.Time) error {
	return s.setJSON(activityKeyPrefix+"clock:"+name, t)
}

// Maintain runs one value-log garbage collection pass. Badger leaves
// this to the caller; ErrNoRewrite just means there was nothing to
// reclaim.
func (s *Store) Maintain() error {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("store: value log gc: %w", err)
	}
	return nil
}
