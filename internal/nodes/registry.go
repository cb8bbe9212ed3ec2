// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package nodes maintains the registry of streaming backend nodes and
// the connection selector that rotates through them on failure.
package nodes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/store"
)

// Descriptor is one candidate streaming node.
type Descriptor struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Password string   `json:"-"`
	Secure   bool     `json:"secure"`
	Version  string   `json:"version"`
	Plugins  []string `json:"plugins,omitempty"`

	// Connected and Capacity are load figures as reported by discovery;
	// zero Capacity means the endpoint does not report load.
	Connected int `json:"connected"`
	Capacity  int `json:"capacity"`

	// Score is accumulated connect telemetry, persisted across
	// rebuilds. It does not influence rotation order.
	Score int `json:"score"`
}

// URI is the stable identity used for dedup and score storage.
func (d Descriptor) URI() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Registry holds the current candidate list. Refresh rebuilds it
// wholesale; readers on other goroutines take the read lock.
type Registry struct {
	cfg   config.NodesConfig
	fetch *fetch.Client
	store *store.Store

	mu    sync.RWMutex
	nodes []Descriptor
}

func NewRegistry(cfg config.NodesConfig, client *fetch.Client, st *store.Store) *Registry {
	return &Registry{cfg: cfg, fetch: client, store: st}
}

type discoveryResponse struct {
	Nodes []Descriptor `json:"nodes"`
}

// Refresh queries the discovery endpoints in priority order and rebuilds
// the candidate list. A node that fails any filter is dropped; a host
// already seen from an earlier endpoint wins over later duplicates. When
// every endpoint comes back empty or unreachable, the configured
// fallback node becomes the sole candidate.
func (r *Registry) Refresh(ctx context.Context) error {
	log := logging.With().Str("component", "nodes").Logger()

	seen := make(map[string]struct{})
	var fresh []Descriptor
	for _, ep := range r.cfg.Endpoints {
		res := r.fetch.Do(ctx, fetch.Request{URL: ep.URL, Retries: 1})
		if !res.OK() {
			log.Warn().Err(res.Err).Str("endpoint", ep.URL).Msg("discovery endpoint unavailable")
			continue
		}
		var resp discoveryResponse
		if err := res.JSON(&resp); err != nil {
			log.Warn().Err(err).Str("endpoint", ep.URL).Msg("discovery response malformed")
			continue
		}
		for _, node := range resp.Nodes {
			if _, dup := seen[node.Host]; dup {
				continue
			}
			if !r.admit(node) {
				continue
			}
			seen[node.Host] = struct{}{}
			fresh = append(fresh, node)
		}
	}

	if len(fresh) == 0 {
		fb := r.cfg.Fallback
		fresh = append(fresh, Descriptor{
			Host:     fb.Host,
			Port:     fb.Port,
			Password: fb.Password,
			Secure:   fb.Secure,
		})
		log.Warn().Str("fallback", fresh[0].URI()).Msg("discovery empty, using fallback node")
	}

	// Carry scores across the rebuild; identity is the URI, so a node
	// that moved ports starts over.
	for i := range fresh {
		score, err := r.store.Score(fresh[i].URI())
		if err != nil {
			return fmt.Errorf("nodes: load score for %s: %w", fresh[i].URI(), err)
		}
		fresh[i].Score = score
	}

	r.mu.Lock()
	r.nodes = fresh
	r.mu.Unlock()

	metrics.RegistrySize.Set(float64(len(fresh)))
	log.Info().Int("candidates", len(fresh)).Msg("registry rebuilt")
	return nil
}

// admit applies the version, plugin, and load filters.
func (r *Registry) admit(node Descriptor) bool {
	if node.Host == "" || node.Port <= 0 {
		return false
	}
	if r.cfg.RequiredVersion != "" && node.Version != r.cfg.RequiredVersion {
		return false
	}
	for _, want := range r.cfg.RequiredPlugins {
		if !hasPlugin(node.Plugins, want) {
			return false
		}
	}
	if node.Capacity > 0 && node.Connected >= node.Capacity {
		return false
	}
	return true
}

func hasPlugin(plugins []string, want string) bool {
	for _, p := range plugins {
		if strings.EqualFold(p, want) {
			return true
		}
	}
	return false
}

// Snapshot copies the current candidate list.
func (r *Registry) Snapshot() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len is the current candidate count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
