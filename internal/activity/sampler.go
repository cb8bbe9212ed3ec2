// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package activity samples game-server population through the legacy
// SOAP server-browser endpoint and maintains two rolling buffers: a
// short one at sampling resolution and a long one fed by periodic
// block-averaged decimation.
package activity

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/herald/internal/cache"
	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/store"
)

const aggregationClock = "last_aggregation"

const soapRequest = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body><GetServerList xmlns="urn:serverbrowser" /></soap:Body>
</soap:Envelope>`

// ServerRecord is one entry of the server-browser listing.
type ServerRecord struct {
	Name       string `xml:"Name"`
	Addr       string `xml:"Addr"`
	Map        string `xml:"Map"`
	Players    int    `xml:"Players"`
	Bots       int    `xml:"Bots"`
	MaxPlayers int    `xml:"MaxPlayers"`
	Passworded bool   `xml:"Passworded"`

	// Version zero marks a stale registration the master server has not
	// pruned yet.
	Version int `xml:"Version"`
}

type serverListEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Servers []ServerRecord `xml:"Servers>Server"`
		} `xml:"GetServerListResponse"`
	} `xml:"Body"`
}

// Sampler owns the two activity buffers. Serve drives Sample and
// Aggregate on the configured cadence; the API reads snapshots, so the
// buffers sit behind a mutex.
type Sampler struct {
	cfg   config.ActivityConfig
	fetch *fetch.Client
	store *store.Store

	mu            sync.Mutex
	short         *cache.SampleRing
	long          *cache.SampleRing
	lastAggregate time.Time
}

// New restores the buffers and the aggregation clock from the store.
func New(cfg config.ActivityConfig, client *fetch.Client, st *store.Store) (*Sampler, error) {
	short, err := st.LoadSamples("short", cfg.ShortCapacity)
	if err != nil {
		return nil, fmt.Errorf("activity: load short buffer: %w", err)
	}
	long, err := st.LoadSamples("long", cfg.LongCapacity)
	if err != nil {
		return nil, fmt.Errorf("activity: load long buffer: %w", err)
	}
	last, err := st.Timestamp(aggregationClock)
	if err != nil {
		return nil, fmt.Errorf("activity: load aggregation clock: %w", err)
	}
	return &Sampler{
		cfg:           cfg,
		fetch:         client,
		store:         st,
		short:         short,
		long:          long,
		lastAggregate: last,
	}, nil
}

// Sample queries the server list and advances the short buffer by one
// point. An unreachable endpoint skips the tick without advancing, so an
// outage reads as a gap in time rather than a string of zeros.
func (s *Sampler) Sample(ctx context.Context) error {
	log := logging.With().Str("component", "activity").Logger()

	res := s.fetch.Do(ctx, fetch.Request{
		URL:    s.cfg.Endpoint,
		Method: http.MethodPost,
		Header: http.Header{
			"Content-Type": {"text/xml; charset=utf-8"},
			"SOAPAction":   {"urn:serverbrowser/GetServerList"},
		},
		Body:    []byte(soapRequest),
		Retries: 1,
	})
	if !res.OK() {
		log.Warn().Err(res.Err).Int("status", res.Status).Msg("server list unavailable")
		return nil
	}

	var envelope serverListEnvelope
	if err := xml.Unmarshal(res.Body, &envelope); err != nil {
		return fmt.Errorf("activity: parse server list: %w", err)
	}

	var sample cache.Sample
	for _, record := range envelope.Body.Response.Servers {
		if record.Version == 0 {
			continue
		}
		sample.Players += float64(record.Players)
		sample.Servers++
	}

	s.mu.Lock()
	s.short.Advance(sample)
	err := s.store.SaveSamples("short", s.short)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("activity: save short buffer: %w", err)
	}

	metrics.ActivityPlayers.Set(sample.Players)
	metrics.ActivityServers.Set(sample.Servers)
	log.Debug().Float64("players", sample.Players).Float64("servers", sample.Servers).Msg("activity sampled")
	return nil
}

// Serve runs the sampling loop on its own cadence, independent of the
// scheduler rotation. Implements suture.Service.
func (s *Sampler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sample(ctx); err != nil {
				logging.Error().Err(err).Msg("activity sample failed")
			}
			if err := s.Aggregate(time.Now()); err != nil {
				logging.Error().Err(err).Msg("activity aggregation failed")
			}
		}
	}
}

// Aggregate decimates the short buffer into the long one when at least
// one aggregation window has elapsed: the elapsed window's worth of the
// newest short samples is block-averaged in groups of GroupSize and every
// resulting point is appended, oldest first. A late invocation widens the
// window to the elapsed windows rather than repeating steps, bounded so
// that a long outage cannot flood the long buffer with stale aggregates.
func (s *Sampler) Aggregate(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastAggregate.IsZero() {
		s.lastAggregate = now
		return s.store.SetTimestamp(aggregationClock, now)
	}

	windows := int(now.Sub(s.lastAggregate) / s.cfg.AggregateEvery)
	if windows <= 0 {
		return nil
	}
	clamped := windows > s.cfg.MaxCatchUp
	if clamped {
		windows = s.cfg.MaxCatchUp
	}

	perWindow := s.short.Len()
	if s.cfg.SampleInterval > 0 {
		perWindow = int(s.cfg.AggregateEvery / s.cfg.SampleInterval)
	}
	if perWindow < s.cfg.GroupSize {
		perWindow = s.cfg.GroupSize
	}

	samples := s.short.Samples()
	take := windows * perWindow
	if take > len(samples) {
		take = len(samples)
	}
	for _, block := range cache.BlockAverages(samples[len(samples)-take:], s.cfg.GroupSize) {
		s.long.Advance(block)
	}

	if clamped {
		s.lastAggregate = now
	} else {
		s.lastAggregate = s.lastAggregate.Add(time.Duration(windows) * s.cfg.AggregateEvery)
	}

	if err := s.store.SaveSamples("long", s.long); err != nil {
		return fmt.Errorf("activity: save long buffer: %w", err)
	}
	if err := s.store.SetTimestamp(aggregationClock, s.lastAggregate); err != nil {
		return fmt.Errorf("activity: save aggregation clock: %w", err)
	}

	logging.Debug().Int("windows", windows).Msg("activity aggregated")
	return nil
}

// Snapshot copies both buffers for the operator API.
func (s *Sampler) Snapshot() (short, long []cache.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.short.Samples(), s.long.Samples()
}
