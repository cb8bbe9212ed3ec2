// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package scheduler drives the polling loop. One goroutine owns every
// adapter pass, so no source can run concurrently with itself or with
// another; on-demand runs from the operator API route through the same
// goroutine.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/source"
)

// Maintenance is the slow-cadence work run alongside polling: registry
// refresh and activity sampling.
type Maintenance interface {
	Tick(ctx context.Context)
}

// MaintenanceFunc adapts a function to Maintenance.
type MaintenanceFunc func(ctx context.Context)

func (f MaintenanceFunc) Tick(ctx context.Context) { f(ctx) }

type runRequest struct {
	name  string
	reply chan error
}

// ErrUnknownSource is returned by RunOnce for a name outside the
// configured rotation.
var ErrUnknownSource = fmt.Errorf("scheduler: unknown source")

// Scheduler rotates through the sources on the fast cadence and runs
// maintenance on the slow cadence. It implements suture.Service.
type Scheduler struct {
	cfg         config.SchedulerConfig
	sources     []source.Source
	maintenance Maintenance

	cursor   int
	requests chan runRequest
}

func New(cfg config.SchedulerConfig, sources []source.Source, maintenance Maintenance) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		sources:     sources,
		maintenance: maintenance,
		requests:    make(chan runRequest),
	}
}

// Sources lists the rotation, in order.
func (s *Scheduler) Sources() []string {
	out := make([]string, len(s.sources))
	for i, src := range s.sources {
		out[i] = src.Name()
	}
	return out
}

// RunOnce polls one source by name on the scheduler goroutine and
// returns the pass error. It blocks until the scheduler picks up the
// request or ctx expires.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	req := runRequest{name: name, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve is the scheduler loop. An immediate maintenance tick primes the
// node registry before the first poll.
func (s *Scheduler) Serve(ctx context.Context) error {
	log := logging.With().Str("component", "scheduler").Logger()
	log.Info().
		Int("sources", len(s.sources)).
		Dur("fast_interval", s.cfg.FastInterval).
		Dur("slow_interval", s.cfg.SlowInterval).
		Msg("scheduler starting")

	if s.maintenance != nil {
		s.maintenance.Tick(ctx)
	}

	fast := time.NewTicker(s.cfg.FastInterval)
	defer fast.Stop()
	slow := time.NewTicker(s.cfg.SlowInterval)
	defer slow.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fast.C:
			s.pollNext(ctx)
		case <-slow.C:
			if s.maintenance != nil {
				s.maintenance.Tick(ctx)
			}
		case req := <-s.requests:
			req.reply <- s.pollByName(ctx, req.name)
		}
	}
}

func (s *Scheduler) pollNext(ctx context.Context) {
	if len(s.sources) == 0 {
		return
	}
	src := s.sources[s.cursor%len(s.sources)]
	s.cursor++
	s.poll(ctx, src)
}

func (s *Scheduler) pollByName(ctx context.Context, name string) error {
	for _, src := range s.sources {
		if src.Name() == name {
			return s.poll(ctx, src)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

// poll runs one adapter pass with panic containment: a crashing adapter
// loses its cycle, not the process.
func (s *Scheduler) poll(ctx context.Context, src source.Source) (err error) {
	log := logging.With().Str("source", src.Name()).Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: %s panicked: %v", src.Name(), r)
			metrics.PollCycles.WithLabelValues(src.Name(), "panic").Inc()
			log.Error().Interface("panic", r).Msg("adapter pass panicked")
		}
		metrics.PollDuration.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
	}()

	if err = src.Poll(ctx); err != nil {
		metrics.PollCycles.WithLabelValues(src.Name(), "error").Inc()
		log.Error().Err(err).Msg("poll failed")
		return err
	}
	metrics.PollCycles.WithLabelValues(src.Name(), "ok").Inc()
	return nil
}
