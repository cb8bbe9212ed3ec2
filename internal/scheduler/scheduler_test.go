// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/source"
)

type fakeSource struct {
	name string

	mu    sync.Mutex
	polls int
	fail  error
	panik bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Poll(context.Context) error {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()
	if f.panik {
		panic("adapter bug")
	}
	return f.fail
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func TestRunOncePollsNamedSource(t *testing.T) {
	a := &fakeSource{name: "a"}
	b := &fakeSource{name: "b"}
	s := New(config.SchedulerConfig{FastInterval: time.Hour, SlowInterval: time.Hour}, []source.Source{a, b}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Serve(ctx)
		close(done)
	}()

	if err := s.RunOnce(ctx, "b"); err != nil {
		t.Fatalf("RunOnce(b) error = %v", err)
	}
	if b.count() != 1 || a.count() != 0 {
		t.Errorf("polls = a:%d b:%d, want a:0 b:1", a.count(), b.count())
	}

	if err := s.RunOnce(ctx, "nope"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("RunOnce(nope) error = %v, want ErrUnknownSource", err)
	}

	cancel()
	<-done
}

func TestRunOnceSurfacesPassError(t *testing.T) {
	boom := errors.New("upstream broke")
	a := &fakeSource{name: "a", fail: boom}
	s := New(config.SchedulerConfig{FastInterval: time.Hour, SlowInterval: time.Hour}, []source.Source{a}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	if err := s.RunOnce(ctx, "a"); !errors.Is(err, boom) {
		t.Errorf("RunOnce(a) error = %v, want %v", err, boom)
	}
}

func TestPollContainsPanics(t *testing.T) {
	a := &fakeSource{name: "a", panik: true}
	s := New(config.SchedulerConfig{FastInterval: time.Hour, SlowInterval: time.Hour}, []source.Source{a}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	err := s.RunOnce(ctx, "a")
	if err == nil {
		t.Fatal("RunOnce should surface the contained panic as an error")
	}
	if a.count() != 1 {
		t.Errorf("polls = %d, want 1", a.count())
	}
}

func TestFastTickRotatesSources(t *testing.T) {
	a := &fakeSource{name: "a"}
	b := &fakeSource{name: "b"}
	s := New(config.SchedulerConfig{FastInterval: 5 * time.Millisecond, SlowInterval: time.Hour}, []source.Source{a, b}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx)

	deadline := time.After(2 * time.Second)
	for a.count() < 2 || b.count() < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("rotation starved: a=%d b=%d", a.count(), b.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	// Round robin keeps the two sources within one cycle of each other.
	if diff := a.count() - b.count(); diff < -1 || diff > 1 {
		t.Errorf("rotation skew = %d, want at most 1", diff)
	}
}

func TestMaintenanceRunsOnStartAndSlowTick(t *testing.T) {
	var mu sync.Mutex
	ticks := 0
	m := MaintenanceFunc(func(context.Context) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	s := New(config.SchedulerConfig{FastInterval: time.Hour, SlowInterval: 10 * time.Millisecond}, nil, m)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := ticks
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatalf("maintenance ticks = %d, want at least 2", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
}
