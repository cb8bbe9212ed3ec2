// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package nodes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/store"
)

// ErrAllCandidatesFailed is returned when one full rotation through the
// registry produced no connection.
var ErrAllCandidatesFailed = errors.New("nodes: all candidates failed")

// State is the selector's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Switching
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Switching:
		return "switching"
	default:
		return "unknown"
	}
}

// Dialer opens a connection to one node. Implementations are expected to
// honor the context deadline.
type Dialer interface {
	Dial(ctx context.Context, node Descriptor) error
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, node Descriptor) error

func (f DialerFunc) Dial(ctx context.Context, node Descriptor) error {
	return f(ctx, node)
}

// Session is the playback state carried across a node switch.
type Session struct {
	Track    string
	Position time.Duration
}

// Selector owns the active node choice. Connect walks the registry in
// rotation order; Switch performs failover and re-attaches the session
// on the new node.
type Selector struct {
	cfg      config.NodesConfig
	registry *Registry
	store    *store.Store
	dial     Dialer

	// OnAttach, when set, re-establishes a session after a switch. An
	// attach failure counts as a failed switch attempt.
	OnAttach func(ctx context.Context, node Descriptor, session Session) error

	mu      sync.Mutex
	state   State
	cursor  int
	current Descriptor
	active  bool
}

func NewSelector(cfg config.NodesConfig, registry *Registry, st *store.Store, dial Dialer) *Selector {
	return &Selector{cfg: cfg, registry: registry, store: st, dial: dial}
}

// State returns the current connection state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the active node, if any.
func (s *Selector) Current() (Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.active
}

// Cursor returns the rotation position, for the operator API.
func (s *Selector) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Connect establishes a connection, trying at most one full rotation
// through the registry. Each attempt gets its own timeout; a failure
// decrements the node's score and advances the cursor so the next call
// starts at the following candidate.
func (s *Selector) Connect(ctx context.Context) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Connecting
	node, err := s.connectLocked(ctx)
	if err != nil {
		s.state = Disconnected
		return Descriptor{}, err
	}
	s.state = Connected
	return node, nil
}

// connectLocked is the rotation loop shared by Connect and Switch.
// Callers hold s.mu and own the state transitions.
func (s *Selector) connectLocked(ctx context.Context) (Descriptor, error) {
	log := logging.With().Str("component", "nodes").Logger()

	candidates := s.registry.Snapshot()
	if len(candidates) == 0 {
		return Descriptor{}, ErrAllCandidatesFailed
	}

	for attempt := 0; attempt < len(candidates); attempt++ {
		node := candidates[s.cursor%len(candidates)]

		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		err := s.dial.Dial(dialCtx, node)
		cancel()

		if err != nil {
			metrics.NodeConnectAttempts.WithLabelValues("failure").Inc()
			log.Warn().Err(err).Str("node", node.URI()).Msg("connect failed")
			if _, serr := s.store.AddScore(node.URI(), -1); serr != nil {
				log.Error().Err(serr).Str("node", node.URI()).Msg("score update failed")
			}
			s.cursor++
			if ctx.Err() != nil {
				return Descriptor{}, ctx.Err()
			}
			continue
		}

		metrics.NodeConnectAttempts.WithLabelValues("success").Inc()
		if _, serr := s.store.AddScore(node.URI(), 1); serr != nil {
			log.Error().Err(serr).Str("node", node.URI()).Msg("score update failed")
		}
		s.current = node
		s.active = true
		log.Info().Str("node", node.URI()).Msg("connected")
		return node, nil
	}
	return Descriptor{}, ErrAllCandidatesFailed
}

// Switch fails over to another node and re-attaches the session. At most
// SwitchAttempts rotations are tried; a connect that succeeds but whose
// session attach fails counts as a failed attempt. The caller decides
// what a returned error means for the session.
func (s *Selector) Switch(ctx context.Context, session Session) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logging.With().Str("component", "nodes").Logger()

	s.state = Switching
	s.active = false

	// Leave the failed node behind before the first attempt.
	s.cursor++

	var lastErr error = ErrAllCandidatesFailed
	for attempt := 1; attempt <= s.cfg.SwitchAttempts; attempt++ {
		node, err := s.connectLocked(ctx)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if s.OnAttach != nil {
			if err := s.OnAttach(ctx, node, session); err != nil {
				log.Warn().Err(err).Str("node", node.URI()).Int("attempt", attempt).Msg("session attach failed")
				lastErr = fmt.Errorf("nodes: attach session: %w", err)
				s.active = false
				s.cursor++
				continue
			}
		}

		s.state = Connected
		metrics.NodeSwitches.WithLabelValues("success").Inc()
		log.Info().Str("node", node.URI()).Int("attempt", attempt).Msg("switched node")
		return node, nil
	}

	s.state = Disconnected
	metrics.NodeSwitches.WithLabelValues("failure").Inc()
	return Descriptor{}, lastErr
}

// ConnectTo bypasses the registry for a manual operator override.
func (s *Selector) ConnectTo(ctx context.Context, node Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Connecting
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	err := s.dial.Dial(dialCtx, node)
	cancel()
	if err != nil {
		s.state = Disconnected
		metrics.NodeConnectAttempts.WithLabelValues("failure").Inc()
		return fmt.Errorf("nodes: connect to %s: %w", node.URI(), err)
	}

	metrics.NodeConnectAttempts.WithLabelValues("success").Inc()
	s.current = node
	s.active = true
	s.state = Connected
	return nil
}
