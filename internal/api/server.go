// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package api is the operator HTTP surface: source status and on-demand
// runs, node registry inspection, manual node overrides, and activity
// buffer reads.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/herald/internal/activity"
	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/nodes"
	"github.com/tomtom215/herald/internal/scheduler"
)

// Server hosts the operator API. It implements suture.Service.
type Server struct {
	cfg       config.ServerConfig
	scheduler *scheduler.Scheduler
	registry  *nodes.Registry
	selector  *nodes.Selector
	sampler   *activity.Sampler
}

func NewServer(cfg config.ServerConfig, sched *scheduler.Scheduler, registry *nodes.Registry, selector *nodes.Selector, sampler *activity.Sampler) *Server {
	return &Server{
		cfg:       cfg,
		scheduler: sched,
		registry:  registry,
		selector:  selector,
		sampler:   sampler,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	limit, window := s.cfg.RateLimitReqs, s.cfg.RateLimitWindow
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(limit, window))

		r.Get("/sources", s.handleSources)
		r.Post("/sources/{name}/run", s.handleRunSource)
		r.Get("/nodes", s.handleNodes)
		r.Post("/nodes/connect", s.handleConnectNode)
		r.Get("/activity", s.handleActivity)
	})
	return r
}

// Serve runs the HTTP server until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.Info().Str("addr", addr).Msg("operator api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]any{"ok": false, "reason": reason})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"sources": s.scheduler.Sources(),
	})
}

func (s *Server) handleRunSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.scheduler.RunOnce(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "source": name})
	case errors.Is(err, scheduler.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleNodes(w http.ResponseWriter, _ *http.Request) {
	current, active := s.selector.Current()
	resp := map[string]any{
		"ok":     true,
		"state":  s.selector.State().String(),
		"cursor": s.selector.Cursor(),
		"nodes":  s.registry.Snapshot(),
	}
	if active {
		resp["current"] = current.URI()
	}
	writeJSON(w, http.StatusOK, resp)
}

type connectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	Secure   bool   `json:"secure"`
}

func (s *Server) handleConnectNode(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Host == "" || req.Port <= 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, "host and port are required")
		return
	}

	node := nodes.Descriptor{
		Host:     req.Host,
		Port:     req.Port,
		Password: req.Password,
		Secure:   req.Secure,
	}
	if err := s.selector.ConnectTo(r.Context(), node); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "node": node.URI()})
}

func (s *Server) handleActivity(w http.ResponseWriter, _ *http.Request) {
	if s.sampler == nil {
		writeError(w, http.StatusNotFound, "activity sampling disabled")
		return
	}
	short, long := s.sampler.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"short": short,
		"long":  long,
	})
}
