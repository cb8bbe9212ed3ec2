// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Command server runs the Herald daemon: the polling scheduler, the node
// registry and selector, the activity sampler, and the operator API,
// all under one supervision tree.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/herald/internal/activity"
	"github.com/tomtom215/herald/internal/api"
	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/fetch"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/nodes"
	"github.com/tomtom215/herald/internal/notify"
	"github.com/tomtom215/herald/internal/scheduler"
	"github.com/tomtom215/herald/internal/source"
	"github.com/tomtom215/herald/internal/store"
	"github.com/tomtom215/herald/internal/supervisor"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("herald exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("herald starting")

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	client := fetch.New(fetch.DefaultOptions())

	deps := source.Deps{
		Fetch:    client,
		Store:    st,
		Dispatch: notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.DescriptionLimit, client),
		Operator: notify.NewWebhook(cfg.Notify.OperatorWebhookURL, cfg.Notify.DescriptionLimit, client),
	}
	sources := source.Build(cfg.Sources, deps)
	logging.Info().Int("sources", len(sources)).Msg("source rotation assembled")

	registry := nodes.NewRegistry(cfg.Nodes, client, st)
	selector := nodes.NewSelector(cfg.Nodes, registry, st, nodes.DialerFunc(probeNode))

	var sampler *activity.Sampler
	if cfg.Activity.Enabled {
		sampler, err = activity.New(cfg.Activity, client, st)
		if err != nil {
			return err
		}
	}

	maintenance := scheduler.MaintenanceFunc(func(ctx context.Context) {
		if err := registry.Refresh(ctx); err != nil {
			logging.Error().Err(err).Msg("registry refresh failed")
		}
		if err := st.Maintain(); err != nil {
			logging.Warn().Err(err).Msg("store maintenance failed")
		}
	})

	sched := scheduler.New(cfg.Scheduler, sources, maintenance)
	server := api.NewServer(cfg.Server, sched, registry, selector, sampler)

	tree := supervisor.NewTree(slog.Default(), supervisor.DefaultTreeConfig())
	tree.AddPollingService(sched)
	if sampler != nil {
		tree.AddPollingService(sampler)
	}
	tree.AddAPIService(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	logging.Info().Msg("herald stopped")
	return err
}

// probeNode verifies a candidate accepts TCP connections. Session setup
// happens lazily on first use; the selector only needs reachability.
func probeNode(ctx context.Context, node nodes.Descriptor) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", node.URI())
	if err != nil {
		return err
	}
	return conn.Close()
}
