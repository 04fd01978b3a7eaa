package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sentinel/discovery-engine/internal/config"
	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/engram"
	"github.com/sentinel/discovery-engine/internal/events"
	"github.com/sentinel/discovery-engine/internal/graph"
	"github.com/sentinel/discovery-engine/internal/scan"
	"github.com/sentinel/discovery-engine/internal/secrets"
	"github.com/sentinel/discovery-engine/internal/store/postgres"
)

// app bundles the shared, config-driven dependencies every subcommand
// needs. It is built once per invocation from the resolved Config,
// mirroring the teacher's pattern of constructing providers directly in
// each RunE rather than threading a framework-owned container.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	secrets  secrets.Resolver
	graph    *graph.Store
	engrams  *engram.FileStore
	bus      events.Bus
	store    *postgres.Store
	history  *postgres.HistoryStore
	registry *scan.Registry
}

func newApp(ctx context.Context, configPath string, logger *zap.Logger) (*app, error) {
	loader, err := config.NewFileLoader(configPath)
	if err != nil {
		return nil, fmt.Errorf("sentinel: resolve config path: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("sentinel: load config: %w", err)
	}

	bus := events.NewInProcessBus(256)

	g, err := graph.New(ctx, graph.Config{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: mustResolveSecret(ctx, cfg.Graph.PasswordRef),
	}, bus)
	if err != nil {
		return nil, fmt.Errorf("sentinel: connect graph store: %w", err)
	}

	engrams, err := engram.NewFileStore(cfg.Engram.Directory)
	if err != nil {
		return nil, fmt.Errorf("sentinel: open engram store: %w", err)
	}

	store, err := postgres.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("sentinel: connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("sentinel: ensure postgres schema: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		secrets:  secrets.EnvResolver{},
		graph:    g,
		engrams:  engrams,
		bus:      bus,
		store:    store,
		history:  postgres.NewHistoryStore(store),
		registry: scan.NewRegistry(),
	}, nil
}

func mustResolveSecret(ctx context.Context, ref string) string {
	if ref == "" {
		return ""
	}
	v, err := (secrets.EnvResolver{}).Resolve(ctx, ref)
	if err != nil {
		return ""
	}
	return v
}

// runner builds a connector.Runner bound to this app's graph/engram/bus/
// secrets dependencies.
func (a *app) runner() *connector.Runner {
	return &connector.Runner{
		Graph:   a.graph,
		Engrams: a.engrams,
		Bus:     a.bus,
		Secrets: a.secrets,
	}
}

// orchestrator builds a scan.Orchestrator bound to this app's runner,
// history store, and its shared run registry. The registry is shared
// across every orchestrator() call for the lifetime of the process (not
// rebuilt per call) so that "scan cancel", issued against the same app,
// can find a run "scan start" registered moments earlier.
func (a *app) orchestrator() *scan.Orchestrator {
	return &scan.Orchestrator{
		Runner:   a.runner(),
		History:  a.history,
		Registry: a.registry,
	}
}

func (a *app) close() {
	a.store.Close()
}
