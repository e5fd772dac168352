// Package app assembles the runtime shared by the api server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/backend"
	"github.com/spec-kit/talent-client/internal/config"
	"github.com/spec-kit/talent-client/internal/events"
	"github.com/spec-kit/talent-client/internal/observability"
	"github.com/spec-kit/talent-client/internal/persistence"
	"github.com/spec-kit/talent-client/internal/service"
	"github.com/spec-kit/talent-client/internal/session"
)

// Runtime holds long-lived collaborators.
type Runtime struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Client      *backend.Client
	Postgres    *persistence.Postgres
	Redis       *persistence.Redis
	Store       session.Store
	Dispatcher  events.Dispatcher
	Marketplace *service.Marketplace
}

// Build connects the configured session store and wires the client core.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	logger = observability.OrNop(logger)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	rt := &Runtime{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Client:     backend.New(cfg.Backend, logger, backend.WithMetrics(metrics)),
		Dispatcher: events.NewInMemoryDispatcher(),
	}

	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		rt.Redis = persistence.NewRedis(cfg.Redis, logger)
		rt.Store = persistence.NewRedisSessionStore(rt.Redis.Client, cfg.Redis.KeyPrefix, cfg.Session.TTL())
	case config.SessionStorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.Postgres = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		rt.Store = persistence.NewPostgresSessionStore(pg.Pool, clock, cfg.Session.TTL())
	default:
		rt.Store = session.NewMemoryStore()
	}

	rt.Marketplace = service.NewMarketplace(cfg, service.MarketplaceDependencies{
		Client:       rt.Client,
		SessionStore: rt.Store,
		Dispatcher:   rt.Dispatcher,
		Clock:        clock,
		Logger:       logger,
		Metrics:      metrics,
	})
	return rt, nil
}

// Close releases connections.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	rt.Redis.Close()
	rt.Postgres.Close()
}
