// Package app assembles the registry, executor, stream hub and HTTP surface
// from configuration and runs them.
package app

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"fincore/internal/config"
	"fincore/internal/executor"
	"fincore/internal/logger"
	"fincore/internal/provider"
	"fincore/internal/scheduler"
	"fincore/internal/store"
	"fincore/internal/stream"
	apihttp "fincore/internal/transport/http/api"
)

type App struct {
	cfg        *config.Config
	configPath string
	holder     *config.Holder
	iface      *provider.Interface
	exec       *executor.Executor
	hub        *stream.Hub
	server     *apihttp.Server
	cache      store.ResponseCache
	closer     io.Closer
	Summary    *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(ctx, cfg, opts)
}

// Run serves HTTP until ctx ends. With a config path it also reloads
// credentials and preferences on change, and a sqlite cache is swept
// of expired rows on every TTL boundary.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		logger.InfoBlock(a.Summary.String())
	}
	defer a.Close()

	if a.configPath != "" {
		if err := config.Watch(a.configPath, a.reload); err != nil {
			logger.Warnf("config watch disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	if sweeper, ok := a.cache.(expirer); ok && a.cfg.Cache.TTL() > 0 {
		sched := scheduler.NewAligned("cache-sweep", a.cfg.Cache.TTL(), 0)
		group.Go(func() error {
			sched.Run(ctx, func(ctx context.Context) { sweepExpired(ctx, sweeper) })
			return nil
		})
	}
	return group.Wait()
}

func (a *App) reload(cfg *config.Config) {
	a.holder.Set(cfg)
	logger.SetLevel(cfg.App.LogLevel)
}

type expirer interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func sweepExpired(ctx context.Context, s expirer) {
	n, err := s.PurgeExpired(ctx)
	if err != nil {
		logger.Warnf("cache sweep failed: %v", err)
		return
	}
	if n > 0 {
		logger.Debugf("cache sweep removed %d entries", n)
	}
}

// Close stops every open stream and releases the cache.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.hub != nil {
		a.hub.CloseAll()
	}
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

func (a *App) Executor() *executor.Executor { return a.exec }

func (a *App) Interface() *provider.Interface { return a.iface }

func (a *App) Config() *config.Holder { return a.holder }

func (a *App) Hub() *stream.Hub { return a.hub }

func (a *App) Server() *apihttp.Server { return a.server }
