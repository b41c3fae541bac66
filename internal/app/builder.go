package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"fincore/internal/config"
	"fincore/internal/executor"
	"fincore/internal/gateway"
	"fincore/internal/logger"
	"fincore/internal/provider"
	"fincore/internal/registry"
	"fincore/internal/store"
	"fincore/internal/store/gormstore"
	"fincore/internal/stream"
	apihttp "fincore/internal/transport/http/api"
)

type AppBuilder struct {
	cfg        *config.Config
	configPath string

	cacheFn    func(config.CacheConfig) (store.ResponseCache, io.Closer, error)
	registryFn func(*config.Config, gateway.Deps) (*registry.Registry, error)
	dialer     stream.Dialer
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath enables hot reload of credentials and preferences from path.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.configPath = strings.TrimSpace(path) }
}

// WithCache replaces the configured response cache.
func WithCache(c store.ResponseCache) AppBuilderOption {
	return func(b *AppBuilder) {
		b.cacheFn = func(config.CacheConfig) (store.ResponseCache, io.Closer, error) { return c, nil, nil }
	}
}

// WithRegistry replaces the provider registry construction.
func WithRegistry(fn func(*config.Config, gateway.Deps) (*registry.Registry, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.registryFn = fn
		}
	}
}

// WithStreamDialer sets the websocket dialer handed to stream clients.
func WithStreamDialer(d stream.Dialer) AppBuilderOption {
	return func(b *AppBuilder) { b.dialer = d }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		cacheFn:    buildCache,
		registryFn: gateway.NewRegistryFromConfig,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// buildCache opens the sqlite cache when a path is configured and falls
// back to memory otherwise. A disabled cache yields nil.
func buildCache(cc config.CacheConfig) (store.ResponseCache, io.Closer, error) {
	if !cc.Enabled {
		return nil, nil, nil
	}
	if strings.TrimSpace(cc.Path) == "" {
		return store.NewMemoryCache(), nil, nil
	}
	gs, err := gormstore.NewGormStore(cc.Path, cc.Capacity)
	if err != nil {
		return nil, nil, fmt.Errorf("open response cache: %w", err)
	}
	return gs, gs, nil
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	logger.EnablePayloadDump(cfg.App.PayloadDump)

	metrics := prometheus.NewRegistry()
	cache, closer, err := b.cacheFn(cfg.Cache)
	if err != nil {
		return nil, err
	}
	closeOnErr := func(err error) (*App, error) {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}

	settings := stream.Settings{
		Config:  gateway.StreamConfig(cfg.Stream),
		Metrics: stream.NewMetrics(metrics),
		Dialer:  b.dialer,
	}
	reg, err := b.registryFn(cfg, gateway.Deps{Cache: cache, Stream: settings})
	if err != nil {
		return closeOnErr(fmt.Errorf("build registry: %w", err))
	}
	for _, w := range reg.Warnings() {
		logger.Warnf("registry: %s", w)
	}
	pi := provider.New(reg)
	exec := executor.New(pi, executor.Config{
		CircuitThreshold: cfg.Executor.CircuitThreshold,
		CircuitTimeout:   cfg.Executor.CircuitTimeout(),
	}, executor.NewMetrics(metrics))

	holder := config.NewHolder(cfg)
	hub := stream.NewHub()
	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Executor:  exec,
		Interface: pi,
		Config:    holder,
		Hub:       hub,
		Gatherer:  metrics,
	})
	if err != nil {
		return closeOnErr(err)
	}

	return &App{
		cfg:        cfg,
		configPath: b.configPath,
		holder:     holder,
		iface:      pi,
		exec:       exec,
		hub:        hub,
		server:     server,
		cache:      cache,
		closer:     closer,
		Summary:    newStartupSummary(cfg, pi, cache),
	}, nil
}
