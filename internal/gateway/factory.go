// Package gateway assembles the provider manifests enabled by configuration.
package gateway

import (
	"fmt"
	"strings"
	"time"

	"fincore/internal/config"
	"fincore/internal/gateway/alternative"
	"fincore/internal/gateway/binance"
	"fincore/internal/gateway/fmp"
	"fincore/internal/gateway/gate"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/gateway/tiingo"
	"fincore/internal/gateway/treasury"
	"fincore/internal/registry"
	"fincore/internal/standard"
	"fincore/internal/store"
	"fincore/internal/stream"
)

// Builtin lists the providers in registration order.
var Builtin = []string{fmp.Name, tiingo.Name, binance.Name, gate.Name, treasury.Name, alternative.Name}

// Deps are the shared services handed to adapters.
type Deps struct {
	// Cache may be nil.
	Cache  store.ResponseCache
	Stream stream.Settings
}

// NewManifestsFromConfig builds one manifest per enabled provider.
func NewManifestsFromConfig(cfg *config.Config, deps Deps) ([]registry.Manifest, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	names := cfg.Providers.Enabled
	if len(names) == 0 {
		names = Builtin
	}
	out := make([]registry.Manifest, 0, len(names))
	for _, name := range names {
		m, err := newManifest(strings.ToLower(strings.TrimSpace(name)), cfg, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func newManifest(name string, cfg *config.Config, deps Deps) (registry.Manifest, error) {
	pc := cfg.Providers.Get(name)
	switch name {
	case fmp.Name:
		return fmp.New(httpConfig(pc, cfg.Cache), deps.Cache), nil
	case tiingo.Name:
		return tiingo.New(tiingo.Options{
			HTTP:      httpConfig(pc, cfg.Cache),
			Cache:     deps.Cache,
			StreamURL: pc.StreamURL,
			Stream:    deps.Stream,
		}), nil
	case binance.Name:
		return binance.New(binance.Config{
			RESTBaseURL:  pc.BaseURL,
			StreamURL:    pc.StreamURL,
			HTTPTimeout:  pc.Timeout(),
			ProxyEnabled: pc.Proxy.Enabled,
			RESTProxyURL: pc.Proxy.RESTURL,
			WSProxyURL:   pc.Proxy.WSURL,
		}, deps.Stream)
	case gate.Name:
		return gate.New(gate.Config{
			RESTBaseURL:  pc.BaseURL,
			HTTPTimeout:  pc.Timeout(),
			ProxyEnabled: pc.Proxy.Enabled,
			RESTProxyURL: pc.Proxy.RESTURL,
		})
	case treasury.Name:
		return treasury.New(httpConfig(pc, cfg.Cache), deps.Cache), nil
	case alternative.Name:
		return alternative.New(httpConfig(pc, cfg.Cache), deps.Cache), nil
	default:
		return registry.Manifest{}, fmt.Errorf("unsupported provider: %s", name)
	}
}

// NewRegistryFromConfig registers every standard model and the enabled
// providers.
func NewRegistryFromConfig(cfg *config.Config, deps Deps) (*registry.Registry, error) {
	manifests, err := NewManifestsFromConfig(cfg, deps)
	if err != nil {
		return nil, err
	}
	return registry.NewBuilder().
		AddStandard(standard.All()...).
		AddManifest(manifests...).
		Build()
}

// StreamConfig converts the stream section into client settings.
func StreamConfig(sc config.StreamConfig) stream.Config {
	return stream.Config{
		QueueSize:         sc.QueueSize,
		ReconnectAttempts: sc.ReconnectAttempts,
		BackoffInitial:    time.Duration(sc.BackoffInitialMS) * time.Millisecond,
		BackoffMax:        time.Duration(sc.BackoffMaxMS) * time.Millisecond,
		OverrunWindow:     time.Duration(sc.OverrunWindowSeconds) * time.Second,
		AuthTimeout:       time.Duration(sc.AuthTimeoutSeconds) * time.Second,
	}
}

func httpConfig(pc config.ProviderConfig, cc config.CacheConfig) httpclient.Config {
	return httpclient.Config{
		BaseURL:   pc.BaseURL,
		Timeout:   pc.Timeout(),
		RateLimit: pc.RateLimit,
		Burst:     pc.Burst,
		CacheTTL:  cc.TTL(),
	}
}
