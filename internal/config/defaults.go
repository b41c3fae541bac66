package config

import (
	"strings"

	"fincore/internal/preferences"
)

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9991"
	defaultPayloadLogPath    = "logs/fincore-payload.log"
	defaultCircuitThreshold  = 5
	defaultCircuitTimeout    = 30
	defaultStreamQueueSize   = 1024
	defaultStreamReconnects  = 5
	defaultStreamBackoffInit = 500
	defaultStreamBackoffMax  = 30000
	defaultStreamOverrun     = 10
	defaultStreamAuthTimeout = 10
	defaultCachePath         = "data/fincore-cache.db"
	defaultCacheTTL          = 300
	defaultCacheCapacity     = 10000
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults(nil)
	return &cfg
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.applyPreferenceDefaults(keys)
	c.Providers.applyDefaults()
	c.Executor.applyDefaults(keys)
	c.Stream.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	if c.Credentials == nil {
		c.Credentials = map[string]string{}
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.payload_log_path", &a.PayloadLogPath, defaultPayloadLogPath),
	)
}

// applyPreferenceDefaults fills preference fields the files left unset.
func (c *Config) applyPreferenceDefaults(keys keySet) {
	def := preferences.Defaults()
	p := &c.Preferences
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "preferences.request_timeout",
			need:  func() bool { return p.RequestTimeout <= 0 },
			apply: func() { p.RequestTimeout = def.RequestTimeout },
		},
		fieldDefault{
			key:   "preferences.bulk_threshold",
			need:  func() bool { return p.BulkThreshold <= 0 },
			apply: func() { p.BulkThreshold = def.BulkThreshold },
		},
		fieldDefault{
			key:   "preferences.bulk_timeout_factor",
			need:  func() bool { return p.BulkTimeoutFactor <= 0 },
			apply: func() { p.BulkTimeoutFactor = def.BulkTimeoutFactor },
		},
		fieldDefault{
			key:   "preferences.max_fan_out",
			need:  func() bool { return p.MaxFanOut <= 0 },
			apply: func() { p.MaxFanOut = def.MaxFanOut },
		},
		boolFieldDefault("preferences.include_metadata", &p.IncludeMetadata, def.IncludeMetadata),
	)
	p.ChartingExtension = strings.ToLower(strings.TrimSpace(p.ChartingExtension))
}

func (p *ProvidersConfig) applyDefaults() {
	p.Enabled = normalizeList(p.Enabled)
	for _, pc := range []*ProviderConfig{&p.FMP, &p.Tiingo, &p.Binance, &p.Gate, &p.Treasury, &p.Alternative} {
		pc.BaseURL = strings.TrimSpace(pc.BaseURL)
		pc.StreamURL = strings.TrimSpace(pc.StreamURL)
		pc.Proxy.normalize()
	}
}

func (e *ExecutorConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("executor.circuit_threshold", &e.CircuitThreshold, defaultCircuitThreshold),
		intFieldDefault("executor.circuit_timeout_seconds", &e.CircuitTimeoutSeconds, defaultCircuitTimeout),
	)
}

func (s *StreamConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("stream.queue_size", &s.QueueSize, defaultStreamQueueSize),
		intFieldDefault("stream.reconnect_attempts", &s.ReconnectAttempts, defaultStreamReconnects),
		intFieldDefault("stream.backoff_initial_ms", &s.BackoffInitialMS, defaultStreamBackoffInit),
		intFieldDefault("stream.backoff_max_ms", &s.BackoffMaxMS, defaultStreamBackoffMax),
		intFieldDefault("stream.overrun_window_seconds", &s.OverrunWindowSeconds, defaultStreamOverrun),
		intFieldDefault("stream.auth_timeout_seconds", &s.AuthTimeoutSeconds, defaultStreamAuthTimeout),
	)
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("cache.path", &c.Path, defaultCachePath),
		intFieldDefault("cache.ttl_seconds", &c.TTLSeconds, defaultCacheTTL),
		intFieldDefault("cache.capacity", &c.Capacity, defaultCacheCapacity),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func normalizeList(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, id := range list {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
