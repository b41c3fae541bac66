package config

import (
	"fmt"
	"strings"
)

// validate checks the decoded configuration.
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	p := c.Preferences
	if p.RequestTimeout < 0 {
		return fmt.Errorf("preferences.request_timeout must be >= 0")
	}
	if p.MaxFanOut < 0 {
		return fmt.Errorf("preferences.max_fan_out must be >= 0")
	}
	switch p.ChartingExtension {
	case "", "echarts":
	default:
		return fmt.Errorf("preferences.charting_extension %q is not supported", p.ChartingExtension)
	}
	for _, name := range []string{"fmp", "tiingo", "binance", "gate", "treasury", "alternative"} {
		if err := c.Providers.Get(name).validate(name); err != nil {
			return err
		}
	}
	if c.Executor.CircuitThreshold < 0 || c.Executor.CircuitTimeoutSeconds < 0 {
		return fmt.Errorf("executor circuit settings must be >= 0")
	}
	if err := c.Stream.validate(); err != nil {
		return err
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Path) == "" {
		return fmt.Errorf("cache.path is required when cache.enabled is true")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must be >= 0")
	}
	return nil
}

func (a AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level %q is invalid", a.LogLevel)
	}
}

func (p ProviderConfig) validate(name string) error {
	if p.RateLimit < 0 {
		return fmt.Errorf("providers.%s.rate_limit must be >= 0", name)
	}
	if p.Burst < 0 || p.TimeoutSeconds < 0 {
		return fmt.Errorf("providers.%s burst and timeout_seconds must be >= 0", name)
	}
	if p.Proxy.Enabled && p.Proxy.RESTURL == "" && p.Proxy.WSURL == "" {
		return fmt.Errorf("providers.%s.proxy is enabled without rest_url or ws_url", name)
	}
	return nil
}

func (s StreamConfig) validate() error {
	if s.QueueSize < 0 || s.ReconnectAttempts < 0 {
		return fmt.Errorf("stream.queue_size and stream.reconnect_attempts must be >= 0")
	}
	if s.BackoffMaxMS > 0 && s.BackoffInitialMS > s.BackoffMaxMS {
		return fmt.Errorf("stream.backoff_initial_ms must not exceed stream.backoff_max_ms")
	}
	return nil
}
