package config

import (
	"strings"
	"time"

	"fincore/internal/preferences"
)

// Config is the fincore process configuration.
type Config struct {
	App         AppConfig               `mapstructure:"app"`
	Preferences preferences.Preferences `mapstructure:"preferences"`
	// Credentials maps credential names (fmp_api_key, tiingo_token) to values.
	Credentials map[string]string `mapstructure:"credentials"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Stream      StreamConfig      `mapstructure:"stream"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

type AppConfig struct {
	Env            string `mapstructure:"env"`
	LogLevel       string `mapstructure:"log_level"`
	LogPath        string `mapstructure:"log_path"`
	PayloadLogPath string `mapstructure:"payload_log_path"`
	PayloadDump    bool   `mapstructure:"payload_dump"`
	HTTPAddr       string `mapstructure:"http_addr"`
}

type ProvidersConfig struct {
	// Enabled lists the manifests registered at startup, in order. Empty
	// means every built-in provider.
	Enabled     []string       `mapstructure:"enabled"`
	FMP         ProviderConfig `mapstructure:"fmp"`
	Tiingo      ProviderConfig `mapstructure:"tiingo"`
	Binance     ProviderConfig `mapstructure:"binance"`
	Gate        ProviderConfig `mapstructure:"gate"`
	Treasury    ProviderConfig `mapstructure:"treasury"`
	Alternative ProviderConfig `mapstructure:"alternative"`
}

// Get returns the settings of a provider by name.
func (p ProvidersConfig) Get(name string) ProviderConfig {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fmp":
		return p.FMP
	case "tiingo":
		return p.Tiingo
	case "binance":
		return p.Binance
	case "gate":
		return p.Gate
	case "treasury":
		return p.Treasury
	case "alternative":
		return p.Alternative
	}
	return ProviderConfig{}
}

// IsEnabled reports whether name should be registered.
func (p ProvidersConfig) IsEnabled(name string) bool {
	if len(p.Enabled) == 0 {
		return true
	}
	for _, n := range p.Enabled {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
	}
	return false
}

type ProviderConfig struct {
	BaseURL        string      `mapstructure:"base_url"`
	StreamURL      string      `mapstructure:"stream_url"`
	RateLimit      float64     `mapstructure:"rate_limit"`
	Burst          int         `mapstructure:"burst"`
	TimeoutSeconds int         `mapstructure:"timeout_seconds"`
	Proxy          ProxyConfig `mapstructure:"proxy"`
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	RESTURL string `mapstructure:"rest_url"`
	WSURL   string `mapstructure:"ws_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
	p.WSURL = strings.TrimSpace(p.WSURL)
}

type ExecutorConfig struct {
	CircuitThreshold      int `mapstructure:"circuit_threshold"`
	CircuitTimeoutSeconds int `mapstructure:"circuit_timeout_seconds"`
}

func (e ExecutorConfig) CircuitTimeout() time.Duration {
	return time.Duration(e.CircuitTimeoutSeconds) * time.Second
}

type StreamConfig struct {
	QueueSize            int `mapstructure:"queue_size"`
	ReconnectAttempts    int `mapstructure:"reconnect_attempts"`
	BackoffInitialMS     int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMS         int `mapstructure:"backoff_max_ms"`
	OverrunWindowSeconds int `mapstructure:"overrun_window_seconds"`
	AuthTimeoutSeconds   int `mapstructure:"auth_timeout_seconds"`
}

type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	Capacity   int    `mapstructure:"capacity"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// keySet tracks field paths set explicitly in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault is the default rule for one field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
