// Package preferences holds per-request user defaults and decodes them from
// loosely typed maps.
package preferences

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultRequestTimeout    = 10.0
	DefaultBulkThreshold     = 20
	DefaultBulkTimeoutFactor = 3.0
	DefaultMaxFanOut         = 8
)

type Preferences struct {
	// RequestTimeout is in seconds.
	RequestTimeout    float64 `mapstructure:"request_timeout" yaml:"request_timeout"`
	BulkThreshold     int     `mapstructure:"bulk_threshold" yaml:"bulk_threshold"`
	BulkTimeoutFactor float64 `mapstructure:"bulk_timeout_factor" yaml:"bulk_timeout_factor"`
	ChartingExtension string  `mapstructure:"charting_extension" yaml:"charting_extension"`
	// PreferredProvider maps a namespace, or a standard name, to a provider.
	PreferredProvider map[string]string `mapstructure:"preferred_provider_per_namespace" yaml:"preferred_provider_per_namespace"`
	// FallbackProviders maps a standard name, or a namespace, to the one
	// provider retried after a transient failure.
	FallbackProviders map[string]string `mapstructure:"fallback_providers" yaml:"fallback_providers"`
	UseCache          bool              `mapstructure:"use_cache" yaml:"use_cache"`
	MaxFanOut         int               `mapstructure:"max_fan_out" yaml:"max_fan_out"`
	IncludeMetadata   bool              `mapstructure:"include_metadata" yaml:"include_metadata"`
}

func Defaults() Preferences {
	return Preferences{
		RequestTimeout:    DefaultRequestTimeout,
		BulkThreshold:     DefaultBulkThreshold,
		BulkTimeoutFactor: DefaultBulkTimeoutFactor,
		MaxFanOut:         DefaultMaxFanOut,
		IncludeMetadata:   true,
	}
}

// Timeout returns the deadline for a call touching n symbols.
func (p Preferences) Timeout(n int) time.Duration {
	secs := p.RequestTimeout
	if secs <= 0 {
		secs = DefaultRequestTimeout
	}
	threshold := p.BulkThreshold
	if threshold <= 0 {
		threshold = DefaultBulkThreshold
	}
	if n >= threshold {
		factor := p.BulkTimeoutFactor
		if factor < 1 {
			factor = DefaultBulkTimeoutFactor
		}
		secs *= factor
	}
	return time.Duration(secs * float64(time.Second))
}

// Preferred returns the configured provider for a standard, falling back to
// its namespace.
func (p Preferences) Preferred(standard, namespace string) string {
	return lookup(p.PreferredProvider, standard, namespace)
}

func (p Preferences) Fallback(standard, namespace string) string {
	return lookup(p.FallbackProviders, standard, namespace)
}

// lookup matches keys exactly first, then case-insensitively; config files
// decoded through viper arrive with lower-cased map keys.
func lookup(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			return v
		}
		for mk, v := range m {
			if v != "" && strings.EqualFold(mk, k) {
				return v
			}
		}
	}
	return ""
}

// Decode overlays raw onto base. Unknown keys are ignored and returned,
// sorted, so the caller can surface them as warnings.
func Decode(raw map[string]any, base Preferences) (Preferences, []string, error) {
	out := base
	out.PreferredProvider = cloneMap(base.PreferredProvider)
	out.FallbackProviders = cloneMap(base.FallbackProviders)
	if len(raw) == 0 {
		return out, nil, nil
	}
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return base, nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return base, nil, fmt.Errorf("decode preferences: %w", err)
	}
	unused := append([]string(nil), md.Unused...)
	sort.Strings(unused)
	return out, unused, nil
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
