package app

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"fincore/internal/config"
	"fincore/internal/provider"
	"fincore/internal/store"
)

type StartupSummary struct {
	HTTPAddr  string
	Cache     string
	Providers map[string][]string
	Standards []string
	Missing   map[string][]string
}

func newStartupSummary(cfg *config.Config, pi *provider.Interface, cache store.ResponseCache) *StartupSummary {
	s := &StartupSummary{
		HTTPAddr:  cfg.App.HTTPAddr,
		Providers: pi.Providers(),
		Standards: pi.Registry().ListStandardModels(),
		Missing:   map[string][]string{},
	}
	switch {
	case cache == nil:
		s.Cache = "disabled"
	case cfg.Cache.Path == "":
		s.Cache = fmt.Sprintf("memory (ttl %s)", cfg.Cache.TTL())
	default:
		s.Cache = fmt.Sprintf("sqlite %s (ttl %s)", cfg.Cache.Path, cfg.Cache.TTL())
	}
	creds := cfg.ResolveCredentials(pi.CredentialNames())
	for _, p := range pi.Registry().Providers() {
		m, ok := pi.Registry().Manifest(p)
		if !ok {
			continue
		}
		for _, name := range m.Credentials {
			if creds[name] == "" {
				s.Missing[p] = append(s.Missing[p], name)
			}
		}
	}
	return s
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("STARTUP SUMMARY\n")
	fmt.Fprintf(&b, "  http: %s\n", formatList([]string{s.HTTPAddr}))
	fmt.Fprintf(&b, "  cache: %s\n", s.Cache)
	b.WriteString("[standard models]\n")
	for _, std := range s.Standards {
		fmt.Fprintf(&b, "  > %s: %s\n", std, formatList(s.Providers[std]))
	}
	if len(s.Missing) > 0 {
		b.WriteString("[missing credentials]\n")
		for _, p := range slices.Sorted(maps.Keys(s.Missing)) {
			fmt.Fprintf(&b, "  > %s: %s\n", p, formatList(s.Missing[p]))
		}
	}
	b.WriteString(strings.Repeat("=", 60))
	return b.String()
}

func formatList(items []string) string {
	var kept []string
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return "-"
	}
	return strings.Join(kept, ", ")
}
