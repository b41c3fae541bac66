package fetcher

import (
	"log/slog"
	"sort"
	"strings"

	"fincore/internal/pkg/jsonutil"
	"fincore/internal/pkg/redact"
)

// Credentials maps credential names (e.g. fmp_api_key) to secrets. The map is
// read-only during a request. It never renders its values.
type Credentials map[string]string

func (c Credentials) Get(name string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[name])
}

// Has reports whether every name resolves to a non-empty secret.
func (c Credentials) Has(names ...string) bool {
	for _, n := range names {
		if c.Get(n) == "" {
			return false
		}
	}
	return true
}

// Missing lists the names without a usable secret, in input order.
func (c Credentials) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if c.Get(n) == "" {
			out = append(out, n)
		}
	}
	return out
}

// Subset copies only the named credentials.
func (c Credentials) Subset(names ...string) Credentials {
	out := make(Credentials, len(names))
	for _, n := range names {
		if v := c.Get(n); v != "" {
			out[n] = v
		}
	}
	return out
}

// Merge returns c overlaid with other.
func (c Credentials) Merge(other Credentials) Credentials {
	out := make(Credentials, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}

func (c Credentials) Names() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c Credentials) String() string {
	return "Credentials[" + strings.Join(c.Names(), ",") + "]"
}

func (c Credentials) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(c))
	for _, name := range c.Names() {
		attrs = append(attrs, slog.String(name, redact.Placeholder))
	}
	return slog.GroupValue(attrs...)
}

// MarshalJSON masks every value so credentials can never leak into an
// envelope or dump.
func (c Credentials) MarshalJSON() ([]byte, error) {
	return jsonutil.Marshal(redact.Strings(c))
}
