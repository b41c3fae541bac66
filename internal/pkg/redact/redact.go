// Package redact masks credential values in URLs, headers and free-form maps.
package redact

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const Placeholder = "********"

var sensitiveFragments = []string{"api_key", "apikey", "token", "auth", "password", "secret"}

// IsSensitive reports whether a parameter, header or attribute name carries a
// credential. Matching is case-insensitive and treats '-' like '_'.
func IsSensitive(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	n = strings.ReplaceAll(n, "-", "_")
	if strings.HasSuffix(n, "_key") || strings.HasSuffix(n, "_token") {
		return true
	}
	for _, frag := range sensitiveFragments {
		if strings.Contains(n, frag) {
			return true
		}
	}
	return false
}

// URL returns raw with every sensitive query value replaced. Unparseable input
// is returned fully masked.
func URL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Placeholder
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	if u.RawQuery == "" {
		return u.String()
	}
	q := u.Query()
	changed := false
	for key := range q {
		if IsSensitive(key) {
			q[key] = []string{Placeholder}
			changed = true
		}
	}
	if changed {
		u.RawQuery = encodeQuery(q)
	}
	return u.String()
}

// StripURL removes sensitive query parameters entirely. It is used to build
// cache keys that do not depend on who asked.
func StripURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	q := u.Query()
	for key := range q {
		if IsSensitive(key) {
			q.Del(key)
		}
	}
	u.RawQuery = encodeQuery(q)
	return u.String()
}

// Header returns a copy of h with sensitive values masked.
func Header(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for key, vals := range h {
		if IsSensitive(key) {
			out[key] = []string{Placeholder}
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// Map returns a deep copy of m with sensitive values masked. Nested maps and
// slices are walked.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, val := range m {
		if IsSensitive(key) {
			out[key] = Placeholder
			continue
		}
		out[key] = value(val)
	}
	return out
}

// Strings masks every value of a flat name/secret map.
func Strings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for key := range m {
		out[key] = Placeholder
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Map(t)
	case map[string]string:
		conv := make(map[string]any, len(t))
		for k, s := range t {
			conv[k] = s
		}
		return Map(conv)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = value(item)
		}
		return out
	case string:
		if strings.Contains(t, "://") && strings.Contains(t, "?") {
			return URL(t)
		}
		return t
	default:
		return v
	}
}

// encodeQuery is url.Values.Encode without escaping the placeholder.
func encodeQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			if v == Placeholder {
				b.WriteString(v)
			} else {
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}
