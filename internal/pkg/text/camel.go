package text

import "strings"

var initialisms = map[string]string{"id": "ID", "url": "URL", "api": "API", "ttl": "TTL", "json": "JSON", "csv": "CSV"}

// Camel turns a snake_case name into an exported Go identifier
// (start_date -> StartDate, series_id -> SeriesID).
func Camel(s string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' || r == '.' }) {
		lower := strings.ToLower(part)
		if up, ok := initialisms[lower]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(strings.ToUpper(lower[:1]) + lower[1:])
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	if c := out[0]; c >= '0' && c <= '9' {
		out = "X" + out
	}
	return out
}
