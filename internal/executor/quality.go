package executor

import (
	"fmt"
	"time"

	"fincore/internal/schema"
)

// qualityHints flags rows dated outside the requested start_date/end_date
// window. One hint per bound is reported.
func qualityHints(params map[string]any, rows []schema.Record) []string {
	start, hasStart := boundOf(params, "start_date")
	end, hasEnd := boundOf(params, "end_date")
	if !hasStart && !hasEnd {
		return nil
	}
	var before, after int
	for _, row := range rows {
		t, ok := row.Time("date")
		if !ok {
			continue
		}
		day := t.UTC().Truncate(24 * time.Hour)
		if hasStart && day.Before(start) {
			before++
		}
		if hasEnd && day.After(end) {
			after++
		}
	}
	var out []string
	if before > 0 {
		out = append(out, fmt.Sprintf("%d rows dated before start_date %s", before, start.Format(time.DateOnly)))
	}
	if after > 0 {
		out = append(out, fmt.Sprintf("%d rows dated after end_date %s", after, end.Format(time.DateOnly)))
	}
	return out
}

func boundOf(params map[string]any, key string) (time.Time, bool) {
	rec := schema.Record(params)
	d, ok := rec.Date(key)
	if !ok || d.IsZero() {
		return time.Time{}, false
	}
	return d.Time.UTC().Truncate(24 * time.Hour), true
}
