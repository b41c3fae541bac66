package httpclient

import (
	"github.com/tidwall/gjson"

	"fincore/internal/schema"
)

// Records converts a JSON array of objects, or a single object, into compacted
// rows. Non-object elements are skipped.
func Records(res gjson.Result) []schema.Record {
	if res.IsObject() {
		return []schema.Record{Record(res)}
	}
	if !res.IsArray() {
		return nil
	}
	items := res.Array()
	out := make([]schema.Record, 0, len(items))
	for _, item := range items {
		if item.IsObject() {
			out = append(out, Record(item))
		}
	}
	return out
}

// Record converts one JSON object into a compacted row.
func Record(res gjson.Result) schema.Record {
	m, ok := res.Value().(map[string]any)
	if !ok {
		return schema.Record{}
	}
	return schema.Record(m).Compact()
}
