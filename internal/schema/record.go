package schema

import (
	"strings"
	"time"

	"fincore/internal/pkg/convert"
	"fincore/internal/pkg/maputil"
)

// Record is one row or one query after coercion. Keys are field names.
type Record map[string]any

func (r Record) String(key string) string {
	return maputil.String(r, key)
}

// Strings splits a multiple-items field back into its values.
func (r Record) Strings(key string) []string {
	return maputil.StringSlice(r, key)
}

func (r Record) Int(key string) (int64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	return convert.AsInt64(v)
}

func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	return convert.AsFloat64(v)
}

func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

func (r Record) Date(key string) (Date, bool) {
	switch v := r[key].(type) {
	case Date:
		return v, true
	case time.Time:
		return DateOf(v), true
	case string:
		d, err := ParseDate(v)
		return d, err == nil
	}
	return Date{}, false
}

func (r Record) Time(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		return v, true
	case Date:
		return v.Time, true
	case string:
		t, err := parseDateTime(v)
		return t, err == nil
	}
	return time.Time{}, false
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Rename returns a copy with keys mapped through names. Keys without an
// entry are kept.
func (r Record) Rename(names map[string]string) Record {
	if len(names) == 0 {
		return r.Clone()
	}
	out := make(Record, len(r))
	for k, v := range r {
		if to, ok := names[k]; ok && to != "" {
			out[to] = v
			continue
		}
		out[k] = v
	}
	return out
}

// ToWire renames field names to the provider's wire names.
func (s Schema) ToWire(r Record) Record {
	return r.Rename(s.Aliases)
}

// FromWire renames the provider's wire names back to field names.
func (s Schema) FromWire(m map[string]any) Record {
	if len(s.Aliases) == 0 {
		return Record(m).Clone()
	}
	inverse := make(map[string]string, len(s.Aliases))
	for field, wire := range s.Aliases {
		inverse[wire] = field
	}
	return Record(m).Rename(inverse)
}

// JoinItems is the wire form of a multiple-items value.
func JoinItems(items []string) string {
	return strings.Join(items, ",")
}

// Compact drops nil values and empty strings, which vendors use for "not
// reported".
func (r Record) Compact() Record {
	for k, v := range r {
		switch t := v.(type) {
		case nil:
			delete(r, k)
		case string:
			if strings.TrimSpace(t) == "" {
				delete(r, k)
			}
		}
	}
	return r
}
