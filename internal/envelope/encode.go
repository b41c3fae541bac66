package envelope

import (
	"fincore/internal/fetcher"
	"fincore/internal/pkg/jsonutil"
	"fincore/internal/schema"
)

type Options struct {
	// KeepUnknown serializes provider fields the data schema does not declare.
	KeepUnknown bool
}

// describer is implemented by stream handles that can render their state.
type describer interface {
	Describe() map[string]any
}

// Wire returns the JSON-ready form:
// {results, provider, warnings, chart, extra}, with absent parts as null.
func (e *Envelope) Wire(opts Options) map[string]any {
	e.mu.Lock()
	warnings := append([]Warning(nil), e.Warnings...)
	extra := e.Extra
	e.mu.Unlock()

	out := map[string]any{
		"results":  e.results(opts),
		"provider": e.Provider,
		"warnings": nil,
		"chart":    e.Chart,
		"extra":    nil,
	}
	if len(warnings) > 0 {
		out["warnings"] = warnings
	}
	if len(extra) > 0 {
		out["extra"] = extra
	}
	return out
}

func (e *Envelope) results(opts Options) any {
	switch v := e.Results.(type) {
	case nil:
		return nil
	case []schema.Record:
		rows := make([]any, 0, len(v))
		for _, r := range v {
			rows = append(rows, filterRecord(r, e.data.Fields, opts))
		}
		return rows
	case schema.Record:
		return filterRecord(v, e.data.Fields, opts)
	case fetcher.Stream:
		if d, ok := v.(describer); ok {
			return d.Describe()
		}
		return map[string]any{"id": v.ID(), "running": v.IsRunning()}
	default:
		return v
	}
}

// Encode serializes the envelope.
func (e *Envelope) Encode(opts Options) ([]byte, error) {
	return jsonutil.Marshal(e.Wire(opts))
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	return e.Encode(Options{})
}

// filterRecord drops exclude_from_api fields at every depth and, unless
// opts.KeepUnknown, undeclared fields too.
func filterRecord(r map[string]any, fields []schema.Field, opts Options) map[string]any {
	if len(fields) == 0 {
		return r
	}
	out := make(map[string]any, len(r))
	for key, val := range r {
		f, declared := findField(fields, key)
		if !declared {
			if opts.KeepUnknown {
				out[key] = val
			}
			continue
		}
		if f.ExcludeFromAPI {
			continue
		}
		out[key] = filterValue(val, f, opts)
	}
	return out
}

func filterValue(val any, f schema.Field, opts Options) any {
	if len(f.Fields) == 0 {
		return val
	}
	switch v := val.(type) {
	case schema.Record:
		return filterRecord(v, f.Fields, opts)
	case map[string]any:
		return filterRecord(v, f.Fields, opts)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = filterValue(item, f, opts)
		}
		return out
	case []schema.Record:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = filterRecord(item, f.Fields, opts)
		}
		return out
	default:
		return val
	}
}

func findField(fields []schema.Field, name string) (schema.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return schema.Field{}, false
}
