// Package envelope is the uniform result container returned for every call.
package envelope

import (
	"fmt"
	"sync"

	"fincore/internal/fetcher"
	"fincore/internal/schema"
)

// Warning categories.
const (
	CategoryDeprecation    = "DeprecationWarning"
	CategoryPartialFailure = "PartialFailure"
	CategoryFallback       = "ProviderFallback"
	CategoryDataQuality    = "DataQuality"
	CategoryPreferences    = "PreferencesWarning"
	CategoryParameters     = "ParameterWarning"
	CategoryBufferOverrun  = "buffer_overrun"
	CategoryChart          = "ChartWarning"
)

type Warning struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	return w.Category + ": " + w.Message
}

// Envelope holds results in the shape the fetcher declared: a list of rows,
// a single row, or a stream handle.
type Envelope struct {
	Results  any
	Provider string
	Warnings []Warning
	Chart    any
	Extra    map[string]any

	shape fetcher.Shape
	data  schema.Schema
	mu    sync.Mutex
}

// New wraps a fetch output. data is the provider data schema used when
// serializing rows.
func New(provider string, out fetcher.Output, data schema.Schema) *Envelope {
	env := &Envelope{
		Results:  out.Result,
		Provider: provider,
		shape:    out.Shape,
		data:     data,
	}
	if len(out.Metadata) > 0 {
		env.SetExtra("results_metadata", out.Metadata)
	}
	return env
}

func (e *Envelope) Shape() fetcher.Shape { return e.shape }

func (e *Envelope) DataSchema() schema.Schema { return e.data }

// Warn appends a warning. Safe for concurrent use.
func (e *Envelope) Warn(category, format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Warnings = append(e.Warnings, Warning{Category: category, Message: fmt.Sprintf(format, args...)})
}

func (e *Envelope) AddWarnings(ws ...Warning) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Warnings = append(e.Warnings, ws...)
}

func (e *Envelope) SetExtra(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
}

// Rows returns list results. A single row is returned as a one-element slice.
func (e *Envelope) Rows() []schema.Record {
	switch v := e.Results.(type) {
	case []schema.Record:
		return v
	case schema.Record:
		return []schema.Record{v}
	}
	return nil
}

// Stream returns the stream handle for streaming results.
func (e *Envelope) Stream() (fetcher.Stream, bool) {
	s, ok := e.Results.(fetcher.Stream)
	return s, ok
}

// HasCategory reports whether any warning of category is present.
func (e *Envelope) HasCategory(category string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range e.Warnings {
		if w.Category == category {
			return true
		}
	}
	return false
}
