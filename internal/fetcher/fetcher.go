// Package fetcher defines the three-stage contract every provider adapter
// implements and the composition that runs it.
package fetcher

import (
	"context"
	"iter"

	"fincore/internal/schema"
)

// Shape is the declared form of a fetcher's result.
type Shape string

const (
	ShapeList   Shape = "list"
	ShapeObject Shape = "object"
	ShapeStream Shape = "stream"
)

// Info describes a fetcher. It binds one standard model to one provider.
type Info struct {
	Standard    string
	Provider    string
	Description string
	// Query and Data extend the standard's schemas for this provider.
	Query schema.Extension
	Data  schema.Extension
	Shape Shape
	// RequiresCredentials gates the fetcher on CredentialNames being present.
	RequiresCredentials bool
	CredentialNames     []string
	// Deprecation, when set, is attached to every envelope as a warning.
	Deprecation string
}

// Query is a validated, normalized query keyed by field name.
type Query = schema.Record

// Fetcher is implemented by provider adapters.
//
// TransformQuery and TransformData must be pure. ExtractData is the only stage
// allowed to perform I/O; it must observe ctx and must not mutate q.
type Fetcher interface {
	Info() Info
	TransformQuery(params schema.Record) (Query, error)
	ExtractData(ctx context.Context, q Query, creds Credentials) (any, error)
	TransformData(q Query, raw any) (any, error)
}

// AnnotatedResult lets TransformData attach provider metadata to its rows.
type AnnotatedResult struct {
	Result   any
	Metadata map[string]any
}

// Stream is the handle returned by streaming fetchers.
type Stream interface {
	ID() string
	Connect(ctx context.Context) error
	Disconnect() error
	Subscribe(symbols ...string) error
	Unsubscribe(symbols ...string) error
	IsRunning() bool
	Messages() iter.Seq[schema.Record]
}

// Base supplies a pass-through TransformQuery. Adapters embed it when the
// schema-driven defaults are all they need.
type Base struct{}

func (Base) TransformQuery(params schema.Record) (Query, error) {
	return params, nil
}
