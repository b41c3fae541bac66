package fetcher

import (
	"context"

	"fincore/internal/schema"
)

type cacheKey struct{}

// WithCache marks whether adapters may serve this call from the response
// cache.
func WithCache(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, cacheKey{}, enabled)
}

func CacheEnabled(ctx context.Context) bool {
	enabled, _ := ctx.Value(cacheKey{}).(bool)
	return enabled
}

type validatorKey struct{}

// RowValidator checks one streamed row against the provider data schema.
type RowValidator func(schema.Record) (schema.Record, error)

// WithRowValidator hands streaming adapters the validator for their rows.
func WithRowValidator(ctx context.Context, v RowValidator) context.Context {
	return context.WithValue(ctx, validatorKey{}, v)
}

// RowValidatorFrom returns the validator set on ctx, or a pass-through.
func RowValidatorFrom(ctx context.Context) RowValidator {
	if v, ok := ctx.Value(validatorKey{}).(RowValidator); ok && v != nil {
		return v
	}
	return func(r schema.Record) (schema.Record, error) { return r, nil }
}
