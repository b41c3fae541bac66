package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fincore/internal/envelope"
	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/schema"
)

type itemResult struct {
	rows     []schema.Record
	meta     map[string]any
	note     *fallbackNote
	err      error
	provider string
}

// fanOut issues one fetch per item of field. Unauthorized, validation and
// schema failures abort the whole call. Any other per-item failure becomes
// a PartialFailure warning, and the call fails only when every item does.
func (x *Executor) fanOut(ctx context.Context, req Request, std schema.Standard, model *fetcher.Model, field string, items []string) (*envelope.Envelope, string, error) {
	prov := model.Info.Provider
	if model.Info.Shape != fetcher.ShapeList {
		e := errs.Validation("%s accepts a single %s for %s", prov, field, std.Name)
		e.Standard, e.Provider, e.Field = std.Name, prov, field
		return nil, prov, e
	}
	x.metrics.fannedOut(std.Name, len(items))
	items = normalizeItems(model.Query, field, items)

	limit := req.Preferences.MaxFanOut
	if limit <= 0 {
		limit = 1
	}
	results := make([]itemResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			params := make(map[string]any, len(req.Params))
			for k, v := range req.Params {
				params[k] = v
			}
			params[field] = item
			out, served, note, err := x.fetchOne(gctx, req, std, model, params)
			if err != nil {
				if errs.Fatal(err) {
					return err
				}
				results[i] = itemResult{err: err, provider: served}
				return nil
			}
			results[i] = itemResult{rows: rowsOf(out.Result), meta: out.Metadata, note: note, provider: served}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, prov, err
	}
	if err := callerCanceled(ctx); err != nil {
		return nil, prov, err
	}

	var (
		rows     []schema.Record
		failures []error
		warnings []envelope.Warning
		metadata = make(map[string]any)
	)
	for i, res := range results {
		if res.err != nil {
			failures = append(failures, res.err)
			warnings = append(warnings, envelope.Warning{
				Category: envelope.CategoryPartialFailure,
				Message:  fmt.Sprintf("%s %s: %v", field, items[i], res.err),
			})
			logger.Warnf("executor: %s %s=%s failed: %v", std.Name, field, items[i], res.err)
			continue
		}
		for _, row := range res.rows {
			if _, ok := row[field]; !ok || row[field] == nil {
				row[field] = items[i]
			}
			rows = append(rows, row)
		}
		if res.note != nil {
			warnings = append(warnings, envelope.Warning{
				Category: envelope.CategoryFallback,
				Message:  fmt.Sprintf("%s %s: %s", field, items[i], res.note),
			})
		}
		if len(res.meta) > 0 {
			metadata[items[i]] = res.meta
		}
	}
	if len(rows) == 0 {
		return nil, prov, errs.Aggregate(std.Name, prov, failures)
	}

	out := fetcher.Output{Result: rows, Shape: fetcher.ShapeList}
	if len(metadata) > 0 {
		out.Metadata = metadata
	}
	env := envelope.New(prov, out, model.Data)
	env.AddWarnings(warnings...)
	return env, prov, nil
}

func rowsOf(result any) []schema.Record {
	switch v := result.(type) {
	case []schema.Record:
		return v
	case schema.Record:
		return []schema.Record{v}
	}
	return nil
}

// normalizeItems runs each item through the field's validators so warnings
// name the value the provider saw. Items that fail keep their raw form and
// fail again in their own fetch.
func normalizeItems(q schema.Schema, field string, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item
		rec, err := q.Coerce(map[string]any{field: item}, schema.CoerceOptions{SkipRequired: true})
		if err == nil {
			if v := rec.String(field); v != "" {
				out[i] = v
			}
		}
	}
	return out
}
