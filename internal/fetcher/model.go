package fetcher

import (
	"context"
	"errors"
	"fmt"

	"fincore/internal/errs"
	"fincore/internal/schema"
)

// Model is a fetcher bound to its composed provider schemas. Models are built
// once by the registry and shared read-only.
type Model struct {
	Fetcher  Fetcher
	Info     Info
	Standard schema.Standard
	Query    schema.Schema
	Data     schema.Schema
	// CheckCredentials is the provider's optional validity hook.
	CheckCredentials func(Credentials) bool

	data *schema.Compiled
}

func NewModel(std schema.Standard, f Fetcher) (*Model, error) {
	info := f.Info()
	if info.Standard != std.Name {
		return nil, fmt.Errorf("fetcher %s/%s bound to standard %s", info.Provider, info.Standard, std.Name)
	}
	if info.Shape == "" {
		info.Shape = ShapeList
	}
	query, err := schema.Compose(std.Query, info.Query)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", info.Provider, err)
	}
	data, err := schema.Compose(std.Data, info.Data)
	if err != nil {
		return nil, fmt.Errorf("%s data: %w", info.Provider, err)
	}
	compiled, err := data.Compile()
	if err != nil {
		return nil, fmt.Errorf("%s data: %w", info.Provider, err)
	}
	return &Model{
		Fetcher:  f,
		Info:     info,
		Standard: std,
		Query:    query,
		Data:     data,
		data:     compiled,
	}, nil
}

// TransformQuery coerces params against the provider query schema, applies
// defaults and validators, then lets the adapter derive its own parameters.
// Failures are validation errors naming the standard.
func (m *Model) TransformQuery(params map[string]any) (Query, error) {
	rec, err := m.Query.Coerce(params, schema.CoerceOptions{ApplyDefaults: true})
	if err != nil {
		return nil, m.validationErr(err)
	}
	q, err := m.Fetcher.TransformQuery(rec)
	if err != nil {
		return nil, m.validationErr(err)
	}
	return q, nil
}

func (m *Model) validationErr(err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.WithStandard(m.Info.Standard).WithProvider(m.Info.Provider)
	}
	out := errs.Validation("invalid query for %s", m.Info.Standard)
	out.Standard = m.Info.Standard
	out.Provider = m.Info.Provider
	out.Err = err
	var fe *schema.FieldError
	if errors.As(err, &fe) {
		out.Field = fe.Field
	}
	return out
}

// Output is the result of a complete fetch.
type Output struct {
	Result   any
	Shape    Shape
	Metadata map[string]any
}

// Fetch runs all three stages. Rows are validated against the provider data
// schema; a mismatch is a permanent error attributed to the provider.
func (m *Model) Fetch(ctx context.Context, params map[string]any, creds Credentials) (Output, error) {
	q, err := m.TransformQuery(params)
	if err != nil {
		return Output{}, err
	}
	return m.Run(ctx, q, creds)
}

// Run executes extract and transform for an already transformed query.
func (m *Model) Run(ctx context.Context, q Query, creds Credentials) (Output, error) {
	if !m.CredentialsValid(creds) {
		return Output{}, m.Unauthorized(creds)
	}
	if m.Info.Shape == ShapeStream {
		ctx = WithRowValidator(ctx, m.ValidateRow)
	}
	raw, err := m.Fetcher.ExtractData(ctx, q, creds)
	if err != nil {
		return Output{}, m.tag(errs.FromContext(err))
	}
	data, err := m.Fetcher.TransformData(q, raw)
	if err != nil {
		return Output{}, m.tag(err)
	}
	return m.shape(data)
}

// CredentialsValid reports whether creds unlock this fetcher.
func (m *Model) CredentialsValid(creds Credentials) bool {
	if !m.Info.RequiresCredentials {
		return true
	}
	if creds.Has(m.Info.CredentialNames...) {
		return true
	}
	return m.CheckCredentials != nil && m.CheckCredentials(creds)
}

// Unauthorized builds the error returned when creds are insufficient.
func (m *Model) Unauthorized(creds Credentials) error {
	return errs.Unauthorized(m.Info.Provider, "missing credentials %v", creds.Missing(m.Info.CredentialNames...)).
		WithStandard(m.Info.Standard)
}

func (m *Model) tag(err error) error {
	if e, ok := errs.As(err); ok {
		return e.WithProvider(m.Info.Provider).WithStandard(m.Info.Standard)
	}
	return &errs.Error{Kind: errs.KindPermanent, Provider: m.Info.Provider, Standard: m.Info.Standard, Err: err}
}

func (m *Model) shape(data any) (Output, error) {
	out := Output{Shape: m.Info.Shape}
	if ann, ok := data.(AnnotatedResult); ok {
		out.Metadata = ann.Metadata
		data = ann.Result
	}
	switch v := data.(type) {
	case Stream:
		if m.Info.Shape != ShapeStream {
			return Output{}, m.violation("", fmt.Errorf("stream returned for %s result", m.Info.Shape))
		}
		out.Result = v
		return out, nil
	case schema.Record:
		row, err := m.ValidateRow(v)
		if err != nil {
			return Output{}, err
		}
		if m.Info.Shape == ShapeList {
			out.Result = []schema.Record{row}
		} else {
			out.Result = row
		}
		return out, nil
	case []schema.Record:
		if m.Info.Shape == ShapeObject {
			if len(v) != 1 {
				return Output{}, m.violation("", fmt.Errorf("object result with %d rows", len(v)))
			}
			row, err := m.ValidateRow(v[0])
			if err != nil {
				return Output{}, err
			}
			out.Result = row
			return out, nil
		}
		rows := make([]schema.Record, 0, len(v))
		for _, r := range v {
			row, err := m.ValidateRow(r)
			if err != nil {
				return Output{}, err
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			return Output{}, errs.EmptyData("no rows returned").WithProvider(m.Info.Provider).WithStandard(m.Info.Standard)
		}
		out.Result = rows
		return out, nil
	case nil:
		return Output{}, errs.EmptyData("no data returned").WithProvider(m.Info.Provider).WithStandard(m.Info.Standard)
	default:
		return Output{}, m.violation("", fmt.Errorf("unsupported result type %T", data))
	}
}

// ValidateRow maps wire names, coerces and validates one row. Undeclared
// fields are kept; the envelope decides whether to serialize them.
func (m *Model) ValidateRow(r schema.Record) (schema.Record, error) {
	row, err := m.Data.Coerce(m.Data.FromWire(r), schema.CoerceOptions{KeepUnknown: true})
	if err != nil {
		return nil, m.violation(fieldOf(err), err)
	}
	if err := m.data.Validate(row); err != nil {
		return nil, m.violation(fieldOf(err), err)
	}
	return row, nil
}

func (m *Model) violation(field string, err error) error {
	if field == "" {
		field = m.Data.Name
	}
	e := errs.SchemaViolation(m.Info.Provider, field, err)
	e.Standard = m.Info.Standard
	return e
}

func fieldOf(err error) string {
	var fe *schema.FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}
