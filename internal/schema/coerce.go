package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fincore/internal/pkg/convert"
	"fincore/internal/pkg/interval"
	"fincore/internal/pkg/maputil"
)

type CoerceOptions struct {
	// KeepUnknown keeps keys the schema does not declare.
	KeepUnknown bool
	// ApplyDefaults fills absent fields from their declared default.
	ApplyDefaults bool
	// SkipRequired disables the required-field check.
	SkipRequired bool
}

// Coerce converts in to the declared field types. Coercion is idempotent:
// feeding the output back in yields the same record.
func (s Schema) Coerce(in map[string]any, opts CoerceOptions) (Record, error) {
	out := make(Record, len(s.Fields))
	for _, f := range s.Fields {
		raw, present := in[f.Name]
		if !present || raw == nil {
			if opts.ApplyDefaults && f.Default != nil {
				raw, present = f.Default, true
			}
		}
		if !present || raw == nil {
			if f.Required && !opts.SkipRequired {
				return nil, fieldErr(f.Name, nil, "required field is missing")
			}
			if present {
				out[f.Name] = nil
			}
			continue
		}
		v, err := coerceValue(f, raw, opts)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	if opts.KeepUnknown {
		for k, v := range in {
			if _, ok := out[k]; ok {
				continue
			}
			if _, declared := s.Field(k); declared {
				continue
			}
			out[k] = v
		}
	}
	return out, nil
}

func coerceValue(f Field, raw any, opts CoerceOptions) (any, error) {
	if f.Multiple {
		return coerceMultiple(f, raw)
	}
	var (
		v   any
		err error
	)
	switch f.Type {
	case TypeString:
		v, err = coerceString(f, raw)
	case TypeInteger:
		v, err = coerceInteger(f, raw)
	case TypeNumber:
		v, err = coerceNumber(f, raw)
	case TypeBoolean:
		v, err = coerceBool(f, raw)
	case TypeDate:
		v, err = coerceDate(f, raw)
	case TypeDateTime:
		v, err = coerceDateTime(f, raw)
	case TypeObject:
		v, err = coerceObject(f, raw, opts)
	case TypeArray:
		v, err = coerceArray(f, raw, opts)
	default:
		return nil, fieldErr(f.Name, raw, "unsupported type %s", f.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := checkChoices(f, v); err != nil {
		return nil, err
	}
	return v, nil
}

func coerceMultiple(f Field, raw any) (any, error) {
	items := maputil.Split(raw)
	if len(items) == 0 {
		return nil, fieldErr(f.Name, raw, "expected at least one value")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		v, err := coerceString(f, item)
		if err != nil {
			return nil, err
		}
		if err := checkChoices(f, v); err != nil {
			return nil, err
		}
		out = append(out, v.(string))
	}
	return JoinItems(out), nil
}

func normalizeString(f Field, s string) string {
	s = strings.TrimSpace(s)
	if f.hasValidator(UpperCase) {
		s = strings.ToUpper(s)
	}
	if f.hasValidator(LowerCase) {
		s = strings.ToLower(s)
	}
	return s
}

func coerceString(f Field, raw any) (any, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case int, int64, float64, bool:
		s = fmt.Sprint(v)
	case []string, []any:
		return nil, fieldErr(f.Name, raw, "multiple values are not allowed")
	default:
		return nil, fieldErr(f.Name, raw, "expected string")
	}
	s = normalizeString(f, s)
	if f.hasValidator(ISODate) {
		d, err := ParseDate(s)
		if err != nil {
			return nil, fieldErr(f.Name, raw, "expected date YYYY-MM-DD")
		}
		s = d.String()
	}
	if f.hasValidator(Interval) {
		norm, ok := interval.Normalize(s)
		if !ok {
			return nil, fieldErr(f.Name, raw, "invalid interval")
		}
		s = norm
	}
	return s, nil
}

func coerceInteger(f Field, raw any) (any, error) {
	if _, isBool := raw.(bool); isBool {
		return nil, fieldErr(f.Name, raw, "expected integer")
	}
	n, ok := convert.AsInt64(raw)
	if !ok {
		return nil, fieldErr(f.Name, raw, "expected integer")
	}
	if err := checkSign(f, float64(n), raw); err != nil {
		return nil, err
	}
	return n, nil
}

func coerceNumber(f Field, raw any) (any, error) {
	if _, isBool := raw.(bool); isBool {
		return nil, fieldErr(f.Name, raw, "expected number")
	}
	n, ok := convert.AsFloat64(raw)
	if !ok {
		return nil, fieldErr(f.Name, raw, "expected number")
	}
	if err := checkSign(f, n, raw); err != nil {
		return nil, err
	}
	return n, nil
}

func checkSign(f Field, n float64, raw any) error {
	if f.hasValidator(Positive) && n <= 0 {
		return fieldErr(f.Name, raw, "must be positive")
	}
	if f.hasValidator(NonNegative) && n < 0 {
		return fieldErr(f.Name, raw, "must not be negative")
	}
	return nil
}

func coerceBool(f Field, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fieldErr(f.Name, raw, "expected boolean")
		}
		return b, nil
	default:
		return nil, fieldErr(f.Name, raw, "expected boolean")
	}
}

func coerceDate(f Field, raw any) (any, error) {
	switch v := raw.(type) {
	case Date:
		return v, nil
	case time.Time:
		return DateOf(v), nil
	case string:
		d, err := ParseDate(v)
		if err != nil {
			return nil, fieldErr(f.Name, raw, "expected date YYYY-MM-DD")
		}
		return d, nil
	default:
		if n, ok := convert.AsInt64(raw); ok {
			return DateOf(fromEpoch(n)), nil
		}
		return nil, fieldErr(f.Name, raw, "expected date YYYY-MM-DD")
	}
}

func coerceDateTime(f Field, raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case Date:
		return v.Time, nil
	case string:
		t, err := parseDateTime(v)
		if err != nil {
			return nil, fieldErr(f.Name, raw, "expected ISO-8601 datetime")
		}
		return t, nil
	default:
		if n, ok := convert.AsInt64(raw); ok {
			return fromEpoch(n), nil
		}
		return nil, fieldErr(f.Name, raw, "expected ISO-8601 datetime")
	}
}

func asMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case Record:
		return v, true
	case map[string]any:
		return v, true
	}
	return nil, false
}

func coerceObject(f Field, raw any, opts CoerceOptions) (any, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, fieldErr(f.Name, raw, "expected object")
	}
	if len(f.Fields) == 0 {
		return Record(m).Clone(), nil
	}
	sub := Schema{Name: f.Name, Fields: f.Fields}
	rec, err := sub.Coerce(m, opts)
	if err != nil {
		return nil, nestErr(f.Name, err)
	}
	return rec, nil
}

func coerceArray(f Field, raw any, opts CoerceOptions) (any, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []Record:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	case []map[string]any:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	case []string:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	case []float64:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	default:
		return nil, fieldErr(f.Name, raw, "expected array")
	}
	elem := Field{Name: f.Name, Type: f.Items, Fields: f.Fields, Validators: f.Validators}
	if len(f.Fields) > 0 {
		elem.Type = TypeObject
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		v, err := coerceValue(elem, item, opts)
		if err != nil {
			return nil, nestErr(fmt.Sprintf("%s[%d]", f.Name, i), unwrapElem(err, f.Name))
		}
		out = append(out, v)
	}
	return out, nil
}

// unwrapElem strips the element's own name so nested errors read
// "items[2].close" rather than "items[2].items.close".
func unwrapElem(err error, name string) error {
	fe, ok := err.(*FieldError)
	if !ok {
		return err
	}
	out := *fe
	out.Field = strings.TrimPrefix(strings.TrimPrefix(fe.Field, name), ".")
	if out.Field == "" {
		return &FieldError{Field: "value", Value: fe.Value, Msg: fe.Msg}
	}
	return &out
}

func checkChoices(f Field, v any) error {
	if len(f.Choices) == 0 {
		return nil
	}
	got := fmt.Sprint(v)
	for _, c := range f.Choices {
		if fmt.Sprint(c) == got {
			return nil
		}
	}
	return fieldErr(f.Name, v, "must be one of %v", f.Choices)
}
