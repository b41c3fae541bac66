package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"fincore/internal/pkg/jsonutil"
)

// JSONSchema renders s as a draft 2020-12 object schema. Undeclared keys are
// allowed; they are stripped at serialization time, not rejected.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
	if s.Name != "" {
		doc["title"] = s.Name
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func fieldSchema(f Field) map[string]any {
	out := typeSchema(f.Type, f.Items, f.Fields)
	if !f.Required {
		if t, ok := out["type"].(string); ok {
			out["type"] = []any{t, "null"}
		}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if f.Default != nil {
		out["default"] = jsonValue(f.Default)
	}
	if len(f.Choices) > 0 && !f.Multiple {
		enum := make([]any, 0, len(f.Choices)+1)
		for _, c := range f.Choices {
			enum = append(enum, jsonValue(c))
		}
		if !f.Required {
			enum = append(enum, nil)
		}
		out["enum"] = enum
	}
	if f.Multiple {
		out["x-multiple-items-allowed"] = true
	}
	if f.Unit != "" {
		out["x-unit"] = f.Unit
	}
	if f.hasValidator(Positive) {
		out["exclusiveMinimum"] = 0
	}
	if f.hasValidator(NonNegative) {
		out["minimum"] = 0
	}
	return out
}

func typeSchema(t, items Type, fields []Field) map[string]any {
	switch t {
	case TypeDate:
		return map[string]any{"type": "string", "format": "date"}
	case TypeDateTime:
		return map[string]any{"type": "string", "format": "date-time"}
	case TypeObject:
		out := map[string]any{"type": "object"}
		if len(fields) > 0 {
			sub := Schema{Fields: fields}.JSONSchema()
			out["properties"] = sub["properties"]
			if req, ok := sub["required"]; ok {
				out["required"] = req
			}
		}
		return out
	case TypeArray:
		var elem map[string]any
		if len(fields) > 0 {
			elem = typeSchema(TypeObject, "", fields)
		} else {
			elem = typeSchema(items, "", nil)
		}
		return map[string]any{"type": "array", "items": elem}
	default:
		return map[string]any{"type": string(t)}
	}
}

// jsonValue turns a Go default into its JSON form.
func jsonValue(v any) any {
	if d, ok := v.(Date); ok {
		return d.String()
	}
	return v
}

// Compiled is a compiled JSON Schema for a Schema.
type Compiled struct {
	name     string
	compiled *jsonschema.Schema
}

func (s Schema) Compile() (*Compiled, error) {
	raw, err := jsonutil.Marshal(s.JSONSchema())
	if err != nil {
		return nil, err
	}
	url := "mem://" + strings.ReplaceAll(s.Name, " ", "_") + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", s.Name, err)
	}
	return &Compiled{name: s.Name, compiled: compiled}, nil
}

// Validate checks a coerced record. Failures are reported as *FieldError
// naming the deepest offending field.
func (v *Compiled) Validate(rec Record) error {
	if v == nil || v.compiled == nil {
		return nil
	}
	doc, err := normalize(rec)
	if err != nil {
		return err
	}
	err = v.compiled.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	leaf := deepest(ve)
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	field = strings.ReplaceAll(field, "/", ".")
	if field == "" {
		field = v.name
	}
	return &FieldError{Field: field, Msg: leaf.Message}
}

func deepest(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// normalize round-trips through JSON so the validator sees plain JSON values.
func normalize(rec Record) (any, error) {
	raw, err := jsonutil.Marshal(rec)
	if err != nil {
		return nil, err
	}
	dec := jsonutil.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
