// Package schema describes query and result fields as data, coerces loosely
// typed input against them and renders them as JSON Schema.
package schema

import (
	"fmt"
	"strings"
)

type Type string

const (
	TypeString   Type = "string"
	TypeInteger  Type = "integer"
	TypeNumber   Type = "number"
	TypeBoolean  Type = "boolean"
	TypeDate     Type = "date"
	TypeDateTime Type = "datetime"
	TypeObject   Type = "object"
	TypeArray    Type = "array"
)

func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeDate, TypeDateTime, TypeObject, TypeArray:
		return true
	}
	return false
}

// Validator names a normalizing check applied during coercion.
type Validator string

const (
	UpperCase   Validator = "upper_case"
	LowerCase   Validator = "lower_case"
	Positive    Validator = "positive"
	NonNegative Validator = "non_negative"
	Interval    Validator = "interval"
	ISODate     Validator = "iso_date"
)

type Field struct {
	Name        string `json:"name" yaml:"name"`
	Type        Type   `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Choices     []any  `json:"choices,omitempty" yaml:"choices,omitempty"`
	// Multiple marks a string field that accepts a list, carried on the wire
	// as one comma-separated string.
	Multiple       bool        `json:"multiple_items_allowed,omitempty" yaml:"multiple_items_allowed,omitempty"`
	Unit           string      `json:"unit,omitempty" yaml:"unit,omitempty"`
	ExcludeFromAPI bool        `json:"exclude_from_api,omitempty" yaml:"exclude_from_api,omitempty"`
	Items          Type        `json:"items,omitempty" yaml:"items,omitempty"`
	Fields         []Field     `json:"fields,omitempty" yaml:"fields,omitempty"`
	Validators     []Validator `json:"validators,omitempty" yaml:"validators,omitempty"`
}

func (f Field) check() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("field name is empty")
	}
	if !f.Type.Valid() {
		return fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
	}
	if f.Multiple && f.Type != TypeString {
		return fmt.Errorf("field %s: multiple items require a string field", f.Name)
	}
	if f.Type == TypeArray && f.Items == "" && len(f.Fields) == 0 {
		return fmt.Errorf("field %s: array needs items or fields", f.Name)
	}
	for _, sub := range f.Fields {
		if err := sub.check(); err != nil {
			return fmt.Errorf("%s.%w", f.Name, err)
		}
	}
	return nil
}

func (f Field) hasValidator(v Validator) bool {
	for _, item := range f.Validators {
		if item == v {
			return true
		}
	}
	return false
}

// FieldError reports a value that does not satisfy its field.
type FieldError struct {
	Field string
	Value any
	Msg   string
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Msg, e.Value)
}

func fieldErr(name string, v any, format string, args ...any) *FieldError {
	return &FieldError{Field: name, Value: v, Msg: fmt.Sprintf(format, args...)}
}

func nestErr(parent string, err error) error {
	if fe, ok := err.(*FieldError); ok {
		out := *fe
		out.Field = parent + "." + fe.Field
		return &out
	}
	return fmt.Errorf("%s: %w", parent, err)
}
