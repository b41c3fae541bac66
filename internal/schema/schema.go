package schema

import (
	"fmt"
	"sort"
)

// Schema is an ordered set of fields plus the wire aliases a provider uses
// for some of them.
type Schema struct {
	Name    string            `json:"name"`
	Fields  []Field           `json:"fields"`
	Aliases map[string]string `json:"aliases,omitempty"`
}

func New(name string, fields ...Field) Schema {
	return Schema{Name: name, Fields: fields}
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Schema) Names() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Check reports duplicate names and malformed field declarations.
func (s Schema) Check() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if err := f.check(); err != nil {
			return fmt.Errorf("schema %s: %w", s.Name, err)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field %s", s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Unknown lists keys of params that the schema does not declare, sorted.
func (s Schema) Unknown(params map[string]any) []string {
	var out []string
	for key := range params {
		if _, ok := s.Field(key); !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Standard is a provider-independent dataset definition.
type Standard struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	Description string `json:"description"`
	Query       Schema `json:"query"`
	Data        Schema `json:"data"`
}

func (s Standard) Check() error {
	if s.Name == "" {
		return fmt.Errorf("standard model without name")
	}
	if err := s.Query.Check(); err != nil {
		return fmt.Errorf("%s query: %w", s.Name, err)
	}
	if err := s.Data.Check(); err != nil {
		return fmt.Errorf("%s data: %w", s.Name, err)
	}
	return nil
}
