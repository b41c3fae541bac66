package schema

import (
	"fmt"
	"sort"
)

// Extension is what a provider adds on top of a standard schema.
type Extension struct {
	// Fields are provider-only extras. They may not reuse a standard name.
	Fields []Field
	// Overrides redefine standard fields. Type must stay the same.
	Overrides []Field
	// MultipleItems lists fields the provider accepts as comma-joined lists.
	MultipleItems []string
	// Aliases maps field names to the provider's wire names.
	Aliases map[string]string
}

// Compose builds the provider schema: the standard fields (with overrides
// applied) followed by the extras. It fails when the result would not be a
// structural superset of std.
func Compose(std Schema, ext Extension) (Schema, error) {
	out := Schema{Name: std.Name, Fields: make([]Field, 0, len(std.Fields)+len(ext.Fields))}

	overrides := make(map[string]Field, len(ext.Overrides))
	for _, o := range ext.Overrides {
		base, ok := std.Field(o.Name)
		if !ok {
			return Schema{}, fmt.Errorf("%s: override %s does not name a standard field", std.Name, o.Name)
		}
		if o.Type != "" && o.Type != base.Type {
			return Schema{}, fmt.Errorf("%s: override %s changes type %s -> %s", std.Name, o.Name, base.Type, o.Type)
		}
		overrides[o.Name] = o
	}

	multiple := make(map[string]bool, len(ext.MultipleItems))
	for _, name := range ext.MultipleItems {
		multiple[name] = true
	}

	for _, f := range std.Fields {
		if o, ok := overrides[f.Name]; ok {
			f = applyOverride(f, o)
		}
		if f.Multiple {
			// The standard allows lists; the provider only takes them if it says so.
			f.Multiple = multiple[f.Name]
		} else if multiple[f.Name] {
			return Schema{}, fmt.Errorf("%s: %s is single-valued in the standard", std.Name, f.Name)
		}
		out.Fields = append(out.Fields, f)
	}

	for _, f := range ext.Fields {
		if _, clash := std.Field(f.Name); clash {
			return Schema{}, fmt.Errorf("%s: extra field %s redefines a standard field", std.Name, f.Name)
		}
		if multiple[f.Name] {
			if f.Type != TypeString {
				return Schema{}, fmt.Errorf("%s: multiple items on non-string field %s", std.Name, f.Name)
			}
			f.Multiple = true
		}
		out.Fields = append(out.Fields, f)
	}

	for name := range multiple {
		if _, ok := out.Field(name); !ok {
			return Schema{}, fmt.Errorf("%s: multiple items names unknown field %s", std.Name, name)
		}
	}

	if err := out.Check(); err != nil {
		return Schema{}, err
	}
	aliases, err := checkAliases(out, ext.Aliases)
	if err != nil {
		return Schema{}, err
	}
	out.Aliases = aliases
	return out, nil
}

func applyOverride(base, o Field) Field {
	if o.Description != "" {
		base.Description = o.Description
	}
	if o.Default != nil {
		base.Default = o.Default
	}
	if o.Choices != nil {
		base.Choices = o.Choices
	}
	if o.Required {
		base.Required = true
	}
	if o.Unit != "" {
		base.Unit = o.Unit
	}
	if len(o.Validators) > 0 {
		base.Validators = o.Validators
	}
	if o.ExcludeFromAPI {
		base.ExcludeFromAPI = true
	}
	return base
}

// checkAliases requires every key to be a declared field, every value to be
// non-empty and unique, and no value to shadow a different declared field.
func checkAliases(s Schema, aliases map[string]string) (map[string]string, error) {
	if len(aliases) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	seen := make(map[string]string, len(aliases))
	out := make(map[string]string, len(aliases))
	for _, field := range keys {
		wire := aliases[field]
		if _, ok := s.Field(field); !ok {
			return nil, fmt.Errorf("%s: alias for undeclared field %s", s.Name, field)
		}
		if wire == "" {
			return nil, fmt.Errorf("%s: empty alias for field %s", s.Name, field)
		}
		if prev, dup := seen[wire]; dup {
			return nil, fmt.Errorf("%s: alias %s used by both %s and %s", s.Name, wire, prev, field)
		}
		if wire != field {
			if _, shadow := s.Field(wire); shadow {
				return nil, fmt.Errorf("%s: alias %s for %s shadows a declared field", s.Name, wire, field)
			}
		}
		seen[wire] = field
		out[field] = wire
	}
	return out, nil
}
