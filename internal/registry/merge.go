package registry

import (
	"fmt"
	"slices"
	"sort"

	"fincore/internal/schema"
)

// MergedField is a query parameter as seen across all providers of a
// standard.
type MergedField struct {
	schema.Field
	// Standard is true for parameters every provider accepts.
	Standard bool `json:"standard"`
	// Providers lists who accepts the parameter, sorted.
	Providers []string `json:"providers"`
}

type MergedSchema struct {
	Standard string        `json:"standard"`
	Fields   []MergedField `json:"fields"`
}

// clone copies the field list and each provider list so callers cannot
// reach the registry's copy.
func (m MergedSchema) clone() MergedSchema {
	out := MergedSchema{Standard: m.Standard, Fields: make([]MergedField, len(m.Fields))}
	for i, f := range m.Fields {
		f.Providers = slices.Clone(f.Providers)
		out.Fields[i] = f
	}
	return out
}

func (m MergedSchema) Field(name string) (MergedField, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return MergedField{}, false
}

// typeRank orders types within a widening chain. Types in different chains
// widen to string.
var typeChains = [][]schema.Type{
	{schema.TypeInteger, schema.TypeNumber, schema.TypeString},
	{schema.TypeDate, schema.TypeDateTime, schema.TypeString},
	{schema.TypeBoolean, schema.TypeString},
}

// widen returns the least type both a and b coerce into.
func widen(a, b schema.Type) schema.Type {
	if a == b {
		return a
	}
	for _, chain := range typeChains {
		ia, ib := indexOf(chain, a), indexOf(chain, b)
		if ia >= 0 && ib >= 0 {
			return chain[max(ia, ib)]
		}
	}
	return schema.TypeString
}

func indexOf(chain []schema.Type, t schema.Type) int {
	for i, c := range chain {
		if c == t {
			return i
		}
	}
	return -1
}

// mergeQuery combines the standard query with each provider's extras.
// providers must be sorted: on conflicts the alphabetically first provider's
// description and default win. Type conflicts are returned as warnings.
func mergeQuery(std schema.Standard, providers []string, extras map[string][]schema.Field) (MergedSchema, []string) {
	out := MergedSchema{Standard: std.Name}
	for _, f := range std.Query.Fields {
		out.Fields = append(out.Fields, MergedField{Field: f, Standard: true, Providers: slices.Clone(providers)})
	}
	index := make(map[string]int)
	var warnings []string
	conflicted := make(map[string]bool)
	for _, p := range providers {
		for _, f := range extras[p] {
			i, seen := index[f.Name]
			if !seen {
				index[f.Name] = len(out.Fields)
				out.Fields = append(out.Fields, MergedField{Field: f, Providers: []string{p}})
				continue
			}
			cur := &out.Fields[i]
			cur.Providers = append(cur.Providers, p)
			if cur.Type != f.Type {
				wider := widen(cur.Type, f.Type)
				if !conflicted[f.Name] {
					warnings = append(warnings, fmt.Sprintf(
						"%s: extra parameter %s declared as %s by %s and %s by %s, merged as %s",
						std.Name, f.Name, cur.Type, cur.Providers[0], f.Type, p, wider))
					conflicted[f.Name] = true
				}
				cur.Type = wider
				cur.Items = ""
				cur.Fields = nil
			}
			cur.Choices = unionChoices(cur.Choices, f.Choices)
			cur.Multiple = cur.Multiple || f.Multiple
		}
	}
	for i := range out.Fields {
		if !out.Fields[i].Standard {
			sort.Strings(out.Fields[i].Providers)
		}
	}
	return out, warnings
}

// unionChoices keeps a's order and appends unseen values of b. An empty side
// means unconstrained, so the union is unconstrained.
func unionChoices(a, b []any) []any {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a))
	out := append([]any(nil), a...)
	for _, v := range a {
		seen[fmt.Sprint(v)] = true
	}
	for _, v := range b {
		if !seen[fmt.Sprint(v)] {
			seen[fmt.Sprint(v)] = true
			out = append(out, v)
		}
	}
	return out
}
