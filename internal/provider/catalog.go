package provider

import (
	"fincore/internal/registry"
	"fincore/internal/schema"
)

// CatalogEntry is what the outer router needs to expose one standard model.
type CatalogEntry struct {
	Name        string                `json:"name"`
	Namespace   string                `json:"namespace"`
	Description string                `json:"description"`
	Providers   []ProviderEntry       `json:"providers"`
	Query       registry.MergedSchema `json:"query"`
	Data        schema.Schema         `json:"data"`
	QuerySchema map[string]any        `json:"query_json_schema"`
	DataSchema  map[string]any        `json:"data_json_schema"`
}

type ProviderEntry struct {
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	Website             string   `json:"website,omitempty"`
	RequiresCredentials bool     `json:"requires_credentials"`
	Credentials         []string `json:"credentials,omitempty"`
	Shape               string   `json:"shape"`
	Deprecation         string   `json:"deprecation,omitempty"`
	MultipleItems       []string `json:"multiple_items_allowed,omitempty"`
}

// Catalog describes every standard model, sorted by name.
func (i *Interface) Catalog() []CatalogEntry {
	names := i.reg.ListStandardModels()
	out := make([]CatalogEntry, 0, len(names))
	for _, name := range names {
		entry, err := i.CatalogEntry(name)
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func (i *Interface) CatalogEntry(standard string) (CatalogEntry, error) {
	std, err := i.reg.Standard(standard)
	if err != nil {
		return CatalogEntry{}, err
	}
	merged, _ := i.reg.MergedQuerySchema(standard)
	entry := CatalogEntry{
		Name:        std.Name,
		Namespace:   std.Namespace,
		Description: std.Description,
		Query:       merged,
		Data:        std.Data,
		QuerySchema: std.Query.JSONSchema(),
		DataSchema:  std.Data.JSONSchema(),
	}
	provs, _ := i.reg.ListProviders(standard)
	for _, p := range provs {
		m, err := i.reg.Model(standard, p)
		if err != nil {
			continue
		}
		manifest, _ := i.reg.Manifest(p)
		entry.Providers = append(entry.Providers, ProviderEntry{
			Name:                p,
			Description:         manifest.Description,
			Website:             manifest.Website,
			RequiresCredentials: m.Info.RequiresCredentials,
			Credentials:         m.Info.CredentialNames,
			Shape:               string(m.Info.Shape),
			Deprecation:         m.Info.Deprecation,
			MultipleItems:       m.Info.Query.MultipleItems,
		})
	}
	return entry, nil
}
