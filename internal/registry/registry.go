// Package registry holds the immutable catalog of standard models and the
// provider fetchers that implement them.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/schema"
)

// Builder collects standards and manifests. Build validates everything at
// once and returns a frozen Registry.
type Builder struct {
	standards []schema.Standard
	manifests []Manifest
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) AddStandard(std ...schema.Standard) *Builder {
	b.standards = append(b.standards, std...)
	return b
}

func (b *Builder) AddManifest(m ...Manifest) *Builder {
	b.manifests = append(b.manifests, m...)
	return b
}

// Registry is read-only after Build and safe for concurrent use.
type Registry struct {
	standards map[string]schema.Standard
	names     []string
	models    map[string]map[string]*fetcher.Model
	providers map[string][]string
	manifests map[string]Manifest
	merged    map[string]MergedSchema
	warnings  []string
}

// Build fails on the first structural problem: duplicate standard or
// provider, a fetcher for an unknown standard, a duplicate (standard,
// provider) pair, or a provider schema that does not extend its standard.
func (b *Builder) Build() (*Registry, error) {
	r := &Registry{
		standards: make(map[string]schema.Standard, len(b.standards)),
		models:    make(map[string]map[string]*fetcher.Model),
		providers: make(map[string][]string),
		manifests: make(map[string]Manifest, len(b.manifests)),
		merged:    make(map[string]MergedSchema),
	}
	for _, std := range b.standards {
		if err := std.Check(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if _, dup := r.standards[std.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate standard model %s", std.Name)
		}
		r.standards[std.Name] = std
		r.names = append(r.names, std.Name)
	}
	sort.Strings(r.names)

	for _, m := range b.manifests {
		if err := r.register(m); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
	}

	for _, name := range r.names {
		provs := r.providers[name]
		sort.Strings(provs)
		extras := make(map[string][]schema.Field, len(provs))
		for _, p := range provs {
			extras[p] = r.models[name][p].Info.Query.Fields
		}
		merged, warnings := mergeQuery(r.standards[name], provs, extras)
		r.merged[name] = merged
		for _, w := range warnings {
			logger.Warnf("registry: %s", w)
		}
		r.warnings = append(r.warnings, warnings...)
	}
	return r, nil
}

func (r *Registry) register(m Manifest) error {
	name := strings.TrimSpace(m.Provider)
	if name == "" {
		return fmt.Errorf("manifest without provider name")
	}
	if _, dup := r.manifests[name]; dup {
		return fmt.Errorf("duplicate provider %s", name)
	}
	declared := make(map[string]bool, len(m.Credentials))
	for _, c := range m.Credentials {
		declared[c] = true
	}
	for _, f := range m.Fetchers {
		info := f.Info()
		if info.Provider != name {
			return fmt.Errorf("provider %s registers fetcher owned by %s", name, info.Provider)
		}
		std, ok := r.standards[info.Standard]
		if !ok {
			return fmt.Errorf("provider %s: unknown standard model %s", name, info.Standard)
		}
		if _, dup := r.models[info.Standard][name]; dup {
			return fmt.Errorf("provider %s: duplicate fetcher for %s", name, info.Standard)
		}
		for _, c := range info.CredentialNames {
			if !declared[c] {
				return fmt.Errorf("provider %s: fetcher %s reads undeclared credential %s", name, info.Standard, c)
			}
		}
		model, err := fetcher.NewModel(std, f)
		if err != nil {
			return err
		}
		model.CheckCredentials = m.CheckCredentials
		if r.models[info.Standard] == nil {
			r.models[info.Standard] = make(map[string]*fetcher.Model)
		}
		r.models[info.Standard][name] = model
		r.providers[info.Standard] = append(r.providers[info.Standard], name)
	}
	r.manifests[name] = m
	return nil
}

// ListStandardModels returns every standard model name, sorted.
func (r *Registry) ListStandardModels() []string {
	return append([]string(nil), r.names...)
}

// ListProviders returns the providers implementing standard, sorted.
func (r *Registry) ListProviders(standard string) ([]string, error) {
	if _, ok := r.standards[standard]; !ok {
		return nil, errs.NotFound("unknown standard model %s", standard)
	}
	return append([]string(nil), r.providers[standard]...), nil
}

func (r *Registry) Standard(name string) (schema.Standard, error) {
	std, ok := r.standards[name]
	if !ok {
		return schema.Standard{}, errs.NotFound("unknown standard model %s", name)
	}
	return std, nil
}

// Model returns the fetcher bound to its composed schemas.
func (r *Registry) Model(standard, provider string) (*fetcher.Model, error) {
	if _, ok := r.standards[standard]; !ok {
		return nil, errs.NotFound("unknown standard model %s", standard)
	}
	m, ok := r.models[standard][provider]
	if !ok {
		implementers := r.providers[standard]
		e := errs.NotFound("provider %q does not implement %s; available: [%s]",
			provider, standard, strings.Join(implementers, ", "))
		e.Standard = standard
		return nil, e
	}
	return m, nil
}

func (r *Registry) GetFetcher(standard, provider string) (fetcher.Fetcher, error) {
	m, err := r.Model(standard, provider)
	if err != nil {
		return nil, err
	}
	return m.Fetcher, nil
}

func (r *Registry) StandardQuerySchema(standard string) (schema.Schema, error) {
	std, err := r.Standard(standard)
	if err != nil {
		return schema.Schema{}, err
	}
	return std.Query, nil
}

func (r *Registry) DataSchema(standard string) (schema.Schema, error) {
	std, err := r.Standard(standard)
	if err != nil {
		return schema.Schema{}, err
	}
	return std.Data, nil
}

func (r *Registry) ProviderDataSchema(standard, provider string) (schema.Schema, error) {
	m, err := r.Model(standard, provider)
	if err != nil {
		return schema.Schema{}, err
	}
	return m.Data, nil
}

func (r *Registry) MergedQuerySchema(standard string) (MergedSchema, error) {
	if _, ok := r.standards[standard]; !ok {
		return MergedSchema{}, errs.NotFound("unknown standard model %s", standard)
	}
	return r.merged[standard].clone(), nil
}

func (r *Registry) Manifest(provider string) (Manifest, bool) {
	m, ok := r.manifests[provider]
	return m, ok
}

// Providers returns every registered provider name, sorted.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Warnings returns the non-fatal problems found while building.
func (r *Registry) Warnings() []string {
	return append([]string(nil), r.warnings...)
}
