// Package provider is the read-only facade the router and executor use to
// discover providers, describe schemas and pick a provider for a call.
package provider

import (
	"sort"
	"strings"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/preferences"
	"fincore/internal/registry"
	"fincore/internal/schema"
)

type Interface struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Interface {
	return &Interface{reg: reg}
}

func (i *Interface) Registry() *registry.Registry {
	return i.reg
}

// Providers maps each standard to its providers.
func (i *Interface) Providers() map[string][]string {
	out := make(map[string][]string)
	for _, name := range i.reg.ListStandardModels() {
		provs, _ := i.reg.ListProviders(name)
		out[name] = provs
	}
	return out
}

// QuerySchemas maps each standard to the merged query schema across providers.
func (i *Interface) QuerySchemas() map[string]registry.MergedSchema {
	out := make(map[string]registry.MergedSchema)
	for _, name := range i.reg.ListStandardModels() {
		merged, _ := i.reg.MergedQuerySchema(name)
		out[name] = merged
	}
	return out
}

func (i *Interface) DataSchemas() map[string]schema.Schema {
	out := make(map[string]schema.Schema)
	for _, name := range i.reg.ListStandardModels() {
		data, _ := i.reg.DataSchema(name)
		out[name] = data
	}
	return out
}

// ChooseProvider resolves the provider for a call: the explicit choice if it
// implements standard, then the preference for the standard or its
// namespace, then the first implementer in registry order. An explicit
// choice that does not implement standard is a not-found error listing the
// implementers.
func (i *Interface) ChooseProvider(standard, preferred string, prefs preferences.Preferences) (string, error) {
	std, err := i.reg.Standard(standard)
	if err != nil {
		return "", err
	}
	provs, _ := i.reg.ListProviders(standard)
	if len(provs) == 0 {
		e := errs.NotImplemented("no provider implements %s", standard)
		e.Standard = standard
		return "", e
	}
	implements := func(p string) bool {
		for _, candidate := range provs {
			if candidate == p {
				return true
			}
		}
		return false
	}
	if preferred != "" {
		if !implements(preferred) {
			e := errs.NotFound("provider %q does not implement %s; available: [%s]",
				preferred, standard, strings.Join(provs, ", "))
			e.Standard = standard
			return "", e
		}
		return preferred, nil
	}
	for _, key := range []string{standard, std.Namespace} {
		if p := prefs.Preferred(key, ""); p != "" && implements(p) {
			return p, nil
		}
	}
	return provs[0], nil
}

// CredentialsValid reports whether creds satisfy provider: the provider needs
// no credentials, every declared name is present, or its hook accepts them.
func (i *Interface) CredentialsValid(provider string, creds fetcher.Credentials) bool {
	m, ok := i.reg.Manifest(provider)
	if !ok {
		return false
	}
	return credentialsValid(m, i.requiredNames(provider), creds)
}

func credentialsValid(m registry.Manifest, required []string, creds fetcher.Credentials) bool {
	if len(required) == 0 {
		return true
	}
	if creds.Has(required...) {
		return true
	}
	return m.CheckCredentials != nil && m.CheckCredentials(creds)
}

// requiredNames collects credential names from the provider's gated fetchers.
func (i *Interface) requiredNames(provider string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range i.reg.ListStandardModels() {
		m, err := i.reg.Model(name, provider)
		if err != nil || !m.Info.RequiresCredentials {
			continue
		}
		for _, c := range m.Info.CredentialNames {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

// FilterProvidersByCredentials returns the providers usable with creds,
// sorted. With requireValid false every registered provider is returned.
func (i *Interface) FilterProvidersByCredentials(creds fetcher.Credentials, requireValid bool) []string {
	all := i.reg.Providers()
	if !requireValid {
		return all
	}
	out := make([]string, 0, len(all))
	for _, p := range all {
		if i.CredentialsValid(p, creds) {
			out = append(out, p)
		}
	}
	return out
}

// CredentialNames lists every credential declared by a registered
// provider, sorted.
func (i *Interface) CredentialNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range i.reg.Providers() {
		m, _ := i.reg.Manifest(p)
		for _, c := range m.Credentials {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}
