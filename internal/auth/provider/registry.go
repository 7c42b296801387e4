package provider

import (
	"fmt"
	"sort"
)

// Registry maps provider names to configured OAuth providers. It holds
// configuration only; all auth logic lives in the providers.
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry builds a registry from the given providers. A later
// provider with a duplicate name replaces the earlier one.
func NewRegistry(list ...OAuthProvider) *Registry {
	m := make(map[string]OAuthProvider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", name)
	}
	return p, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
