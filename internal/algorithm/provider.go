package algorithm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Provider supplies a named family of PBE schemes and digests.
type Provider interface {
	Name() string
	PBE(name string) (PBE, bool)
	Digest(name string) (Digest, bool)
	PBEAlgorithms() []string
	DigestAlgorithms() []string
}

type staticProvider struct {
	name    string
	pbes    map[string]PBE
	digests map[string]Digest
	aliases map[string]string
}

// NewProvider builds a provider from fixed sets of schemes. aliases maps
// alternative names to canonical digest or PBE names.
func NewProvider(name string, pbes []PBE, digests []Digest, aliases map[string]string) Provider {
	p := &staticProvider{
		name:    strings.ToUpper(name),
		pbes:    make(map[string]PBE, len(pbes)),
		digests: make(map[string]Digest, len(digests)),
		aliases: make(map[string]string, len(aliases)),
	}
	for _, s := range pbes {
		p.pbes[strings.ToUpper(s.Name())] = s
	}
	for _, d := range digests {
		p.digests[strings.ToUpper(d.Name())] = d
	}
	for k, v := range aliases {
		p.aliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return p
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) canonical(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	if c, ok := p.aliases[n]; ok {
		return c
	}
	return n
}

func (p *staticProvider) PBE(name string) (PBE, bool) {
	s, ok := p.pbes[p.canonical(name)]
	return s, ok
}

func (p *staticProvider) Digest(name string) (Digest, bool) {
	d, ok := p.digests[p.canonical(name)]
	return d, ok
}

func (p *staticProvider) PBEAlgorithms() []string {
	return sortedKeys(p.pbes)
}

func (p *staticProvider) DigestAlgorithms() []string {
	return sortedKeys(p.digests)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Registry is an ordered set of providers. Lookups without an explicit
// provider name pick the first provider supporting the algorithm.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry creates a registry holding providers in the given order.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{}
	for _, p := range providers {
		_ = r.Add(p)
	}
	return r
}

// Add appends p. Adding a second provider with the same name fails.
func (r *Registry) Add(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.providers {
		if existing.Name() == p.Name() {
			return fmt.Errorf("provider '%s' already registered", p.Name())
		}
	}
	r.providers = append(r.providers, p)
	return nil
}

// Remove drops the provider called name and reports whether it was present.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = strings.ToUpper(name)
	for i, p := range r.providers {
		if p.Name() == name {
			r.providers = append(r.providers[:i:i], r.providers[i+1:]...)
			return true
		}
	}
	return false
}

// Providers returns the registered providers in lookup order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

func (r *Registry) find(provider string) (Provider, error) {
	name := strings.ToUpper(strings.TrimSpace(provider))
	for _, p := range r.Providers() {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("provider '%s' is not registered", provider)
}

// PBE resolves a password based encryption scheme.
func (r *Registry) PBE(algorithm, provider string) (PBE, error) {
	if provider != "" {
		p, err := r.find(provider)
		if err != nil {
			return nil, err
		}
		if s, ok := p.PBE(algorithm); ok {
			return s, nil
		}
		return nil, fmt.Errorf("provider '%s' does not support PBE algorithm '%s'", p.Name(), algorithm)
	}
	for _, p := range r.Providers() {
		if s, ok := p.PBE(algorithm); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unsupported PBE algorithm '%s'", algorithm)
}

// Digest resolves a digest algorithm.
func (r *Registry) Digest(algorithm, provider string) (Digest, error) {
	if provider != "" {
		p, err := r.find(provider)
		if err != nil {
			return nil, err
		}
		if d, ok := p.Digest(algorithm); ok {
			return d, nil
		}
		return nil, fmt.Errorf("provider '%s' does not support digest algorithm '%s'", p.Name(), algorithm)
	}
	for _, p := range r.Providers() {
		if d, ok := p.Digest(algorithm); ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("unsupported digest algorithm '%s'", algorithm)
}

// PBEAlgorithms lists every PBE algorithm of every provider, sorted and unique.
func (r *Registry) PBEAlgorithms() []string {
	return r.collect(Provider.PBEAlgorithms)
}

// DigestAlgorithms lists every digest algorithm of every provider, sorted and unique.
func (r *Registry) DigestAlgorithms() []string {
	return r.collect(Provider.DigestAlgorithms)
}

func (r *Registry) collect(list func(Provider) []string) []string {
	seen := make(map[string]struct{})
	for _, p := range r.Providers() {
		for _, name := range list(p) {
			seen[name] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

var (
	defaultRegistry = NewRegistry()
	initMu          sync.Mutex
	initCount       int
)

// Default returns the process-wide registry populated by Init.
func Default() *Registry {
	return defaultRegistry
}

// Init installs the built-in providers into the process-wide registry.
// Calls are reference counted; only the first one installs.
func Init() {
	initMu.Lock()
	defer initMu.Unlock()
	initCount++
	if initCount > 1 {
		return
	}
	for _, p := range Builtin() {
		_ = defaultRegistry.Add(p)
	}
}

// Shutdown releases one Init. The built-in providers are removed when the
// last reference is released. Extra calls are no-ops.
func Shutdown() {
	initMu.Lock()
	defer initMu.Unlock()
	if initCount == 0 {
		return
	}
	initCount--
	if initCount > 0 {
		return
	}
	for _, p := range Builtin() {
		defaultRegistry.Remove(p.Name())
	}
}
