package secret

import (
	"os"
	"sort"
	"sync"
)

// Lookuper resolves a named value, reporting whether it is defined.
type Lookuper interface {
	Lookup(name string) (string, bool)
}

// LookupFunc adapts a function to Lookuper.
type LookupFunc func(name string) (string, bool)

// Lookup calls f.
func (f LookupFunc) Lookup(name string) (string, bool) { return f(name) }

// OSEnvironment looks names up in the process environment.
var OSEnvironment Lookuper = LookupFunc(os.LookupEnv)

// Properties is the set of process properties, the values passed with -D
// on the command line or listed under "properties" in the configuration.
// It is safe for concurrent use.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties copies values into a new property set.
func NewProperties(values map[string]string) *Properties {
	p := &Properties{values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// Set defines or replaces a property.
func (p *Properties) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values == nil {
		p.values = make(map[string]string)
	}
	p.values[name] = value
}

// Merge sets every entry of values, overriding existing ones.
func (p *Properties) Merge(values map[string]string) {
	for k, v := range values {
		p.Set(k, v)
	}
}

// Lookup implements Lookuper.
func (p *Properties) Lookup(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Names returns the defined property names, sorted.
func (p *Properties) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
