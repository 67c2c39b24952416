// Package registry keeps the live cryptographic units keyed by alias.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/pkg/encryption"
)

// Properties accompany a registration. Type defaults to the unit's own
// Type; Labels are passed through to the management bridge.
type Properties struct {
	Type   string
	Labels map[string]string
}

// Entry is one registered unit.
type Entry[U encryption.Unit] struct {
	Alias      string
	Unit       U
	Properties Properties
}

// Registry maps aliases to units. Several units may share an alias; they
// are kept in registration order and Resolve returns the earliest one.
// It is safe for concurrent use.
type Registry[U encryption.Unit] struct {
	mu           sync.RWMutex
	defaultAlias string
	logger       *logging.Logger
	entries      map[string][]Entry[U]
	index        map[any]string
}

// New creates an empty registry. Units without alias and placeholders
// without alias use defaultAlias, or encryption.DefaultAlias when empty.
func New[U encryption.Unit](defaultAlias string, logger *logging.Logger) *Registry[U] {
	if defaultAlias == "" {
		defaultAlias = encryption.DefaultAlias
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry[U]{
		defaultAlias: defaultAlias,
		logger:       logger,
		entries:      make(map[string][]Entry[U]),
		index:        make(map[any]string),
	}
}

// DefaultAlias returns the alias used when none is given.
func (r *Registry[U]) DefaultAlias() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultAlias
}

// Register adds u under its alias and returns the alias used. Registering
// the same instance again is a no-op.
func (r *Registry[U]) Register(u U, props Properties) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(u, props)
}

// Unregister removes u and reports whether it was registered. The alias
// disappears with its last unit.
func (r *Registry[U]) Unregister(u U) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregister(u)
}

// Replace atomically switches the default alias, registers add and
// unregisters remove. Concurrent lookups see either the old or the new
// set of units, never a mix.
func (r *Registry[U]) Replace(defaultAlias string, add, remove []U) {
	if defaultAlias == "" {
		defaultAlias = encryption.DefaultAlias
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultAlias = defaultAlias
	for _, u := range add {
		r.register(u, Properties{})
	}
	for _, u := range remove {
		r.unregister(u)
	}
}

func (r *Registry[U]) register(u U, props Properties) string {
	if alias, ok := r.index[any(u)]; ok {
		return alias
	}

	alias := u.Alias()
	if alias == "" {
		alias = r.defaultAlias
		r.logger.Warn("%s without alias registered under the default alias '%s'", u.Type(), alias)
	}
	if props.Type == "" {
		props.Type = u.Type()
	}
	r.entries[alias] = append(r.entries[alias], Entry[U]{Alias: alias, Unit: u, Properties: props})
	r.index[any(u)] = alias
	r.logger.Debug("Registered %s '%s' (%s)", props.Type, alias, u.Algorithm())
	return alias
}

func (r *Registry[U]) unregister(u U) bool {
	alias, ok := r.index[any(u)]
	if !ok {
		return false
	}
	delete(r.index, any(u))

	list := r.entries[alias]
	for i, e := range list {
		if any(e.Unit) != any(u) {
			continue
		}
		if len(list) == 1 {
			delete(r.entries, alias)
		} else {
			r.entries[alias] = append(list[:i:i], list[i+1:]...)
		}
		r.logger.Debug("Unregistered %s '%s'", e.Properties.Type, alias)
		break
	}
	return true
}

// Resolve returns the unit registered under alias, or under the default
// alias when alias is empty.
func (r *Registry[U]) Resolve(alias string) (U, bool) {
	r.mu.RLock()
	if alias == "" {
		alias = r.defaultAlias
	}
	list := r.entries[alias]
	var (
		chosen     U
		candidates []string
	)
	if len(list) > 0 {
		chosen = list[0].Unit
	}
	if len(list) > 1 {
		for _, e := range list {
			candidates = append(candidates, fmt.Sprintf("%s %s", e.Properties.Type, e.Unit.Algorithm()))
		}
	}
	r.mu.RUnlock()

	if len(list) == 0 {
		var zero U
		return zero, false
	}
	if candidates != nil {
		r.logger.Warn("Alias '%s' is ambiguous, %d units are registered (%s); using the first registered",
			alias, len(candidates), strings.Join(candidates, ", "))
	}
	return chosen, true
}

// Aliases returns the registered aliases, sorted.
func (r *Registry[U]) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	aliases := make([]string, 0, len(r.entries))
	for a := range r.entries {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases
}

// Snapshot returns every entry, ordered by alias and then registration.
func (r *Registry[U]) Snapshot() []Entry[U] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	aliases := make([]string, 0, len(r.entries))
	for a := range r.entries {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)

	var out []Entry[U]
	for _, a := range aliases {
		out = append(out, r.entries[a]...)
	}
	return out
}

// Len returns the number of registered units.
func (r *Registry[U]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.entries {
		n += len(list)
	}
	return n
}
