// Package bootstrap assembles the encryptors and digesters described by a
// configuration, registers them and keeps them current across reloads and
// password rotations.
package bootstrap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/systmms/dsenc/internal/algorithm"
	"github.com/systmms/dsenc/internal/config"
	"github.com/systmms/dsenc/internal/decryptor"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/internal/registry"
	"github.com/systmms/dsenc/internal/secret"
	"github.com/systmms/dsenc/internal/unit"
	"github.com/systmms/dsenc/pkg/encryption"
)

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger passed to every unit.
func WithLogger(l *logging.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProperties sets process properties that take precedence over the
// 'properties' section of the configuration, e.g. values given with -D.
func WithProperties(props map[string]string) Option {
	return func(s *System) { s.overrides = props }
}

// WithEnvironment replaces the process environment for password lookups.
func WithEnvironment(env secret.Lookuper) Option {
	return func(s *System) { s.env = env }
}

// System owns the live units and their registries.
type System struct {
	logger    *logging.Logger
	overrides map[string]string
	env       secret.Lookuper

	encryptorRegistry *registry.Registry[encryption.Encryptor]
	digesterRegistry  *registry.Registry[encryption.Digester]
	decryptor         atomic.Pointer[decryptor.Decryptor]

	mu          sync.Mutex
	encryptors  []*unit.StringEncryptor
	digesters   []*unit.StringDigester
	properties  *secret.Properties
	subscribers []func(unit.Change)
	closed      bool

	changes   chan unit.Change
	done      chan struct{}
	dispatchd chan struct{}
	closeOnce sync.Once
}

// New creates an empty system and initializes the process-wide algorithm
// providers. Close releases them.
func New(opts ...Option) *System {
	s := &System{
		logger:    logging.Discard(),
		changes:   make(chan unit.Change, 64),
		done:      make(chan struct{}),
		dispatchd: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	algorithm.Init()
	s.encryptorRegistry = registry.New[encryption.Encryptor]("", s.logger)
	s.digesterRegistry = registry.New[encryption.Digester]("", s.logger)
	s.decryptor.Store(decryptor.New(s.encryptorRegistry, decryptor.WithLogger(s.logger)))
	s.properties = secret.NewProperties(s.overrides)

	go s.dispatch()
	return s
}

// Load creates a system and applies def.
func Load(def *config.Definition, opts ...Option) (*System, error) {
	s := New(opts...)
	if err := s.Apply(def); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Encryptors returns the encryptor registry.
func (s *System) Encryptors() *registry.Registry[encryption.Encryptor] { return s.encryptorRegistry }

// Digesters returns the digester registry.
func (s *System) Digesters() *registry.Registry[encryption.Digester] { return s.digesterRegistry }

// Decryptor returns the placeholder decryptor of the current configuration.
func (s *System) Decryptor() *decryptor.Decryptor { return s.decryptor.Load() }

// Properties returns the process properties of the current configuration.
func (s *System) Properties() *secret.Properties {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.properties
}

// Encryptor resolves an encryptor by alias.
func (s *System) Encryptor(alias string) (encryption.Encryptor, error) {
	e, ok := s.encryptorRegistry.Resolve(alias)
	if !ok {
		return nil, s.notFound(alias, s.encryptorRegistry.DefaultAlias(), "encryptor")
	}
	return e, nil
}

// Digester resolves a digester by alias.
func (s *System) Digester(alias string) (encryption.Digester, error) {
	d, ok := s.digesterRegistry.Resolve(alias)
	if !ok {
		return nil, s.notFound(alias, s.digesterRegistry.DefaultAlias(), "digester")
	}
	return d, nil
}

func (s *System) notFound(alias, def, kind string) error {
	if alias == "" {
		alias = def
	}
	return dserrors.New(dserrors.KindUnitNotFound, alias, "resolve", "no "+kind+" registered", nil)
}

// Subscribe registers fn for password rotation notifications. fn runs on
// a dedicated goroutine and may call Apply, but not Close. Notifications
// arriving while the queue is full are dropped with a warning.
func (s *System) Subscribe(fn func(unit.Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// enqueue never blocks the watcher: a subscriber may be running Apply,
// which waits for watchers to stop. When the queue is full the
// notification is dropped; the unit has already invalidated itself.
func (s *System) enqueue(c unit.Change) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.changes <- c:
	default:
		s.logger.Warn("Dropped rotation notification for '%s': %d pending", c.Alias, cap(s.changes))
	}
}

func (s *System) dispatch() {
	defer close(s.dispatchd)
	for {
		select {
		case c := <-s.changes:
			s.mu.Lock()
			subs := append(([]func(unit.Change))(nil), s.subscribers...)
			s.mu.Unlock()
			for _, fn := range subs {
				fn(c)
			}
		case <-s.done:
			return
		}
	}
}

// Apply builds the units of def and swaps them in. New units are
// registered before the previous ones are removed and closed. If any unit
// fails to build, the current units stay in place.
func (s *System) Apply(def *config.Definition) error {
	if def == nil {
		def = &config.Definition{}
	}

	props := secret.NewProperties(def.Properties)
	props.Merge(s.overrides)
	resolver := secret.NewResolver(props)
	if s.env != nil {
		resolver.Env = s.env
	}
	opts := []unit.Option{
		unit.WithLogger(s.logger),
		unit.WithAlgorithms(algorithm.Default()),
		unit.WithResolver(resolver),
		unit.WithChangeHandler(s.enqueue),
	}

	encs, digs, err := build(def, opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		closeUnits(encs, digs)
		return errors.New("system is closed")
	}
	oldEncs, oldDigs := s.encryptors, s.digesters
	s.encryptorRegistry.Replace(def.DefaultAlias, asEncryptors(encs), asEncryptors(oldEncs))
	s.digesterRegistry.Replace(def.DefaultAlias, asDigesters(digs), asDigesters(oldDigs))
	s.decryptor.Store(decryptor.New(s.encryptorRegistry,
		decryptor.WithStrict(def.StrictPlaceholders),
		decryptor.WithLogger(s.logger)))
	s.encryptors, s.digesters = encs, digs
	s.properties = props
	s.mu.Unlock()

	closeUnits(oldEncs, oldDigs)
	s.logger.Debug("Applied configuration: %d encryptor(s), %d digester(s)", len(encs), len(digs))
	return nil
}

func build(def *config.Definition, opts []unit.Option) ([]*unit.StringEncryptor, []*unit.StringDigester, error) {
	var (
		encs []*unit.StringEncryptor
		digs []*unit.StringDigester
	)
	fail := func(field string, err error) ([]*unit.StringEncryptor, []*unit.StringDigester, error) {
		closeUnits(encs, digs)
		var cfgErr dserrors.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Field = field + "." + cfgErr.Field
			return nil, nil, cfgErr
		}
		if dserrors.KindOf(err) != dserrors.KindUnknown {
			return nil, nil, err
		}
		return nil, nil, dserrors.ConfigError{Field: field, Message: err.Error()}
	}

	for i, ec := range def.Encryptors {
		field := fmt.Sprintf("encryptors[%d]", i)
		uc, err := ec.Unit(def.ScrubSecrets)
		if err != nil {
			return fail(field, err)
		}
		e, err := unit.NewStringEncryptor(uc, opts...)
		if err != nil {
			return fail(field, err)
		}
		encs = append(encs, e)
	}
	for i, dc := range def.Digesters {
		field := fmt.Sprintf("digesters[%d]", i)
		uc, err := dc.Unit()
		if err != nil {
			return fail(field, err)
		}
		d, err := unit.NewStringDigester(uc, opts...)
		if err != nil {
			return fail(field, err)
		}
		digs = append(digs, d)
	}
	return encs, digs, nil
}

func asEncryptors(units []*unit.StringEncryptor) []encryption.Encryptor {
	out := make([]encryption.Encryptor, len(units))
	for i, u := range units {
		out[i] = u
	}
	return out
}

func asDigesters(units []*unit.StringDigester) []encryption.Digester {
	out := make([]encryption.Digester, len(units))
	for i, u := range units {
		out[i] = u
	}
	return out
}

func closeUnits(encs []*unit.StringEncryptor, digs []*unit.StringDigester) {
	for _, e := range encs {
		_ = e.Close()
	}
	for _, d := range digs {
		_ = d.Close()
	}
}

// Close unregisters and closes every unit, stops change dispatch and
// releases the algorithm providers. It is idempotent.
func (s *System) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		encs, digs := s.encryptors, s.digesters
		s.encryptors, s.digesters = nil, nil
		s.encryptorRegistry.Replace(s.encryptorRegistry.DefaultAlias(), nil, asEncryptors(encs))
		s.digesterRegistry.Replace(s.digesterRegistry.DefaultAlias(), nil, asDigesters(digs))
		s.mu.Unlock()

		close(s.done)
		closeUnits(encs, digs)
		<-s.dispatchd
		algorithm.Shutdown()
	})
}
