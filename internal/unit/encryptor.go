package unit

import (
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/systmms/dsenc/internal/algorithm"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/secret"
	"github.com/systmms/dsenc/internal/secure"
	"github.com/systmms/dsenc/internal/stats"
	"github.com/systmms/dsenc/internal/watcher"
	"github.com/systmms/dsenc/pkg/encryption"
)

// EncryptorConfig describes a password based string encryptor.
type EncryptorConfig struct {
	Alias                  string
	Algorithm              string
	Provider               string
	OutputEncoding         algorithm.Encoding
	KeyObtentionIterations int
	Secret                 secret.Source

	// DisablePasswordFileWatcher turns off rotation detection for file
	// sourced passwords.
	DisablePasswordFileWatcher bool

	// ScrubSecrets re-reads file, environment and property passwords for
	// every operation and wipes them afterwards instead of caching them.
	// Literal passwords are always cached.
	ScrubSecrets bool
}

// cipherState is the cached result of resolving the password. password is
// nil when the origin is dynamic and scrubbing is enabled.
type cipherState struct {
	selection secret.Selection
	password  *secure.Buffer
}

// StringEncryptor encrypts strings with a PBE scheme and encodes the
// result as base64 or hexadecimal.
type StringEncryptor struct {
	cfg    EncryptorConfig
	opts   options
	scheme algorithm.PBE

	mu         sync.Mutex
	state      atomic.Pointer[cipherState]
	generation atomic.Uint64
	builds     atomic.Uint64

	watcher *watcher.Watcher

	encryptStats stats.Counter
	decryptStats stats.Counter
}

var _ encryption.Encryptor = (*StringEncryptor)(nil)

// NewStringEncryptor validates cfg and, when the password comes from a
// file and watching is enabled, starts watching that file.
func NewStringEncryptor(cfg EncryptorConfig, opts ...Option) (*StringEncryptor, error) {
	o := buildOptions(opts)

	if cfg.Algorithm == "" {
		return nil, dserrors.ConfigError{
			Field:      "algorithm",
			Message:    "encryptor requires an algorithm",
			Suggestion: "Set 'algorithm', for example PBEWITHHMACSHA512ANDAES_256",
		}
	}
	scheme, err := o.algorithms.PBE(cfg.Algorithm, cfg.Provider)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "algorithm",
			Value:      cfg.Algorithm,
			Message:    err.Error(),
			Suggestion: "Run 'dsenc algorithms' to list the supported algorithms",
		}
	}

	e := &StringEncryptor{cfg: cfg, opts: o, scheme: scheme}

	if !cfg.DisablePasswordFileWatcher {
		if sel, err := o.resolver.Select(cfg.Secret); err == nil && sel.Origin == secret.OriginFile {
			e.watcher = watcher.New(sel.Path, e.onRotation, o.logger)
			if err := e.watcher.Start(); err != nil {
				return nil, withAlias(err, cfg.Alias)
			}
		}
	}
	return e, nil
}

func (e *StringEncryptor) Alias() string     { return e.cfg.Alias }
func (e *StringEncryptor) Algorithm() string { return e.scheme.Name() }
func (e *StringEncryptor) Type() string      { return encryption.TypeEncryptor }

// Config returns the configuration the encryptor was built from.
func (e *StringEncryptor) Config() EncryptorConfig { return e.cfg }

// Stats returns the encrypt and decrypt counters.
func (e *StringEncryptor) Stats() []encryption.OperationStats {
	return []encryption.OperationStats{
		e.encryptStats.Read(stats.Encrypt),
		e.decryptStats.Read(stats.Decrypt),
	}
}

// Watching reports whether a password file watcher is running.
func (e *StringEncryptor) Watching() bool { return e.watcher != nil }

func (e *StringEncryptor) onRotation(ev watcher.Event) {
	e.Invalidate()
	e.opts.logger.Info("Password file of '%s' %s, cipher will be rebuilt on next use", e.cfg.Alias, ev.Kind)
	if e.opts.onChange != nil {
		e.opts.onChange(Change{Alias: e.cfg.Alias, Event: ev})
	}
}

// Invalidate drops the cached cipher. Operations already holding it
// complete with the old password. A build in progress is discarded.
func (e *StringEncryptor) Invalidate() {
	e.generation.Add(1)
	e.state.Store(nil)
}

// Close stops the password file watcher and drops the cached cipher.
func (e *StringEncryptor) Close() error {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	e.Invalidate()
	return nil
}

func (e *StringEncryptor) load() (*cipherState, error) {
	if s := e.state.Load(); s != nil {
		return s, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if s := e.state.Load(); s != nil {
			return s, nil
		}

		gen := e.generation.Load()
		s, err := e.build()
		if err != nil {
			return nil, err
		}
		// An Invalidate during build means the secret may have changed
		// after it was read; discard and read again.
		if e.generation.Load() == gen && e.state.CompareAndSwap(nil, s) {
			e.builds.Add(1)
			e.opts.logger.Debug("Built cipher for '%s' from %s", e.cfg.Alias, s.selection)
			return s, nil
		}
		if s.password != nil {
			s.password.Destroy()
		}
	}
}

func (e *StringEncryptor) build() (*cipherState, error) {
	if e.cfg.ScrubSecrets {
		sel, err := e.opts.resolver.Select(e.cfg.Secret)
		if err != nil {
			return nil, withAlias(err, e.cfg.Alias)
		}
		if sel.Origin.Dynamic() {
			return &cipherState{selection: sel}, nil
		}
	}

	m, err := e.opts.resolver.Resolve(e.cfg.Secret)
	if err != nil {
		return nil, withAlias(err, e.cfg.Alias)
	}
	return &cipherState{selection: m.Selection, password: secure.NewBuffer(m.Secret)}, nil
}

// withPassword runs fn with the current password. The slice is wiped when
// fn returns.
func (e *StringEncryptor) withPassword(fn func(password []byte) error) error {
	s, err := e.load()
	if err != nil {
		return err
	}
	if s.password != nil {
		return s.password.Use(fn)
	}

	m, err := e.opts.resolver.Resolve(e.cfg.Secret)
	if err != nil {
		return withAlias(err, e.cfg.Alias)
	}
	defer secure.Wipe(m.Secret)
	return fn(m.Secret)
}

// Encrypt encrypts plaintext with a fresh salt.
func (e *StringEncryptor) Encrypt(plaintext string) (out string, err error) {
	start := time.Now()
	defer func() { e.encryptStats.Observe(start, err) }()

	err = e.withPassword(func(password []byte) error {
		ct, err := e.scheme.Encrypt(password, []byte(plaintext), e.cfg.KeyObtentionIterations)
		if err != nil {
			return operationFailure(e.cfg.Alias, "encrypt", err)
		}
		out = e.cfg.OutputEncoding.Encode(ct)
		return nil
	})
	return out, err
}

// Decrypt decodes and decrypts ciphertext.
func (e *StringEncryptor) Decrypt(ciphertext string) (out string, err error) {
	start := time.Now()
	defer func() { e.decryptStats.Observe(start, err) }()

	raw, err := e.cfg.OutputEncoding.Decode(ciphertext)
	if err != nil {
		return "", operationFailure(e.cfg.Alias, "decrypt", err)
	}
	err = e.withPassword(func(password []byte) error {
		pt, err := e.scheme.Decrypt(password, raw, e.cfg.KeyObtentionIterations)
		if err != nil {
			return operationFailure(e.cfg.Alias, "decrypt", err)
		}
		if !utf8.Valid(pt) {
			return dserrors.New(dserrors.KindOperationFailure, e.cfg.Alias, "decrypt",
				"decrypted value is not valid UTF-8", nil)
		}
		out = string(pt)
		return nil
	})
	return out, err
}
