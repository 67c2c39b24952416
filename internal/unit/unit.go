// Package unit implements the built-in string encryptor and digester.
//
// Encryptors build their password state lazily on first use and cache it
// sealed in a memguard enclave. A password file change reported by the
// unit's watcher drops the cache so the next operation reads the new
// password.
package unit

import (
	"errors"

	"github.com/systmms/dsenc/internal/algorithm"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/internal/secret"
	"github.com/systmms/dsenc/internal/watcher"
)

// Change is emitted after a unit dropped its cached cipher because its
// password file changed.
type Change struct {
	Alias string
	Event watcher.Event
}

// Option configures a unit.
type Option func(*options)

type options struct {
	logger     *logging.Logger
	algorithms *algorithm.Registry
	resolver   secret.Resolver
	onChange   func(Change)
}

func buildOptions(opts []Option) options {
	o := options{
		logger:     logging.Discard(),
		algorithms: algorithm.Default(),
		resolver:   secret.NewResolver(nil),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger for warnings and rotation notices.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAlgorithms selects the provider registry. Defaults to algorithm.Default().
func WithAlgorithms(r *algorithm.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.algorithms = r
		}
	}
}

// WithResolver sets how password origins are looked up.
func WithResolver(r secret.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithChangeHandler registers fn to be called after each rotation event.
// fn runs on the watcher goroutine.
func WithChangeHandler(fn func(Change)) Option {
	return func(o *options) { o.onChange = fn }
}

// withAlias attaches alias to a classified error lacking one.
func withAlias(err error, alias string) error {
	var e *dserrors.Error
	if errors.As(err, &e) && e.Alias == "" {
		c := *e
		c.Alias = alias
		return &c
	}
	return err
}

func operationFailure(alias, op string, err error) error {
	return dserrors.New(dserrors.KindOperationFailure, alias, op, "", err)
}
