// Package decryptor parses ENC(...) placeholders and decrypts them with
// the encryptor registered under the placeholder's alias.
package decryptor

import (
	"regexp"
	"strings"

	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/pkg/encryption"
)

var (
	plainPattern = regexp.MustCompile(`^ENC\((.*)\)$`)
	// the greedy first group splits on the last comma
	aliasPattern = regexp.MustCompile(`^ENC\((.*)\s*,\s*(.*)\)$`)
)

// Placeholder is a parsed ENC(...) value. Alias is empty when the value
// names none.
type Placeholder struct {
	Ciphertext string
	Alias      string
}

// String renders p back into the placeholder grammar.
func (p Placeholder) String() string {
	return Wrap(p.Ciphertext, p.Alias)
}

// Parse splits value into ciphertext and alias. It reports false when
// value is not a placeholder.
func Parse(value string) (Placeholder, bool) {
	if m := aliasPattern.FindStringSubmatch(value); m != nil {
		return Placeholder{
			Ciphertext: strings.TrimSpace(m[1]),
			Alias:      strings.TrimSpace(m[2]),
		}, true
	}
	if m := plainPattern.FindStringSubmatch(value); m != nil {
		return Placeholder{Ciphertext: strings.TrimSpace(m[1])}, true
	}
	return Placeholder{}, false
}

// Wrap builds ENC(ciphertext) or ENC(ciphertext,alias).
func Wrap(ciphertext, alias string) string {
	if alias == "" {
		return "ENC(" + ciphertext + ")"
	}
	return "ENC(" + ciphertext + "," + alias + ")"
}

// Resolver looks encryptors up by alias; an empty alias selects the
// default one. *registry.Registry[encryption.Encryptor] implements it.
type Resolver interface {
	Resolve(alias string) (encryption.Encryptor, bool)
	DefaultAlias() string
}

// Option configures a Decryptor.
type Option func(*Decryptor)

// WithStrict makes Decrypt fail with a MalformedPlaceholder error for
// values that are not placeholders instead of returning them unchanged.
func WithStrict(strict bool) Option {
	return func(d *Decryptor) { d.strict = strict }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Decryptor) {
		if l != nil {
			d.logger = l
		}
	}
}

// Decryptor resolves placeholders against the current content of a
// registry. It holds no state of its own.
type Decryptor struct {
	units  Resolver
	strict bool
	logger *logging.Logger
}

var _ encryption.ConfigDecryptor = (*Decryptor)(nil)

// New returns a decryptor dispatching to units.
func New(units Resolver, opts ...Option) *Decryptor {
	d := &Decryptor{units: units, logger: logging.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strict reports whether non-placeholder values are rejected.
func (d *Decryptor) Strict() bool { return d.strict }

// IsEncrypted reports whether value is a placeholder.
func (d *Decryptor) IsEncrypted(value string) bool {
	_, ok := Parse(value)
	return ok
}

// Decrypt returns the plaintext of a placeholder value.
func (d *Decryptor) Decrypt(value string) (string, error) {
	p, ok := Parse(value)
	if !ok {
		if d.strict {
			return "", dserrors.New(dserrors.KindMalformedPlaceholder, "", "decrypt",
				"value is not of the form ENC(<ciphertext>) or ENC(<ciphertext>,<alias>)", nil)
		}
		return value, nil
	}

	enc, ok := d.units.Resolve(p.Alias)
	if !ok {
		alias := p.Alias
		if alias == "" {
			alias = d.units.DefaultAlias()
		}
		return "", dserrors.New(dserrors.KindUnitNotFound, alias, "decrypt",
			"no encryptor registered", nil)
	}
	plain, err := enc.Decrypt(p.Ciphertext)
	if err != nil {
		return "", err
	}
	d.logger.Debug("Decrypted placeholder with encryptor '%s': %s", enc.Alias(), logging.Secret(plain))
	return plain, nil
}

// DecryptOptional is Decrypt for values that may be absent. A nil value
// is returned as is without consulting any encryptor.
func (d *Decryptor) DecryptOptional(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	out, err := d.Decrypt(*value)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
