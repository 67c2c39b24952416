package unit

import (
	"time"

	"github.com/systmms/dsenc/internal/algorithm"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/stats"
	"github.com/systmms/dsenc/pkg/encryption"
)

// DigesterConfig describes a salted string digester.
type DigesterConfig struct {
	Alias          string
	Algorithm      string
	Provider       string
	OutputEncoding algorithm.Encoding
	Iterations     int
	// SaltSize in bytes. Zero selects the default, negative disables salting.
	SaltSize int
}

// StringDigester computes salted iterated digests of strings.
type StringDigester struct {
	cfg    DigesterConfig
	opts   options
	digest algorithm.Digest
	params algorithm.DigestParams

	digestStats   stats.Counter
	validateStats stats.Counter
}

var _ encryption.Digester = (*StringDigester)(nil)

// NewStringDigester validates cfg and resolves its digest algorithm.
func NewStringDigester(cfg DigesterConfig, opts ...Option) (*StringDigester, error) {
	o := buildOptions(opts)

	if cfg.Algorithm == "" {
		return nil, dserrors.ConfigError{
			Field:      "algorithm",
			Message:    "digester requires an algorithm",
			Suggestion: "Set 'algorithm', for example SHA-256",
		}
	}
	d, err := o.algorithms.Digest(cfg.Algorithm, cfg.Provider)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "algorithm",
			Value:      cfg.Algorithm,
			Message:    err.Error(),
			Suggestion: "Run 'dsenc algorithms --type digest' to list the supported digests",
		}
	}

	return &StringDigester{
		cfg:    cfg,
		opts:   o,
		digest: d,
		params: algorithm.DigestParams{Iterations: cfg.Iterations, SaltSize: cfg.SaltSize},
	}, nil
}

func (d *StringDigester) Alias() string     { return d.cfg.Alias }
func (d *StringDigester) Algorithm() string { return d.digest.Name() }
func (d *StringDigester) Type() string      { return encryption.TypeDigester }

// Config returns the configuration the digester was built from.
func (d *StringDigester) Config() DigesterConfig { return d.cfg }

// Stats returns the digest and validation counters.
func (d *StringDigester) Stats() []encryption.OperationStats {
	return []encryption.OperationStats{
		d.digestStats.Read(stats.Digest),
		d.validateStats.Read(stats.ValidateDigest),
	}
}

// Close is a no-op; digesters hold no watcher.
func (d *StringDigester) Close() error { return nil }

// Digest returns the encoded salt and digest of message.
func (d *StringDigester) Digest(message string) (out string, err error) {
	start := time.Now()
	defer func() { d.digestStats.Observe(start, err) }()

	sum, err := algorithm.Sum(d.digest, []byte(message), d.params)
	if err != nil {
		return "", operationFailure(d.cfg.Alias, "digest", err)
	}
	return d.cfg.OutputEncoding.Encode(sum), nil
}

// Matches reports whether digest is a digest of message.
func (d *StringDigester) Matches(message, digest string) (ok bool, err error) {
	start := time.Now()
	defer func() { d.validateStats.Observe(start, err) }()

	raw, err := d.cfg.OutputEncoding.Decode(digest)
	if err != nil {
		return false, operationFailure(d.cfg.Alias, "validate digest", err)
	}
	ok, err = algorithm.Matches(d.digest, []byte(message), raw, d.params)
	if err != nil {
		return false, operationFailure(d.cfg.Alias, "validate digest", err)
	}
	return ok, nil
}
