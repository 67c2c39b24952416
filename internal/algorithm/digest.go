package algorithm

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	// DefaultDigestIterations is the number of hash rounds when none is configured.
	DefaultDigestIterations = 1000
	// DefaultSaltSize is the salt length in bytes when none is configured.
	DefaultSaltSize = 8
)

// Digest is a hash function usable for salted, iterated digests.
type Digest interface {
	Name() string
	New() hash.Hash
}

type hashDigest struct {
	name string
	new  func() hash.Hash
}

func (d hashDigest) Name() string   { return d.name }
func (d hashDigest) New() hash.Hash { return d.new() }

// NewDigest wraps a hash constructor as a Digest.
func NewDigest(name string, fn func() hash.Hash) Digest {
	return hashDigest{name: name, new: fn}
}

// DigestParams tune Sum and Matches. Zero values select the defaults;
// a negative SaltSize disables salting.
type DigestParams struct {
	Iterations int
	SaltSize   int
}

func (p DigestParams) iterations() int {
	if p.Iterations <= 0 {
		return DefaultDigestIterations
	}
	return p.Iterations
}

func (p DigestParams) saltSize() int {
	switch {
	case p.SaltSize < 0:
		return 0
	case p.SaltSize == 0:
		return DefaultSaltSize
	default:
		return p.SaltSize
	}
}

// ErrDigestTooShort is returned by Matches when the digest cannot hold the salt.
var ErrDigestTooShort = errors.New("digest is shorter than the configured salt")

func rounds(d Digest, salt, message []byte, iterations int) []byte {
	h := d.New()
	h.Write(salt)
	h.Write(message)
	sum := h.Sum(nil)
	for i := 1; i < iterations; i++ {
		h.Reset()
		h.Write(sum)
		sum = h.Sum(sum[:0])
	}
	return sum
}

// Sum returns salt || H^n(salt || message) with a fresh random salt.
func Sum(d Digest, message []byte, p DigestParams) ([]byte, error) {
	salt, err := randomBytes(p.saltSize())
	if err != nil {
		return nil, err
	}
	return append(salt, rounds(d, salt, message, p.iterations())...), nil
}

// Matches recomputes the digest of message with the salt embedded in
// digest and compares in constant time.
func Matches(d Digest, message, digest []byte, p DigestParams) (bool, error) {
	n := p.saltSize()
	if len(digest) < n {
		return false, ErrDigestTooShort
	}
	salt, expected := digest[:n], digest[n:]
	actual := rounds(d, salt, message, p.iterations())
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

func stdDigests() []Digest {
	return []Digest{
		NewDigest("MD5", md5.New),
		NewDigest("SHA-1", sha1.New),
		NewDigest("SHA-224", sha256.New224),
		NewDigest("SHA-256", sha256.New),
		NewDigest("SHA-384", sha512.New384),
		NewDigest("SHA-512", sha512.New),
	}
}

func xDigests() []Digest {
	return []Digest{
		NewDigest("SHA3-256", sha3.New256),
		NewDigest("SHA3-512", sha3.New512),
		NewDigest("BLAKE2B-256", func() hash.Hash {
			h, _ := blake2b.New256(nil)
			return h
		}),
		NewDigest("BLAKE2B-512", func() hash.Hash {
			h, _ := blake2b.New512(nil)
			return h
		}),
	}
}
