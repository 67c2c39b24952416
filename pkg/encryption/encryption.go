package encryption

import "time"

// DefaultAlias is used for placeholders without an explicit alias and for
// units configured without one.
const DefaultAlias = "default"

// Unit types reported to the registry and management bridge.
const (
	TypeEncryptor = "encryptor"
	TypeDigester  = "digester"
)

// Kind identifies an instrumented operation of a unit.
type Kind string

const (
	KindEncrypt        Kind = "encrypt"
	KindDecrypt        Kind = "decrypt"
	KindDigest         Kind = "digest"
	KindValidateDigest Kind = "validate_digest"
)

// OperationStats is a read-only snapshot of the counters of one operation
// kind. Counters only ever grow.
type OperationStats struct {
	Kind                Kind
	Requests            uint64
	Errors              uint64
	TotalProcessingTime time.Duration
}

// Unit is the common part of encryptors and digesters.
type Unit interface {
	// Alias names the unit in placeholders. May be empty, in which case
	// the unit is registered under DefaultAlias.
	Alias() string

	// Algorithm returns the configured algorithm name.
	Algorithm() string

	// Type returns TypeEncryptor or TypeDigester.
	Type() string

	// Stats returns one snapshot per operation kind of the unit.
	Stats() []OperationStats
}

// Encryptor is a reversible string cipher.
type Encryptor interface {
	Unit

	// Encrypt returns the encoded ciphertext of plaintext.
	Encrypt(plaintext string) (string, error)

	// Decrypt reverses Encrypt. Corrupt input or a wrong password yield an
	// OperationFailure.
	Decrypt(ciphertext string) (string, error)
}

// Digester computes and checks salted one-way digests.
type Digester interface {
	Unit

	// Digest returns the encoded digest of message.
	Digest(message string) (string, error)

	// Matches reports whether digest was produced from message.
	Matches(message, digest string) (bool, error)
}

// ConfigDecryptor resolves placeholder values found in configuration.
type ConfigDecryptor interface {
	// IsEncrypted reports whether value uses the placeholder grammar.
	IsEncrypted(value string) bool

	// Decrypt returns the plaintext of a placeholder. Values that are not
	// placeholders are returned unchanged unless the decryptor is strict.
	Decrypt(value string) (string, error)
}
