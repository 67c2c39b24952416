// Package encryption defines the public contracts of dsenc's cryptographic
// units and of the configuration decryptor that dispatches to them.
//
// # Units
//
// A unit is one configured encryptor or digester bound to an algorithm, an
// output encoding and, for encryptors, a password source. Every unit is
// registered under an alias. Configuration values refer to a unit through
// the placeholder grammar:
//
//	ENC(<ciphertext>)          decrypted by the unit registered under the default alias
//	ENC(<ciphertext>,<alias>)  decrypted by the unit registered under <alias>
//
// Aliases are compared case-sensitively. Several units may share an alias;
// lookups then pick the earliest registered one and log a warning.
//
// # Implementing a Unit
//
// The built-in units live in internal/unit. Custom units only need to
// satisfy Encryptor or Digester and can be registered with the same
// registry:
//
//	type rot13 struct{}
//
//	func (rot13) Alias() string     { return "rot13" }
//	func (rot13) Algorithm() string { return "ROT13" }
//	func (rot13) Type() string      { return encryption.TypeEncryptor }
//	func (rot13) Stats() []encryption.OperationStats { return nil }
//
//	func (rot13) Encrypt(s string) (string, error) { return rotate(s), nil }
//	func (rot13) Decrypt(s string) (string, error) { return rotate(s), nil }
//
// RunEncryptorContract and RunDigesterContract check the behavior every
// implementation must provide.
//
// # Errors
//
// Failures are reported as *errors.Error values from internal/errors,
// classified by kind: MalformedPlaceholder, UnitNotFound,
// SecretUnavailable, OperationFailure and WatchEstablishmentFailure.
// Callers branch with errors.Is against the exported sentinels.
//
// # Threading and Concurrency
//
// Units and decryptors must be safe for concurrent use. Cipher state may be
// built lazily on first use and rebuilt after a password rotation; callers
// never observe a partially built cipher.
package encryption
