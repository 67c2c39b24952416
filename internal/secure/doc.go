// Package secure provides memory-safe handling of secret material.
//
// Passwords obtained from configuration, files, environment variables or
// process properties are sealed into memguard enclaves as soon as they
// are read:
//
//   - Encrypted at rest in memory (XSalsa20Poly1305)
//   - Protected from swapping via mlock
//   - Wiped when no longer needed
//
// # Usage
//
//	buf := secure.NewBuffer(password) // password is wiped
//	defer buf.Destroy()
//
//	err := buf.Use(func(secret []byte) error {
//	    return deriveKey(secret)
//	})
//
// Call secure.Purge() in main on exit to wipe every remaining buffer.
//
// It does NOT protect against attackers with access to the running process.
package secure
