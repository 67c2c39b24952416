package algorithm

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const aeadSaltSize = 16

// aeadScheme pairs a memory-hard KDF with an AEAD. The KDFs carry their
// own cost parameters, so key obtention iterations are ignored.
// Output layout: salt(16) || nonce || sealed.
type aeadScheme struct {
	name   string
	derive func(password, salt []byte) ([]byte, error)
	aead   func(key []byte) (cipher.AEAD, error)
}

func (s aeadScheme) Name() string { return s.name }

func (s aeadScheme) Encrypt(password, plaintext []byte, _ int) ([]byte, error) {
	salt, err := randomBytes(aeadSaltSize)
	if err != nil {
		return nil, err
	}
	key, err := s.derive(password, salt)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	aead, err := s.aead(key)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}
	out := append(salt, nonce...)
	return aead.Seal(out, nonce, plaintext, salt), nil
}

func (s aeadScheme) Decrypt(password, data []byte, _ int) ([]byte, error) {
	if len(data) < aeadSaltSize {
		return nil, errShortCiphertext
	}
	salt := data[:aeadSaltSize]
	key, err := s.derive(password, salt)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	aead, err := s.aead(key)
	if err != nil {
		return nil, err
	}
	rest := data[aeadSaltSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, errShortCiphertext
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, salt)
	if err != nil {
		return nil, fmt.Errorf("authentication failed, wrong password or corrupt input: %w", err)
	}
	return plain, nil
}

func gcm(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func aeadSchemes() []PBE {
	return []PBE{
		aeadScheme{
			name: "PBEWITHSCRYPTANDAES_256_GCM",
			derive: func(password, salt []byte) ([]byte, error) {
				return scrypt.Key(password, salt, 1<<15, 8, 1, 32)
			},
			aead: gcm,
		},
		aeadScheme{
			name: "PBEWITHARGON2IDANDXCHACHA20POLY1305",
			derive: func(password, salt []byte) ([]byte, error) {
				return argon2.IDKey(password, salt, 2, 19*1024, 1, chacha20poly1305.KeySize), nil
			},
			aead: chacha20poly1305.NewX,
		},
	}
}
