package algorithm

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultKeyObtentionIterations is used when a unit does not configure one.
const DefaultKeyObtentionIterations = 1000

// PBE is a password based encryption scheme. Implementations generate
// their own salt and IV and embed them in the output.
type PBE interface {
	Name() string
	Encrypt(password, plaintext []byte, iterations int) ([]byte, error)
	Decrypt(password, ciphertext []byte, iterations int) ([]byte, error)
}

var (
	errShortCiphertext = errors.New("ciphertext too short")
	errBadPadding      = errors.New("invalid padding, wrong password or corrupt input")
)

func iterationsOrDefault(n int) int {
	if n <= 0 {
		return DefaultKeyObtentionIterations
	}
	return n
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}

// pbes2 derives an AES key with PBKDF2 and encrypts with AES-CBC.
// Output layout: salt(16) || iv(16) || ciphertext.
type pbes2 struct {
	name   string
	prf    func() hash.Hash
	keyLen int
}

func (s pbes2) Name() string { return s.name }

func (s pbes2) Encrypt(password, plaintext []byte, iterations int) ([]byte, error) {
	salt, err := randomBytes(aes.BlockSize)
	if err != nil {
		return nil, err
	}
	iv, err := randomBytes(aes.BlockSize)
	if err != nil {
		return nil, err
	}
	key := pbkdf2.Key(password, salt, iterationsOrDefault(iterations), s.keyLen, s.prf)
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pad(append([]byte(nil), plaintext...), aes.BlockSize)
	out := make([]byte, 2*aes.BlockSize+len(padded))
	copy(out, salt)
	copy(out[aes.BlockSize:], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[2*aes.BlockSize:], padded)
	return out, nil
}

func (s pbes2) Decrypt(password, data []byte, iterations int) ([]byte, error) {
	if len(data) < 3*aes.BlockSize {
		return nil, errShortCiphertext
	}
	salt, iv, body := data[:aes.BlockSize], data[aes.BlockSize:2*aes.BlockSize], data[2*aes.BlockSize:]
	if len(body)%aes.BlockSize != 0 {
		return nil, errBadPadding
	}
	key := pbkdf2.Key(password, salt, iterationsOrDefault(iterations), s.keyLen, s.prf)
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return unpad(plain, aes.BlockSize)
}

// pbes1 is PKCS#5 v1.5 PBEWithMD5AndDES, kept for values encrypted by
// older tools that defaulted to it. Output layout: salt(8) || ciphertext.
type pbes1 struct{}

func (pbes1) Name() string { return "PBEWITHMD5ANDDES" }

func (pbes1) derive(password, salt []byte, iterations int) (key, iv []byte) {
	sum := md5.Sum(append(append([]byte(nil), password...), salt...))
	dk := sum[:]
	for i := 1; i < iterationsOrDefault(iterations); i++ {
		next := md5.Sum(dk)
		dk = next[:]
	}
	return dk[:des.BlockSize], dk[des.BlockSize:2*des.BlockSize]
}

func (s pbes1) Encrypt(password, plaintext []byte, iterations int) ([]byte, error) {
	salt, err := randomBytes(des.BlockSize)
	if err != nil {
		return nil, err
	}
	key, iv := s.derive(password, salt, iterations)
	defer wipe(key)

	block, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pad(append([]byte(nil), plaintext...), des.BlockSize)
	out := make([]byte, des.BlockSize+len(padded))
	copy(out, salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[des.BlockSize:], padded)
	return out, nil
}

func (s pbes1) Decrypt(password, data []byte, iterations int) ([]byte, error) {
	if len(data) < 2*des.BlockSize {
		return nil, errShortCiphertext
	}
	salt, body := data[:des.BlockSize], data[des.BlockSize:]
	if len(body)%des.BlockSize != 0 {
		return nil, errBadPadding
	}
	key, iv := s.derive(password, salt, iterations)
	defer wipe(key)

	block, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return unpad(plain, des.BlockSize)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func pbes2Schemes() []PBE {
	return []PBE{
		pbes2{name: "PBEWITHHMACSHA256ANDAES_128", prf: sha256.New, keyLen: 16},
		pbes2{name: "PBEWITHHMACSHA256ANDAES_256", prf: sha256.New, keyLen: 32},
		pbes2{name: "PBEWITHHMACSHA512ANDAES_128", prf: sha512.New, keyLen: 16},
		pbes2{name: "PBEWITHHMACSHA512ANDAES_256", prf: sha512.New, keyLen: 32},
	}
}
