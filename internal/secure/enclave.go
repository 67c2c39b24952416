package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds secret material encrypted at rest in memory.
//
// It wraps memguard.Enclave. The plaintext is only materialised inside a
// LockedBuffer for the duration of a single use, see Use.
type Buffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// NewBuffer seals data into an enclave. memguard wipes data in the
// process, so callers must not reuse the slice afterwards.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{size: len(data)}
	if len(data) > 0 {
		// memguard refuses zero-length enclaves
		b.enclave = memguard.NewEnclave(data)
	}
	return b
}

// Len returns the size of the sealed material.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return 0
	}
	return b.size
}

// Open decrypts the material into a locked buffer. The caller must
// Destroy the returned buffer.
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed || b.enclave == nil {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return b.enclave.Open()
}

// Use opens the material, passes the plaintext to fn and wipes it once
// fn returns. fn must not retain the slice.
func (b *Buffer) Use(fn func(secret []byte) error) error {
	locked, err := b.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is idempotent; Open on a destroyed
// buffer yields empty material.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}

// Wipe overwrites b with zeroes.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}

// Purge destroys every memguard buffer in the process. Call it once on exit.
func Purge() {
	memguard.Purge()
}
