// Package stats keeps lock-free per-operation counters for cryptographic units.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/systmms/dsenc/pkg/encryption"
)

// Kind identifies the operation a counter is attached to.
type Kind = encryption.Kind

const (
	Encrypt        = encryption.KindEncrypt
	Decrypt        = encryption.KindDecrypt
	Digest         = encryption.KindDigest
	ValidateDigest = encryption.KindValidateDigest
)

// Kinds lists every operation kind in a stable order.
var Kinds = []Kind{Encrypt, Decrypt, Digest, ValidateDigest}

// Counter accumulates request count, error count and processing time
// for one operation kind of one unit. Counters are never reset.
type Counter struct {
	requests atomic.Uint64
	errors   atomic.Uint64
	nanos    atomic.Uint64
}

// Observe records a completed call that started at start. A non-nil err
// counts as a failure.
func (c *Counter) Observe(start time.Time, err error) {
	d := time.Since(start)
	// every completed call contributes a nonzero duration
	if d <= 0 {
		d = 1
	}
	c.requests.Add(1)
	c.nanos.Add(uint64(d))
	if err != nil {
		c.errors.Add(1)
	}
}

// Requests returns the number of completed calls.
func (c *Counter) Requests() uint64 { return c.requests.Load() }

// Errors returns the number of failed calls.
func (c *Counter) Errors() uint64 { return c.errors.Load() }

// TotalProcessingTime returns the cumulative wall clock duration of all calls.
func (c *Counter) TotalProcessingTime() time.Duration {
	return time.Duration(c.nanos.Load())
}

// Reading is a point-in-time copy of a counter.
type Reading = encryption.OperationStats

// Read takes a snapshot of c for kind.
func (c *Counter) Read(kind Kind) Reading {
	return Reading{
		Kind:                kind,
		Requests:            c.Requests(),
		Errors:              c.Errors(),
		TotalProcessingTime: c.TotalProcessingTime(),
	}
}
