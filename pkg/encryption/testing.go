package encryption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EncryptorContract configures RunEncryptorContract.
type EncryptorContract struct {
	// Create returns a fresh encryptor to test.
	Create func(t *testing.T) Encryptor

	// Messages overrides the default round-trip inputs.
	Messages []string
}

// DigesterContract configures RunDigesterContract.
type DigesterContract struct {
	Create func(t *testing.T) Digester
}

var contractMessages = []string{
	"",
	"hello",
	"p@ss,word)",
	"ENC(nested,alias)",
	"unicode ✓ ünicode",
	strings.Repeat("long ", 64),
}

// RunEncryptorContract checks round-trips, rejection of corrupt input and
// stats accounting.
func RunEncryptorContract(t *testing.T, contract EncryptorContract) {
	t.Run("Contract", func(t *testing.T) {
		messages := contract.Messages
		if len(messages) == 0 {
			messages = contractMessages
		}

		t.Run("RoundTrip", func(t *testing.T) {
			enc := contract.Create(t)
			for _, m := range messages {
				ct, err := enc.Encrypt(m)
				require.NoError(t, err, "Encrypt(%q)", m)

				pt, err := enc.Decrypt(ct)
				require.NoError(t, err, "Decrypt(Encrypt(%q))", m)
				assert.Equal(t, m, pt, "round trip mismatch")
			}
		})

		t.Run("CorruptInput", func(t *testing.T) {
			enc := contract.Create(t)
			_, err := enc.Decrypt("!!not-a-ciphertext!!")
			assert.Error(t, err, "Decrypt of corrupt input should fail")
		})

		t.Run("Stats", func(t *testing.T) {
			enc := contract.Create(t)
			ct, err := enc.Encrypt("counted")
			require.NoError(t, err)
			_, _ = enc.Decrypt(ct)
			_, _ = enc.Decrypt("!!not-a-ciphertext!!")

			got := statsByKind(enc.Stats())
			assert.GreaterOrEqual(t, got[KindEncrypt].Requests, uint64(1), "encrypt requests")
			assert.GreaterOrEqual(t, got[KindDecrypt].Requests, uint64(2), "decrypt requests")
			assert.Equal(t, uint64(1), got[KindDecrypt].Errors, "decrypt errors")
			assert.Positive(t, got[KindDecrypt].TotalProcessingTime, "decrypt processing time")
		})
	})
}

// RunDigesterContract checks digest validation and stats accounting.
func RunDigesterContract(t *testing.T, contract DigesterContract) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Matches", func(t *testing.T) {
			d := contract.Create(t)
			digest, err := d.Digest("message")
			require.NoError(t, err)

			ok, err := d.Matches("message", digest)
			require.NoError(t, err)
			assert.True(t, ok, "digest should match its message")

			ok, err = d.Matches("other", digest)
			require.NoError(t, err)
			assert.False(t, ok, "digest should not match another message")
		})

		t.Run("Stats", func(t *testing.T) {
			d := contract.Create(t)
			digest, err := d.Digest("message")
			require.NoError(t, err)
			_, _ = d.Matches("message", digest)

			got := statsByKind(d.Stats())
			assert.GreaterOrEqual(t, got[KindDigest].Requests, uint64(1), "digest requests")
			assert.GreaterOrEqual(t, got[KindValidateDigest].Requests, uint64(1), "validate requests")
		})
	})
}

func statsByKind(readings []OperationStats) map[Kind]OperationStats {
	m := make(map[Kind]OperationStats, len(readings))
	for _, r := range readings {
		m[r.Kind] = r
	}
	return m
}
