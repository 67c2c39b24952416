package registry

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/pkg/encryption"
)

type fakeUnit struct {
	alias     string
	algorithm string
}

func (f *fakeUnit) Alias() string                      { return f.alias }
func (f *fakeUnit) Algorithm() string                  { return f.algorithm }
func (f *fakeUnit) Type() string                       { return encryption.TypeEncryptor }
func (f *fakeUnit) Stats() []encryption.OperationStats { return nil }

func newFake(alias, alg string) *fakeUnit {
	return &fakeUnit{alias: alias, algorithm: alg}
}

func TestRegisterResolveUnregister(t *testing.T) {
	r := New[encryption.Unit]("", nil)
	u := newFake("orders", "AES")

	assert.Equal(t, "orders", r.Register(u, Properties{}))
	got, ok := r.Resolve("orders")
	require.True(t, ok)
	assert.Same(t, u, got)

	assert.True(t, r.Unregister(u))
	_, ok = r.Resolve("orders")
	assert.False(t, ok)
	assert.Empty(t, r.Aliases())
	assert.False(t, r.Unregister(u))
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := New[encryption.Unit]("", nil)
	u := newFake("orders", "AES")

	r.Register(u, Properties{})
	r.Register(u, Properties{})
	assert.Equal(t, 1, r.Len())

	r.Unregister(u)
	assert.Zero(t, r.Len())
}

func TestAliasesAreCaseSensitive(t *testing.T) {
	r := New[encryption.Unit]("", nil)
	r.Register(newFake("Orders", "AES"), Properties{})

	_, ok := r.Resolve("orders")
	assert.False(t, ok)
	_, ok = r.Resolve("Orders")
	assert.True(t, ok)
}

func TestAmbiguousAliasPicksEarliest(t *testing.T) {
	var buf bytes.Buffer
	r := New[encryption.Unit]("", logging.NewWithWriter(&buf, false, true))

	first := newFake("shared", "AES-A")
	second := newFake("shared", "AES-B")
	r.Register(first, Properties{})
	r.Register(second, Properties{})

	for i := 0; i < 5; i++ {
		got, ok := r.Resolve("shared")
		require.True(t, ok)
		assert.Same(t, first, got)
	}
	assert.Contains(t, buf.String(), "Alias 'shared' is ambiguous")
	assert.Contains(t, buf.String(), "AES-A")
	assert.Contains(t, buf.String(), "AES-B")

	r.Unregister(first)
	got, ok := r.Resolve("shared")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestDefaultAlias(t *testing.T) {
	var buf bytes.Buffer
	r := New[encryption.Unit]("main", logging.NewWithWriter(&buf, false, true))
	assert.Equal(t, "main", r.DefaultAlias())

	u := newFake("", "AES")
	assert.Equal(t, "main", r.Register(u, Properties{}))
	assert.Contains(t, buf.String(), "without alias")

	got, ok := r.Resolve("")
	require.True(t, ok)
	assert.Same(t, u, got)

	assert.True(t, r.Unregister(u))
	assert.Equal(t, encryption.DefaultAlias, New[encryption.Unit]("", nil).DefaultAlias())
}

func TestSnapshotOrder(t *testing.T) {
	r := New[encryption.Unit]("", nil)
	b1 := newFake("b", "1")
	a := newFake("a", "1")
	b2 := newFake("b", "2")
	r.Register(b1, Properties{Labels: map[string]string{"team": "x"}})
	r.Register(a, Properties{Type: "custom"})
	r.Register(b2, Properties{})

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Same(t, a, snap[0].Unit)
	assert.Equal(t, "custom", snap[0].Properties.Type)
	assert.Same(t, b1, snap[1].Unit)
	assert.Equal(t, "x", snap[1].Properties.Labels["team"])
	assert.Same(t, b2, snap[2].Unit)
	assert.Equal(t, encryption.TypeEncryptor, snap[2].Properties.Type)
	assert.Equal(t, []string{"a", "b"}, r.Aliases())
}

func TestConcurrentMutationAndLookup(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}

	r := New[encryption.Unit]("", nil)
	stable := newFake("stable", "AES")
	r.Register(stable, Properties{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				u := newFake(fmt.Sprintf("churn-%d", id%2), "AES")
				r.Register(u, Properties{})
				r.Unregister(u)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got, ok := r.Resolve("stable")
				if !ok || got != encryption.Unit(stable) {
					t.Error("stable unit not resolved")
					return
				}
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
}

func TestReplace(t *testing.T) {
	r := New[encryption.Unit]("", nil)
	old := newFake("", "OLD")
	keep := newFake("keep", "AES")
	r.Register(old, Properties{})
	r.Register(keep, Properties{})

	fresh := newFake("", "NEW")
	r.Replace("main", []encryption.Unit{fresh}, []encryption.Unit{old})

	assert.Equal(t, "main", r.DefaultAlias())
	got, ok := r.Resolve("")
	require.True(t, ok)
	assert.Same(t, fresh, got)

	_, ok = r.Resolve(encryption.DefaultAlias)
	assert.False(t, ok)
	assert.Equal(t, []string{"keep", "main"}, r.Aliases())
	assert.False(t, r.Unregister(old))
}
