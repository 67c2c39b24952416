package unit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/dsenc/internal/algorithm"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/secret"
	"github.com/systmms/dsenc/internal/stats"
	"github.com/systmms/dsenc/internal/watcher"
	"github.com/systmms/dsenc/pkg/encryption"
)

const testAlgorithm = "PBEWITHHMACSHA512ANDAES_256"

func testRegistry() Option {
	return WithAlgorithms(algorithm.NewRegistry(algorithm.Builtin()...))
}

func envResolver(env map[string]string) Option {
	return WithResolver(secret.Resolver{
		Env: secret.LookupFunc(func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		}),
	})
}

func literalEncryptor(t *testing.T, alias, password string, opts ...Option) *StringEncryptor {
	t.Helper()
	cfg := EncryptorConfig{
		Alias:     alias,
		Algorithm: testAlgorithm,
		Secret:    secret.Source{Password: password},
	}
	e, err := NewStringEncryptor(cfg, append([]Option{testRegistry()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func statsOf(readings []encryption.OperationStats, kind stats.Kind) encryption.OperationStats {
	for _, r := range readings {
		if r.Kind == kind {
			return r
		}
	}
	return encryption.OperationStats{}
}

func TestEncryptorContract(t *testing.T) {
	for _, alg := range []string{"PBEWITHMD5ANDDES", testAlgorithm, "PBEWITHSCRYPTANDAES_256_GCM"} {
		t.Run(alg, func(t *testing.T) {
			encryption.RunEncryptorContract(t, encryption.EncryptorContract{
				Create: func(t *testing.T) encryption.Encryptor {
					e, err := NewStringEncryptor(EncryptorConfig{
						Alias:     "contract",
						Algorithm: alg,
						Secret:    secret.Source{Password: "contract-password"},
					}, testRegistry())
					require.NoError(t, err)
					return e
				},
			})
		})
	}
}

func TestDigesterContract(t *testing.T) {
	encryption.RunDigesterContract(t, encryption.DigesterContract{
		Create: func(t *testing.T) encryption.Digester {
			d, err := NewStringDigester(DigesterConfig{Alias: "sha", Algorithm: "SHA-256"}, testRegistry())
			require.NoError(t, err)
			return d
		},
	})
}

func TestNewStringEncryptorConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  EncryptorConfig
		want string
	}{
		{"missing algorithm", EncryptorConfig{Alias: "a"}, "requires an algorithm"},
		{"unknown algorithm", EncryptorConfig{Alias: "a", Algorithm: "ROT13"}, "unsupported PBE algorithm"},
		{"unknown provider", EncryptorConfig{Alias: "a", Algorithm: testAlgorithm, Provider: "BC"}, "not registered"},
		{"wrong provider", EncryptorConfig{Alias: "a", Algorithm: testAlgorithm, Provider: algorithm.ProviderXCrypto}, "does not support"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStringEncryptor(tt.cfg, testRegistry())
			require.Error(t, err)
			var cfgErr dserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Message, tt.want)
		})
	}
}

func TestAlgorithmNameIsCaseInsensitive(t *testing.T) {
	e, err := NewStringEncryptor(EncryptorConfig{
		Algorithm: strings.ToLower(testAlgorithm),
		Secret:    secret.Source{Password: "pw"},
	}, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, testAlgorithm, e.Algorithm())
	assert.Empty(t, e.Alias())
	assert.Equal(t, encryption.TypeEncryptor, e.Type())
}

func TestHexOutput(t *testing.T) {
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:          "hex",
		Algorithm:      testAlgorithm,
		OutputEncoding: algorithm.Hex,
		Secret:         secret.Source{Password: "pw"},
	}, testRegistry())
	require.NoError(t, err)

	ct, err := e.Encrypt("value")
	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(ct), ct)

	pt, err := e.Decrypt(strings.ToLower(ct))
	require.NoError(t, err)
	assert.Equal(t, "value", pt)
}

func TestWrongPasswordIsOperationFailure(t *testing.T) {
	a := literalEncryptor(t, "a", "first")
	b := literalEncryptor(t, "b", "second")

	ct, err := a.Encrypt("secret value")
	require.NoError(t, err)

	_, err = b.Decrypt(ct)
	require.Error(t, err)
	assert.ErrorIs(t, err, dserrors.ErrOperationFailure)
	assert.Equal(t, "b", err.(*dserrors.Error).Alias)
}

func TestSecretUnavailable(t *testing.T) {
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:     "orders",
		Algorithm: testAlgorithm,
		Secret:    secret.Source{PasswordEnv: "ORDERS_PASSWORD"},
	}, testRegistry(), envResolver(map[string]string{}))
	require.NoError(t, err)

	_, err = e.Encrypt("x")
	require.Error(t, err)
	assert.ErrorIs(t, err, dserrors.ErrSecretUnavailable)
	assert.Contains(t, err.Error(), "alias 'orders'")
	assert.Contains(t, err.Error(), "ORDERS_PASSWORD")

	s := statsOf(e.Stats(), stats.Encrypt)
	assert.Equal(t, uint64(1), s.Requests)
	assert.Equal(t, uint64(1), s.Errors)
}

func TestStatsCountOperationsAndFailures(t *testing.T) {
	e := literalEncryptor(t, "stats", "pw")

	const n, failures = 10, 3
	ct, err := e.Encrypt("payload")
	require.NoError(t, err)
	for i := 0; i < n-failures; i++ {
		_, err := e.Decrypt(ct)
		require.NoError(t, err)
	}
	for i := 0; i < failures; i++ {
		_, err := e.Decrypt("AAAA")
		require.Error(t, err)
	}

	dec := statsOf(e.Stats(), stats.Decrypt)
	assert.GreaterOrEqual(t, dec.Requests, uint64(n))
	assert.Equal(t, uint64(failures), dec.Errors)
	assert.Greater(t, dec.TotalProcessingTime, time.Duration(0))

	enc := statsOf(e.Stats(), stats.Encrypt)
	assert.Equal(t, uint64(1), enc.Requests)
	assert.Zero(t, enc.Errors)
}

func TestLazyBuildAndInvalidate(t *testing.T) {
	e := literalEncryptor(t, "lazy", "pw")
	assert.Zero(t, e.builds.Load())

	_, err := e.Encrypt("a")
	require.NoError(t, err)
	_, err = e.Encrypt("b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.builds.Load())

	e.Invalidate()
	_, err = e.Encrypt("c")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.builds.Load())
}

func TestConcurrentFirstUseBuildsOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}

	e := literalEncryptor(t, "concurrent", "pw")
	seed := literalEncryptor(t, "seed", "pw")
	ct, err := seed.Encrypt("shared")
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			pt, err := e.Decrypt(ct)
			if err == nil && pt != "shared" {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, uint64(1), e.builds.Load())
	assert.Equal(t, uint64(workers), statsOf(e.Stats(), stats.Decrypt).Requests)
}

func TestScrubModeRereadsDynamicSecrets(t *testing.T) {
	env := map[string]string{"APP_PASSWORD": "first"}
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:        "scrub",
		Algorithm:    testAlgorithm,
		Secret:       secret.Source{PasswordEnv: "APP_PASSWORD"},
		ScrubSecrets: true,
	}, testRegistry(), envResolver(env))
	require.NoError(t, err)

	first, err := e.Encrypt("value")
	require.NoError(t, err)
	assert.Nil(t, e.state.Load().password)

	env["APP_PASSWORD"] = "second"
	_, err = e.Decrypt(first)
	assert.ErrorIs(t, err, dserrors.ErrOperationFailure)

	second, err := e.Encrypt("value")
	require.NoError(t, err)
	pt, err := e.Decrypt(second)
	require.NoError(t, err)
	assert.Equal(t, "value", pt)
	assert.Equal(t, uint64(1), e.builds.Load())
}

func TestScrubModeCachesLiteralPassword(t *testing.T) {
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:        "literal",
		Algorithm:    testAlgorithm,
		Secret:       secret.Source{Password: "pw"},
		ScrubSecrets: true,
	}, testRegistry())
	require.NoError(t, err)

	_, err = e.Encrypt("value")
	require.NoError(t, err)
	assert.NotNil(t, e.state.Load().password)
}

func TestCachedModeKeepsPasswordUntilInvalidated(t *testing.T) {
	env := map[string]string{"APP_PASSWORD": "first"}
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:     "cached",
		Algorithm: testAlgorithm,
		Secret:    secret.Source{PasswordEnv: "APP_PASSWORD"},
	}, testRegistry(), envResolver(env))
	require.NoError(t, err)

	ct, err := e.Encrypt("value")
	require.NoError(t, err)

	env["APP_PASSWORD"] = "second"
	pt, err := e.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "value", pt)

	e.Invalidate()
	_, err = e.Decrypt(ct)
	assert.ErrorIs(t, err, dserrors.ErrOperationFailure)
}

func TestPasswordFileRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o600))

	changes := make(chan Change, 8)
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:     "rotating",
		Algorithm: testAlgorithm,
		Secret:    secret.Source{PasswordFile: path},
	}, testRegistry(), WithChangeHandler(func(c Change) { changes <- c }))
	require.NoError(t, err)
	defer e.Close()
	require.True(t, e.Watching())

	old, err := e.Encrypt("value")
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("-second")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case c := <-changes:
		assert.Equal(t, "rotating", c.Alias)
		assert.Equal(t, watcher.Modified, c.Event.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("no rotation event received")
	}
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, changes, 0)

	_, err = e.Decrypt(old)
	assert.ErrorIs(t, err, dserrors.ErrOperationFailure)

	rotated := literalEncryptor(t, "verify", "first-second")
	ct, err := e.Encrypt("value")
	require.NoError(t, err)
	pt, err := rotated.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "value", pt)
	assert.Equal(t, uint64(2), e.builds.Load())
}

func TestPasswordFileWatcherDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("pw"), 0o600))

	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:                      "quiet",
		Algorithm:                  testAlgorithm,
		Secret:                     secret.Source{PasswordFile: path},
		DisablePasswordFileWatcher: true,
	}, testRegistry())
	require.NoError(t, err)
	assert.False(t, e.Watching())
}

func TestLiteralPasswordTakesPrecedenceOverWatchedFile(t *testing.T) {
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:     "literal",
		Algorithm: testAlgorithm,
		Secret:    secret.Source{Password: "pw", PasswordFile: "/nonexistent/password"},
	}, testRegistry())
	require.NoError(t, err)
	assert.False(t, e.Watching())
}

func TestWatchEstablishmentFailure(t *testing.T) {
	_, err := NewStringEncryptor(EncryptorConfig{
		Alias:     "broken",
		Algorithm: testAlgorithm,
		Secret:    secret.Source{PasswordFile: filepath.Join(t.TempDir(), "missing", "password")},
	}, testRegistry())
	require.Error(t, err)
	assert.ErrorIs(t, err, dserrors.ErrWatchEstablishmentFailure)
	assert.Contains(t, err.Error(), "alias 'broken'")
}

func TestDigesterSaltAndIterations(t *testing.T) {
	unsalted, err := NewStringDigester(DigesterConfig{
		Algorithm:      "SHA",
		OutputEncoding: algorithm.Hex,
		SaltSize:       -1,
		Iterations:     1,
	}, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, "SHA-1", unsalted.Algorithm())

	a, err := unsalted.Digest("abc")
	require.NoError(t, err)
	b, err := unsalted.Digest("abc")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	// single round of SHA-1 over "abc"
	assert.Equal(t, "A9993E364706816ABA3E25717850C26C9CD0D89D", a)

	salted, err := NewStringDigester(DigesterConfig{Algorithm: "SHA-256"}, testRegistry())
	require.NoError(t, err)
	x, err := salted.Digest("abc")
	require.NoError(t, err)
	y, err := salted.Digest("abc")
	require.NoError(t, err)
	assert.NotEqual(t, x, y)
}

func TestDigesterInvalidDigest(t *testing.T) {
	d, err := NewStringDigester(DigesterConfig{Alias: "sha", Algorithm: "SHA-256", OutputEncoding: algorithm.Hex}, testRegistry())
	require.NoError(t, err)

	_, err = d.Matches("abc", "not-hex")
	assert.ErrorIs(t, err, dserrors.ErrOperationFailure)

	_, err = d.Matches("abc", "AB")
	assert.ErrorIs(t, err, dserrors.ErrOperationFailure)

	v := statsOf(d.Stats(), stats.ValidateDigest)
	assert.Equal(t, uint64(2), v.Requests)
	assert.Equal(t, uint64(2), v.Errors)
}

func TestNewStringDigesterConfigErrors(t *testing.T) {
	_, err := NewStringDigester(DigesterConfig{}, testRegistry())
	assert.Error(t, err)

	_, err = NewStringDigester(DigesterConfig{Algorithm: "CRC32"}, testRegistry())
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "CRC32", cfgErr.Value)
}

// gatedEnv returns "old" for APP_PASSWORD until switched, and parks the
// second lookup (the password read) until released.
type gatedEnv struct {
	mu      sync.Mutex
	value   string
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEnv) Lookup(name string) (string, bool) {
	g.mu.Lock()
	g.calls++
	call, v := g.calls, g.value
	g.mu.Unlock()

	if call == 2 {
		close(g.entered)
		<-g.release
	}
	return v, name == "APP_PASSWORD"
}

func (g *gatedEnv) set(v string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

func TestInvalidateDuringBuildIsNotLost(t *testing.T) {
	env := &gatedEnv{value: "old", entered: make(chan struct{}), release: make(chan struct{})}
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:                      "a",
		Algorithm:                  testAlgorithm,
		Secret:                     secret.Source{PasswordEnv: "APP_PASSWORD"},
		DisablePasswordFileWatcher: true,
	}, testRegistry(), WithResolver(secret.Resolver{Env: env}))
	require.NoError(t, err)

	type result struct {
		ct  string
		err error
	}
	first := make(chan result, 1)
	go func() {
		ct, err := e.Encrypt("during")
		first <- result{ct, err}
	}()

	<-env.entered
	env.set("new")
	e.Invalidate()
	close(env.release)

	r := <-first
	require.NoError(t, r.err)

	after, err := e.Encrypt("after")
	require.NoError(t, err)

	fresh := literalEncryptor(t, "a", "new")
	pt, err := fresh.Decrypt(after)
	require.NoError(t, err)
	assert.Equal(t, "after", pt)

	pt, err = fresh.Decrypt(r.ct)
	require.NoError(t, err)
	assert.Equal(t, "during", pt)
	assert.Equal(t, uint64(1), e.builds.Load())
}

func TestScrubModeBuildDoesNotReadSecret(t *testing.T) {
	var calls int
	e, err := NewStringEncryptor(EncryptorConfig{
		Alias:                      "scrub",
		Algorithm:                  testAlgorithm,
		Secret:                     secret.Source{PasswordEnv: "APP_PASSWORD"},
		DisablePasswordFileWatcher: true,
		ScrubSecrets:               true,
	}, testRegistry(), WithResolver(secret.Resolver{
		Env: secret.LookupFunc(func(name string) (string, bool) {
			calls++
			return "pw", name == "APP_PASSWORD"
		}),
	}))
	require.NoError(t, err)

	_, err = e.Encrypt("value")
	require.NoError(t, err)
	// one presence check to build, then one select and one read to operate
	assert.Equal(t, 3, calls)

	_, err = e.Encrypt("value")
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}
