package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/dsenc/internal/logging"
)

func TestTestLogger(t *testing.T) {
	logger := NewTestLogger(t, true)

	logger.Info("loaded %d unit(s)", 2)
	logger.Warn("ambiguous alias")
	logger.Debug("value %s", logging.Secret("hunter2-hunter2"))

	logger.AssertContains(t, "loaded 2 unit(s)")
	logger.AssertLogCount(t, "info", 1)
	logger.AssertLogCount(t, "warn", 1)
	logger.AssertLogCount(t, "error", 0)
	logger.AssertRedacted(t, "hunter2-hunter2")

	logger.Clear()
	assert.Empty(t, logger.Lines())
}

func TestTestLoggerConcurrentWrites(t *testing.T) {
	logger := NewTestLogger(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("tick")
		}()
	}
	wg.Wait()

	assert.Len(t, logger.Lines(), 20)
}

func TestWriteFiles(t *testing.T) {
	path := WriteTestConfig(t, "version: 0\n")
	AssertFileContents(t, path, "version: 0\n")

	pw := WritePasswordFile(t, t.TempDir(), "s3cret")
	AssertFileContents(t, pw, "s3cret")
	AssertNoSecretLeak(t, "nothing to see", []string{"s3cret"})
}
