// Package testutil provides testing utilities for dsenc.
package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/dsenc/internal/logging"
)

// TestLogger captures log output for validation in tests.
//
// Units log from watcher and dispatch goroutines, so the buffer is safe
// for concurrent use.
//
// Example usage:
//
//	logger := NewTestLogger(t, true)
//	enc, _ := unit.NewStringEncryptor(cfg, unit.WithLogger(logger.Logger))
//	logger.AssertContains(t, "Built cipher")
type TestLogger struct {
	*logging.Logger

	mu     sync.Mutex
	buffer bytes.Buffer
}

// NewTestLogger creates a colorless logger writing to an in-memory buffer.
func NewTestLogger(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	l := &TestLogger{}
	l.Logger = logging.NewWithWriter(writerFunc(l.write), debug, true)
	return l
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func (l *TestLogger) write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.Write(p)
}

// GetOutput returns everything logged so far.
func (l *TestLogger) GetOutput() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.String()
}

// Lines returns the logged lines without the trailing empty one.
func (l *TestLogger) Lines() []string {
	out := strings.TrimRight(l.GetOutput(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Clear drops the captured output.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer.Reset()
}

// AssertContains fails the test if substr was not logged.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr)
}

// AssertNotContains fails the test if substr was logged.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr)
}

// AssertRedacted verifies that secretValue never reached the log and that
// a redaction marker did.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()
	AssertSecretRedacted(t, l.GetOutput(), secretValue)
}

// AssertLogCount checks the number of lines logged at level, given as
// "info", "warn", "error" or "debug".
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	prefixes := map[string]string{
		"info":  "✓ ",
		"warn":  "⚠ ",
		"error": "✗ ",
		"debug": "[DEBUG] ",
	}
	prefix, ok := prefixes[level]
	if !ok {
		t.Fatalf("unknown log level %q", level)
	}

	n := 0
	for _, line := range l.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	assert.Equal(t, count, n, "expected %d %s line(s) in:\n%s", count, level, l.GetOutput())
}
