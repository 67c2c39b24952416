package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTestConfig writes yamlContent to dsenc.yaml in a fresh temporary
// directory and returns its path.
//
// Example:
//
//	path := WriteTestConfig(t, `
//	version: 0
//	encryptors:
//	  - algorithm: PBEWITHMD5ANDDES
//	    password: s3cret
//	`)
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), "dsenc.yaml", yamlContent)
}

// WritePasswordFile writes password to a file readable only by the owner.
func WritePasswordFile(t *testing.T, dir, password string) string {
	t.Helper()
	return WriteFile(t, dir, "password", password)
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}
