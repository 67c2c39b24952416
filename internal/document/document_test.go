package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type mapDecryptor map[string]string

func (m mapDecryptor) IsEncrypted(v string) bool {
	return strings.HasPrefix(v, "ENC(") && strings.HasSuffix(v, ")")
}

func (m mapDecryptor) Decrypt(v string) (string, error) {
	p, ok := m[v]
	if !ok {
		return "", errors.New("unknown ciphertext")
	}
	return p, nil
}

func TestResolve(t *testing.T) {
	input := `database:
  user: app
  password: ENC(abc)
  port: 5432
servers:
  - name: a
    token: "ENC(def,tokens)"
  - name: b
flags:
  enabled: ENC(bool)
`
	d := mapDecryptor{"ENC(abc)": "s3cret", "ENC(def,tokens)": "tok", "ENC(bool)": "true"}

	res, err := Resolve([]byte(input), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"database.password", "servers.0.token", "flags.enabled"}, res.Paths)

	var out struct {
		Database struct {
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Port     int    `yaml:"port"`
		} `yaml:"database"`
		Servers []map[string]string    `yaml:"servers"`
		Flags   map[string]interface{} `yaml:"flags"`
	}
	require.NoError(t, yaml.Unmarshal(res.Data, &out))
	assert.Equal(t, "app", out.Database.User)
	assert.Equal(t, "s3cret", out.Database.Password)
	assert.Equal(t, 5432, out.Database.Port)
	assert.Equal(t, "tok", out.Servers[0]["token"])
	assert.Equal(t, "b", out.Servers[1]["name"])
	// decrypted values stay strings even when they look like booleans
	assert.Equal(t, "true", out.Flags["enabled"])
}

func TestResolveKeepsKeysAndPlainValues(t *testing.T) {
	input := "ENC(key): plain\nother: value\n"
	res, err := Resolve([]byte(input), mapDecryptor{})
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
	assert.Contains(t, string(res.Data), "ENC(key): plain")
}

func TestResolveReportsPath(t *testing.T) {
	input := "a:\n  b: ENC(missing)\n"
	_, err := Resolve([]byte(input), mapDecryptor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.b (line 2)")
	assert.Contains(t, err.Error(), "unknown ciphertext")
}

func TestResolveInvalidYAML(t *testing.T) {
	_, err := Resolve([]byte("a: [1,"), mapDecryptor{})
	assert.ErrorContains(t, err, "failed to parse document")
}

func TestResolveEmpty(t *testing.T) {
	res, err := Resolve(nil, mapDecryptor{})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
}
