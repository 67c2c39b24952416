package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeFlag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"outputType", "output-type"},
		{"saltSize", "salt-size"},
		{"password-prop", "password-property"},
		{"ALGORITHM", "algorithm"},
		{"alias", "alias"},
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, pflag.NormalizedName(tt.want), normalizeFlag(fs, tt.in))
		})
	}
}

func TestNormalizedFlagParsing(t *testing.T) {
	var outputType string
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetNormalizeFunc(normalizeFlag)
	fs.StringVar(&outputType, "output-type", "base64", "")

	assert.NoError(t, fs.Parse([]string{"--outputType", "hexadecimal"}))
	assert.Equal(t, "hexadecimal", outputType)
}
