package config

import (
	"fmt"
	"os"

	"github.com/systmms/dsenc/internal/algorithm"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/internal/secret"
	"github.com/systmms/dsenc/internal/unit"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "dsenc.yaml"

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the dsenc.yaml structure
type Definition struct {
	Version            int               `yaml:"version"`
	DefaultAlias       string            `yaml:"default_alias,omitempty"`
	StrictPlaceholders bool              `yaml:"strict_placeholders,omitempty"`
	ScrubSecrets       bool              `yaml:"scrub_secrets,omitempty"`
	Properties         map[string]string `yaml:"properties,omitempty"`
	Metrics            MetricsConfig     `yaml:"metrics,omitempty"`
	Encryptors         []EncryptorConfig `yaml:"encryptors,omitempty"`
	Digesters          []DigesterConfig  `yaml:"digesters,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint of 'dsenc serve'
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address,omitempty"`
	Path      string `yaml:"path,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// EncryptorConfig is one entry of 'encryptors'
type EncryptorConfig struct {
	Alias                     string `yaml:"alias,omitempty"`
	Algorithm                 string `yaml:"algorithm"`
	Provider                  string `yaml:"provider,omitempty"`
	OutputEncoding            string `yaml:"output_encoding,omitempty"`
	KeyObtentionIterations    int    `yaml:"key_obtention_iterations,omitempty"`
	Password                  string `yaml:"password,omitempty"`
	PasswordFile              string `yaml:"password_file,omitempty"`
	PasswordFileEnv           string `yaml:"password_file_env,omitempty"`
	PasswordFileProperty      string `yaml:"password_file_property,omitempty"`
	PasswordEnv               string `yaml:"password_env,omitempty"`
	PasswordProperty          string `yaml:"password_property,omitempty"`
	EnablePasswordFileWatcher *bool  `yaml:"enable_password_file_watcher,omitempty"`
}

// DigesterConfig is one entry of 'digesters'
type DigesterConfig struct {
	Alias          string `yaml:"alias,omitempty"`
	Algorithm      string `yaml:"algorithm"`
	Provider       string `yaml:"provider,omitempty"`
	OutputEncoding string `yaml:"output_encoding,omitempty"`
	Iterations     int    `yaml:"iterations,omitempty"`
	SaltSize       int    `yaml:"salt_size,omitempty"`
}

// Load reads, validates and parses the configuration file
func (c *Config) Load() error {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a dsenc.yaml with an 'encryptors' section or pass --config",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	if c.Logger != nil {
		c.Logger.Debug("Loaded %s: %d encryptor(s), %d digester(s)", c.Path, len(def.Encryptors), len(def.Digesters))
	}
	return nil
}

// Parse validates data against the configuration schema and decodes it
func Parse(data []byte) (*Definition, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your dsenc.yaml file",
		}
	}

	for i, e := range def.Encryptors {
		if _, err := algorithm.ParseEncoding(e.OutputEncoding, algorithm.Base64); err != nil {
			return nil, dserrors.ConfigError{
				Field:      fmt.Sprintf("encryptors[%d].output_encoding", i),
				Value:      e.OutputEncoding,
				Message:    "unsupported output encoding",
				Suggestion: "Use base64 or hexadecimal",
			}
		}
	}
	for i, d := range def.Digesters {
		if _, err := algorithm.ParseEncoding(d.OutputEncoding, algorithm.Base64); err != nil {
			return nil, dserrors.ConfigError{
				Field:      fmt.Sprintf("digesters[%d].output_encoding", i),
				Value:      d.OutputEncoding,
				Message:    "unsupported output encoding",
				Suggestion: "Use base64 or hexadecimal",
			}
		}
	}
	return &def, nil
}

// WithDefaults returns m with empty fields filled in
func (m MetricsConfig) WithDefaults() MetricsConfig {
	if m.Address == "" {
		m.Address = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
	if m.Namespace == "" {
		m.Namespace = "dsenc"
	}
	return m
}

// WatcherEnabled reports whether the password file watcher is on; it
// defaults to true.
func (e EncryptorConfig) WatcherEnabled() bool {
	return e.EnablePasswordFileWatcher == nil || *e.EnablePasswordFileWatcher
}

// Source returns the password origins of the encryptor
func (e EncryptorConfig) Source() secret.Source {
	return secret.Source{
		Password:             e.Password,
		PasswordFile:         e.PasswordFile,
		PasswordFileEnv:      e.PasswordFileEnv,
		PasswordFileProperty: e.PasswordFileProperty,
		PasswordEnv:          e.PasswordEnv,
		PasswordProperty:     e.PasswordProperty,
	}
}

// Unit converts the entry into the unit configuration. scrub is the
// top level scrub_secrets setting.
func (e EncryptorConfig) Unit(scrub bool) (unit.EncryptorConfig, error) {
	enc, err := algorithm.ParseEncoding(e.OutputEncoding, algorithm.Base64)
	if err != nil {
		return unit.EncryptorConfig{}, err
	}
	return unit.EncryptorConfig{
		Alias:                      e.Alias,
		Algorithm:                  e.Algorithm,
		Provider:                   e.Provider,
		OutputEncoding:             enc,
		KeyObtentionIterations:     e.KeyObtentionIterations,
		Secret:                     e.Source(),
		DisablePasswordFileWatcher: !e.WatcherEnabled(),
		ScrubSecrets:               scrub,
	}, nil
}

// Unit converts the entry into the unit configuration
func (d DigesterConfig) Unit() (unit.DigesterConfig, error) {
	enc, err := algorithm.ParseEncoding(d.OutputEncoding, algorithm.Base64)
	if err != nil {
		return unit.DigesterConfig{}, err
	}
	return unit.DigesterConfig{
		Alias:          d.Alias,
		Algorithm:      d.Algorithm,
		Provider:       d.Provider,
		OutputEncoding: enc,
		Iterations:     d.Iterations,
		SaltSize:       d.SaltSize,
	}, nil
}
