package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/dsenc/internal/algorithm"
	"github.com/systmms/dsenc/internal/bootstrap"
	"github.com/systmms/dsenc/internal/config"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/internal/secret"
	"github.com/systmms/dsenc/internal/unit"
	"github.com/systmms/dsenc/pkg/encryption"
)

// Options carries the global flags to every command
type Options struct {
	Config     *config.Config
	Properties map[string]string
}

func (o *Options) logger() *logging.Logger {
	if o.Config != nil && o.Config.Logger != nil {
		return o.Config.Logger
	}
	return logging.Discard()
}

// ParseProperties turns repeated -D key=value flags into a map
func ParseProperties(values []string) (map[string]string, error) {
	props := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, dserrors.UserError{
				Message:    fmt.Sprintf("Invalid property %q", v),
				Suggestion: "Use -D key=value",
			}
		}
		props[key] = value
	}
	return props, nil
}

// loadSystem loads the configuration file and assembles its units
func (o *Options) loadSystem() (*bootstrap.System, error) {
	if err := o.Config.Load(); err != nil {
		return nil, err
	}
	return bootstrap.Load(o.Config.Definition,
		bootstrap.WithLogger(o.logger()),
		bootstrap.WithProperties(o.Properties),
	)
}

// cipherFlags are the encryptor options shared by encrypt and decrypt
type cipherFlags struct {
	alias        string
	algorithm    string
	provider     string
	password     string
	passwordEnv  string
	passwordProp string
	passwordFile string
	outputType   string
	iterations   int
}

func (f *cipherFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.alias, "alias", "", "Use the configured encryptor with this alias")
	flags.StringVar(&f.algorithm, "algorithm", "", "PBE algorithm (ad-hoc mode)")
	flags.StringVar(&f.provider, "provider", "", "Algorithm provider name")
	flags.StringVar(&f.password, "password", "", "Password")
	flags.StringVar(&f.passwordEnv, "password-env", "", "Environment variable holding the password")
	flags.StringVar(&f.passwordProp, "password-property", "", "Process property holding the password")
	flags.StringVar(&f.passwordFile, "password-file", "", "File holding the password")
	flags.StringVar(&f.outputType, "output-type", "base64", "Output type: base64 or hexadecimal")
	flags.IntVar(&f.iterations, "iterations", 0, "Key obtention iterations (default 1000)")

	_ = cmd.RegisterFlagCompletionFunc("algorithm", completePBEAlgorithms)
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	_ = cmd.RegisterFlagCompletionFunc("output-type", completeOutputTypes)
}

func (f *cipherFlags) adhoc() bool {
	return f.algorithm != ""
}

// encryptor returns the encryptor selected by the flags and a function
// releasing it.
func (f *cipherFlags) encryptor(o *Options) (encryption.Encryptor, func(), error) {
	if !f.adhoc() {
		if f.password != "" || f.passwordEnv != "" || f.passwordProp != "" || f.passwordFile != "" {
			return nil, nil, dserrors.UserError{
				Message:    "A password was given without an algorithm",
				Suggestion: "Add --algorithm, or drop the password flags to use a configured encryptor",
			}
		}
		sys, err := o.loadSystem()
		if err != nil {
			return nil, nil, err
		}
		enc, err := sys.Encryptor(f.alias)
		if err != nil {
			sys.Close()
			return nil, nil, err
		}
		return enc, sys.Close, nil
	}

	src := secret.Source{
		Password:         f.password,
		PasswordFile:     f.passwordFile,
		PasswordEnv:      f.passwordEnv,
		PasswordProperty: f.passwordProp,
	}
	if src.IsZero() {
		return nil, nil, dserrors.UserError{
			Message:    "A password is required",
			Suggestion: "Use --password, --password-file, --password-env or --password-property",
		}
	}
	enc, err := algorithm.ParseEncoding(f.outputType, algorithm.Base64)
	if err != nil {
		return nil, nil, dserrors.UserError{Message: err.Error(), Suggestion: "Use --output-type base64 or hexadecimal"}
	}

	algorithm.Init()
	e, err := unit.NewStringEncryptor(unit.EncryptorConfig{
		Alias:                      f.alias,
		Algorithm:                  f.algorithm,
		Provider:                   f.provider,
		OutputEncoding:             enc,
		KeyObtentionIterations:     f.iterations,
		Secret:                     src,
		DisablePasswordFileWatcher: true,
	},
		unit.WithLogger(o.logger()),
		unit.WithResolver(secret.NewResolver(secret.NewProperties(o.Properties))),
	)
	if err != nil {
		algorithm.Shutdown()
		return nil, nil, err
	}
	return e, func() {
		_ = e.Close()
		algorithm.Shutdown()
	}, nil
}
