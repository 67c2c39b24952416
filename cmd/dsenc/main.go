package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/systmms/dsenc/cmd/dsenc/commands"
	"github.com/systmms/dsenc/internal/config"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/logging"
	"github.com/systmms/dsenc/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	secure.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
		properties []string
	)

	opts := &commands.Options{Config: &config.Config{}}

	rootCmd := &cobra.Command{
		Use:   "dsenc",
		Short: "Encrypt, decrypt and digest configuration values",
		Long: `dsenc manages ENC(...) placeholders in configuration files.

Values are encrypted with password based encryptors and resolved at load
time by alias. Passwords come from the configuration, password files,
environment variables or -D properties.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(debug, noColor)

			props, err := commands.ParseProperties(properties)
			if err != nil {
				return err
			}

			opts.Config.Path = configFile
			opts.Config.Logger = logger
			opts.Properties = props
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringArrayVarP(&properties, "property", "D", nil, "Process property as key=value (repeatable)")
	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)

	rootCmd.AddCommand(
		commands.NewEncryptCommand(opts),
		commands.NewDecryptCommand(opts),
		commands.NewDigestCommand(opts),
		commands.NewAlgorithmsCommand(opts),
		commands.NewResolveCommand(opts),
		commands.NewServeCommand(opts),
		commands.NewCompletionCommand(opts),
	)

	return rootCmd.Execute()
}

// normalizeFlag accepts camel case spellings such as --outputType and --saltSize.
func normalizeFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "outputType":
		name = "output-type"
	case "saltSize":
		name = "salt-size"
	case "password-prop":
		name = "password-property"
	}
	return pflag.NormalizedName(strings.ToLower(name))
}
