package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/dsenc/internal/decryptor"
)

func NewEncryptCommand(opts *Options) *cobra.Command {
	var (
		flags cipherFlags
		raw   bool
		wrap  bool
	)

	cmd := &cobra.Command{
		Use:   "encrypt TEXT",
		Short: "Encrypt a value",
		Long: `Encrypt a value with a configured encryptor or with ad-hoc options.

Without --algorithm the encryptor registered under --alias (or the default
alias) in the configuration file is used.

Examples:
  # Encrypt with the default encryptor of dsenc.yaml
  dsenc encrypt 's3cret' --wrap

  # Ad-hoc encryption with a password from the environment
  dsenc encrypt 's3cret' --algorithm PBEWITHHMACSHA512ANDAES_256 --password-env APP_PASSWORD

  # Print only the value, ready for scripts
  dsenc encrypt 's3cret' --alias orders --wrap --raw`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, release, err := flags.encryptor(opts)
			if err != nil {
				return err
			}
			defer release()

			ct, err := enc.Encrypt(args[0])
			if err != nil {
				return err
			}
			if wrap {
				ct = decryptor.Wrap(ct, flags.alias)
			}
			if raw {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), ct)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Encrypted value is: "+ct)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the encrypted value")
	cmd.Flags().BoolVar(&wrap, "wrap", false, "Wrap the value as ENC(...) placeholder")

	return cmd
}
