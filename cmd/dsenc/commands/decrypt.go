package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/dsenc/internal/decryptor"
)

func NewDecryptCommand(opts *Options) *cobra.Command {
	var (
		flags cipherFlags
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "decrypt TEXT",
		Short: "Decrypt a value or ENC(...) placeholder",
		Long: `Decrypt a value with a configured encryptor or with ad-hoc options.

Placeholders are dispatched by their alias when no --algorithm is given:
ENC(x,orders) is decrypted by the encryptor registered as 'orders'.

Examples:
  # Decrypt a placeholder using dsenc.yaml
  dsenc decrypt 'ENC(3q2+7w==,orders)'

  # Ad-hoc decryption
  dsenc decrypt '3q2+7w==' --algorithm PBEWITHMD5ANDDES --password s3cret`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			p, isPlaceholder := decryptor.Parse(text)

			var plain string
			if !flags.adhoc() && isPlaceholder && flags.alias == "" {
				sys, err := opts.loadSystem()
				if err != nil {
					return err
				}
				defer sys.Close()
				if plain, err = sys.Decryptor().Decrypt(text); err != nil {
					return err
				}
			} else {
				enc, release, err := flags.encryptor(opts)
				if err != nil {
					return err
				}
				defer release()
				if isPlaceholder {
					text = p.Ciphertext
				}
				if plain, err = enc.Decrypt(text); err != nil {
					return err
				}
			}

			if raw {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), plain)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Decrypted value is: "+plain)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the decrypted value")

	return cmd
}
