package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/systmms/dsenc/internal/bootstrap"
	"github.com/systmms/dsenc/internal/document"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/unit"
)

func NewResolveCommand(opts *Options) *cobra.Command {
	var (
		file   string
		output string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Decrypt every ENC(...) value of a YAML document",
		Long: `Resolve a YAML document, replacing each ENC(...) string with its plaintext.

Placeholders are decrypted by the encryptors of the configuration file.
With --watch the document is rendered again whenever a password file of
a configured encryptor changes.

Examples:
  dsenc resolve --file application.yaml
  dsenc resolve --file application.yaml --output /run/app/config.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Failed to read %s", file),
					Details:    err.Error(),
					Suggestion: "Check the --file path",
					Err:        err,
				}
			}

			sys, err := opts.loadSystem()
			if err != nil {
				return err
			}
			defer sys.Close()

			logger := opts.logger()
			render := func() error {
				res, err := document.Resolve(data, sys.Decryptor())
				if err != nil {
					return err
				}
				logger.Debug("Decrypted %d value(s) of %s", len(res.Paths), file)
				return writeDocument(cmd.OutOrStdout(), output, res.Data)
			}

			if err := render(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			watchDocument(ctx, sys, func(c unit.Change) {
				logger.Info("Password of '%s' %s, rendering %s again", c.Alias, c.Event.Kind, file)
				if err := render(); err != nil {
					logger.Error("Failed to render %s: %v", file, err)
				}
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML document to resolve")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the resolved document to this file instead of stdout")
	cmd.Flags().BoolVar(&watch, "watch", false, "Render again when a password file changes")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// watchDocument calls onChange after every password change until ctx ends.
// Changes arriving while onChange runs are coalesced.
func watchDocument(ctx context.Context, sys *bootstrap.System, onChange func(unit.Change)) {
	changed := make(chan unit.Change, 1)
	sys.Subscribe(func(c unit.Change) {
		select {
		case changed <- c:
		default:
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-changed:
			onChange(c)
		}
	}
}

func writeDocument(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
