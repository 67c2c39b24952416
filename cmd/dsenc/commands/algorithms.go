package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/dsenc/internal/algorithm"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/pkg/encryption"
)

func NewAlgorithmsCommand(opts *Options) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "algorithms",
		Short: "List supported algorithms",
		Long: `Display the PBE and digest algorithms of every registered provider.

Also shows the units of the configuration file when one can be loaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind = strings.ToLower(kind)
			if kind != "" && kind != "pbe" && kind != "digest" {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Unknown algorithm type %q", kind),
					Suggestion: "Use --type pbe or --type digest",
				}
			}

			algorithm.Init()
			defer algorithm.Shutdown()

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Algorithms:")
			_, _ = fmt.Fprintln(out, "===========")

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "PROVIDER\tTYPE\tALGORITHM\n")
			_, _ = fmt.Fprintf(w, "--------\t----\t---------\n")
			for _, p := range algorithm.Default().Providers() {
				if kind == "" || kind == "pbe" {
					for _, name := range p.PBEAlgorithms() {
						_, _ = fmt.Fprintf(w, "%s\tpbe\t%s\n", p.Name(), name)
					}
				}
				if kind == "" || kind == "digest" {
					for _, name := range p.DigestAlgorithms() {
						_, _ = fmt.Fprintf(w, "%s\tdigest\t%s\n", p.Name(), name)
					}
				}
			}
			_ = w.Flush()

			// Show configured units if config is available
			if err := opts.Config.Load(); err != nil || opts.Config.Definition == nil {
				opts.logger().Debug("No configuration loaded: %v", err)
				return nil
			}
			def := opts.Config.Definition

			_, _ = fmt.Fprintln(out, "\nConfigured Units:")
			_, _ = fmt.Fprintln(out, "=================")
			if len(def.Encryptors) == 0 && len(def.Digesters) == 0 {
				_, _ = fmt.Fprintln(out, "No units configured")
				return nil
			}

			w2 := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w2, "ALIAS\tTYPE\tALGORITHM\n")
			_, _ = fmt.Fprintf(w2, "-----\t----\t---------\n")
			for _, e := range def.Encryptors {
				_, _ = fmt.Fprintf(w2, "%s\tencryptor\t%s\n", aliasOrDefault(e.Alias, def.DefaultAlias), e.Algorithm)
			}
			for _, d := range def.Digesters {
				_, _ = fmt.Fprintf(w2, "%s\tdigester\t%s\n", aliasOrDefault(d.Alias, def.DefaultAlias), d.Algorithm)
			}
			return w2.Flush()
		},
	}

	cmd.Flags().StringVar(&kind, "type", "", "Only list one algorithm type: pbe or digest")

	return cmd
}

func aliasOrDefault(alias, def string) string {
	switch {
	case alias != "":
		return alias
	case def != "":
		return def
	default:
		return encryption.DefaultAlias
	}
}
