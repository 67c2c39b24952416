package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/dsenc/internal/algorithm"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand(_ *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for dsenc.

To load completions:

Bash:
  $ source <(dsenc completion bash)

  # To load completions for each session, execute once:
  $ dsenc completion bash > /etc/bash_completion.d/dsenc

Zsh:
  $ dsenc completion zsh > "${fpath[1]}/_dsenc"

Fish:
  $ dsenc completion fish > ~/.config/fish/completions/dsenc.fish

PowerShell:
  PS> dsenc completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

func filterPrefix(values []string, prefix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(strings.ToUpper(v), strings.ToUpper(prefix)) {
			out = append(out, v)
		}
	}
	return out
}

func completePBEAlgorithms(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	r := algorithm.NewRegistry(algorithm.Builtin()...)
	return filterPrefix(r.PBEAlgorithms(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeDigestAlgorithms(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	r := algorithm.NewRegistry(algorithm.Builtin()...)
	return filterPrefix(r.DigestAlgorithms(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeProviders(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var names []string
	for _, p := range algorithm.Builtin() {
		names = append(names, p.Name())
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeOutputTypes(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix([]string{"base64", "hexadecimal"}, toComplete), cobra.ShellCompDirectiveNoFileComp
}
