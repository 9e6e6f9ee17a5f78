package app

import (
	"github.com/spf13/cobra"
)

// Domain: Shell Completion
// This file contains the cmd:completion command

// createCompletionCommand creates the cmd:completion subcommand
func (a *App) createCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cmd:completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `Generate shell completion script for credstore.

To load completions:

Bash:

  $ source <(credstore cmd:completion bash)

Zsh:

  $ credstore cmd:completion zsh > "${fpath[1]}/_credstore"

Fish:

  $ credstore cmd:completion fish | source

PowerShell:

  PS> credstore cmd:completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Annotations:           map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return a.rootCmd.GenBashCompletion(out)
			case "zsh":
				return a.rootCmd.GenZshCompletion(out)
			case "fish":
				return a.rootCmd.GenFishCompletion(out, true)
			default:
				return a.rootCmd.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
