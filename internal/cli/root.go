package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Mail triage agent for a property management mailbox",
	Long: `Polls the shared mailbox, files recognised emails under Immobili/<building>/<category>,
creates follow-up To Do tasks and keeps everything else in a review queue served over HTTP.

Running without a subcommand is the same as "agent serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
