// Package cli implements the hirelight command line client for the
// inbox: listing threads and messages, sending replies, and the read,
// archive, and delete mutations with their bulk forms.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hirelight",
		Short:         "Hiring-pipeline inbox client",
		Long:          "hirelight keeps a local view of candidate email threads in sync and applies inbox actions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}
	cmd.PersistentFlags().String("config", "", "Config file path")
	cmd.PersistentFlags().Bool("json", false, "JSON output")

	cmd.AddCommand(
		newThreadsCmd(),
		newMessagesCmd(),
		newSendCmd(),
		newMarkReadCmd(),
		newArchiveCmd(),
		newUnarchiveCmd(),
		newDeleteCmd(),
		newWatchCmd(),
	)

	return cmd
}
