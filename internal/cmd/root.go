// Package cmd provides the cc-sessions CLI's cobra commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Command groups, shown as section headers in `cc-sessions --help`.
const (
	GroupWorkflow = "workflow"
	GroupServices = "services"
)

var rootCmd = &cobra.Command{
	Use:   "cc-sessions",
	Short: "Workflow enforcement for AI coding sessions",
	Long: `cc-sessions sits between an AI coding host agent and a developer's
project, enforcing a discussion/orchestration mode discipline, tracking
task state and sub-agent ownership, and serving hook calls through a
background daemon for speed.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWorkflow, Title: "Workflow Commands:"},
		&cobra.Group{ID: GroupServices, Title: "Service Commands:"},
	)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// requireSubcommand is the RunE for any command that exists only to
// group subcommands and should error if invoked bare.
func requireSubcommand(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}
