// Package cmd implements the conclave command line interface.
package cmd

import "github.com/spf13/cobra"

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "conclave",
		Short:         "Run multi-role deliberation meetings from the terminal",
		Long:          "conclave drives a roster of model-backed roles through moderated discussion rounds until they converge, then prints the resulting decision record, task list and risk register.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
	)

	return rootCmd
}
