// Package commands implements the imageguard command line.
package commands

import "github.com/spf13/cobra"

func RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "imageguard",
		Short:        "Validate workload images against registry, tag and image policies",
		SilenceUsage: true,
	}
	cmd.AddCommand(ServeCommand())
	cmd.AddCommand(ValidateCommand())
	return cmd
}
