package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imageguard/imageguard/cmd/imageguard/commands"
	"github.com/imageguard/imageguard/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := commands.RootCommand()
	configureLogs(cmd)
	if err := cmd.Execute(); err != nil {
		return fmt.Errorf("failed to execute command (%w)", err)
	}
	return nil
}

func configureLogs(cli *cobra.Command) {
	logging.InitFlags(nil)
	cli.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}
