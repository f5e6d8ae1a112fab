package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// hostSourceID keys the shared cursor record: the follower reads it and the
// acknowledgement sink writes it.
const hostSourceID = "host"

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "root-relay",
		Short: "Chain-notification bridge relaying state roots to L1",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to config file (falls back to environment)")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		validateCmd,
		runCmd,
		stateCmd,
		relayCmd,
	)
}

// Execute runs the root command tree.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
