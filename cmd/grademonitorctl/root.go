package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grademonitorctl",
	Short: "Offline tools for the grade monitor",
	Long: `grademonitorctl projects a course from a YAML fixture and replays
edit sequences against a virtual clock, printing each change-set the
monitor would persist.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
