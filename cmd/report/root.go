package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "moodle-report",
	Short:         "Moodle learning analytics reports",
	Long:          "moodle-report loads a Moodle snapshot, runs the analytics pipeline and writes the result tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(tablesCmd)
}
