package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the result table names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, name := range analytics.TableNames {
			if _, err := fmt.Fprintln(out, name); err != nil {
				return err
			}
		}
		return nil
	},
}
