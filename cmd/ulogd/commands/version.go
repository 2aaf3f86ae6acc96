package commands

import (
	"fmt"

	"github.com/offlog/ulog/internal/cli/output"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ulogd version",
	RunE: func(cmd *cobra.Command, args []string) error {
		output.DefaultPrinter().Println(fmt.Sprintf("ulogd %s (commit %s, built %s)", Version, Commit, Date))
		return nil
	},
}
