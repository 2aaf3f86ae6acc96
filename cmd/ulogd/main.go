package main

import (
	"fmt"
	"os"

	"github.com/offlog/ulog/cmd/ulogd/commands"
	"github.com/offlog/ulog/internal/cli/output"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		output.ErrPrinter().Error(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}
