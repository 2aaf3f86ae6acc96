//go:build windows

package commands

import (
	"fmt"
	"os"

	"github.com/offlog/ulog/internal/cli/output"
)

// stopProcess always force-terminates on windows; graceful SIGTERM has no
// equivalent, so force is ignored and Kill is used either way.
func stopProcess(process *os.Process, pid int, force bool) error {
	output.DefaultPrinter().Printf("Terminating process %d...\n", pid)
	if err := process.Kill(); err != nil {
		if err == os.ErrProcessDone {
			return errProcessDone
		}
		return fmt.Errorf("failed to terminate process: %w", err)
	}
	return nil
}
