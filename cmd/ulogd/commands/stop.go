package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/offlog/ulog/internal/cli/output"
	"github.com/offlog/ulog/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
)

// errProcessDone is a sentinel returned by stopProcess when the process has
// already exited.
var errProcessDone = errors.New("process already done")

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the ulogd daemon",
	Long: `Stop a running ulogd daemon.

By default, sends a graceful shutdown signal (SIGTERM) and lets the daemon
drain in-flight sessions before exiting. Use --force for immediate
termination; forcing skips the drain and is always confirmed
interactively first.

Examples:
  ulogd stop
  ulogd stop --pid-file /var/run/ulogd.pid
  ulogd stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/ulog/ulogd.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill instead of graceful shutdown")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PID file not found: %s\n\nIs the daemon running?", pidPath)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("invalid PID in file: %s", string(pidData))
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if stopForce {
		ok, err := prompt.Confirm(fmt.Sprintf("Force-kill ulogd (PID %d)? In-flight session data may be lost", pid), false)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return nil
			}
			return err
		}
		if !ok {
			output.DefaultPrinter().Warning("Aborted")
			return nil
		}
	}

	if err := stopProcess(process, pid, stopForce); err != nil {
		if errors.Is(err, errProcessDone) {
			output.DefaultPrinter().Warning("Daemon already stopped")
			_ = os.Remove(pidPath)
			return nil
		}
		return err
	}

	if stopForce {
		output.DefaultPrinter().Success("Daemon terminated")
	} else {
		output.DefaultPrinter().Success("Shutdown signal sent. Daemon will stop gracefully.")
	}

	return nil
}
