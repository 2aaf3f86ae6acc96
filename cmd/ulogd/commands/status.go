package commands

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/offlog/ulog/internal/cli/output"
	"github.com/offlog/ulog/internal/config"
	"github.com/spf13/cobra"
)

var statusPidFile string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ulogd daemon status",
	Long: `Display whether the ulogd daemon is running, its PID, socket path, and
uptime, determined from the PID file and a non-blocking probe of the
configured socket.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/ulog/ulogd.pid)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rows := [][2]string{
		{"PID file", pidPath},
		{"Socket path", cfg.SocketPath},
	}

	pid, running := isProcessRunning(pidPath)
	if running {
		rows = append(rows, [2]string{"Status", fmt.Sprintf("running (PID %d)", pid)})
		if info, err := os.Stat(pidPath); err == nil {
			rows = append(rows, [2]string{"Uptime", time.Since(info.ModTime()).Round(time.Second).String()})
		}
	} else {
		rows = append(rows, [2]string{"Status", "not running"})
	}

	rows = append(rows, [2]string{"Socket accepting", socketAccepting(cfg.SocketPath)})

	return output.SimpleTable(os.Stdout, rows)
}

// socketAccepting reports whether a UNIX socket at path currently accepts
// connections, via a short non-blocking dial probe.
func socketAccepting(path string) string {
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err != nil {
		return "no"
	}
	_ = conn.Close()
	return "yes"
}
