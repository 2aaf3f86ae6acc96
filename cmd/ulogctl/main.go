// Command ulogctl is a minimal client exerciser for the ulog wire protocol:
// it opens a pkg/proxyfile.ProxyFile against a running ulogd and writes a
// single line, for manual smoke-testing from a shell.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/offlog/ulog/internal/cli/output"
	"github.com/offlog/ulog/pkg/proxyfile"
	"github.com/spf13/cobra"
)

var (
	socketPath       string
	filePath         string
	handshakeTimeout time.Duration
	closeTimeout     time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a single line to a running ulogd daemon",
	Long: `Connects to a running ulogd daemon, performs the filepath handshake, writes
the given message followed by a newline, and closes the connection.

Example:
  ulogctl send --file /tmp/out.log "hello from ulogctl"`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&socketPath, "socket-file", "/tmp/ulog.sock", "UNIX socket path of the running daemon")
	sendCmd.Flags().StringVar(&filePath, "file", "", "Absolute path of the file to append to")
	sendCmd.Flags().DurationVar(&handshakeTimeout, "handshake-timeout", 5*time.Second, "Handshake timeout")
	sendCmd.Flags().DurationVar(&closeTimeout, "close-timeout", 5*time.Second, "Close-drain timeout")
	_ = sendCmd.MarkFlagRequired("file")
}

func runSend(cmd *cobra.Command, args []string) error {
	p, err := proxyfile.Open(socketPath, filePath, handshakeTimeout, closeTimeout)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	line := args[0] + "\n"
	if err := p.Write([]byte(line)); err != nil {
		_ = p.Close()
		return fmt.Errorf("write: %w", err)
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	output.DefaultPrinter().Success(fmt.Sprintf("wrote %d bytes to %s via %s", len(line), filePath, socketPath))
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "ulogctl",
	Short: "ulogctl - manual exerciser for the ulog client protocol",
}

func main() {
	rootCmd.AddCommand(sendCmd)
	if err := rootCmd.Execute(); err != nil {
		output.ErrPrinter().Error(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}
