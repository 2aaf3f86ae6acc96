//go:build !windows

package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/offlog/ulog/internal/cli/output"
)

// isProcessRunning reads a PID from the given file and checks whether that
// process is still alive. Returns the PID and true if running, or 0 and
// false otherwise.
func isProcessRunning(pidPath string) (int, bool) {
	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}

	var pid int
	if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err != nil {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}

	return pid, true
}

// startDaemon re-execs the current binary with --foreground and a detached
// stdio, then returns immediately, leaving the child to run the server.
func startDaemon() error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(stateDir, "ulogd.pid")
	}

	if pid, running := isProcessRunning(pidPath); running {
		return fmt.Errorf("ulogd is already running (PID %d)\nUse 'ulogd stop' to stop the running instance", pid)
	}
	_ = os.Remove(pidPath)

	logPath := serverLogPath
	if logPath == "" {
		logPath = filepath.Join(stateDir, "ulogd.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath, "--server-log-path", logPath}
	if socketPath != "" {
		daemonArgs = append(daemonArgs, "--socket-file", socketPath)
	}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	p := output.DefaultPrinter()
	p.Success(fmt.Sprintf("ulogd started in background (PID %d)", cmd.Process.Pid))
	p.Printf("  PID file: %s\n", pidPath)
	p.Printf("  Log file: %s\n", logPath)
	p.Println("\nUse 'ulogd stop' to stop the daemon")
	p.Println("Use 'ulogd status' to check daemon status")

	return nil
}
