//go:build windows

package commands

import "fmt"

func isProcessRunning(pidPath string) (int, bool) {
	return 0, false
}

func startDaemon() error {
	return fmt.Errorf("background daemon mode is not supported on windows; use --foreground")
}
