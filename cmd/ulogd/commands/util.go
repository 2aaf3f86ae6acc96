package commands

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/offlog/ulog/internal/config"
	"github.com/offlog/ulog/internal/logger"
)

// InitLogger initializes the daemon's structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	output := cfg.ServerLogPath
	if output == "" {
		output = "stdout"
	}
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	})
}

// GetDefaultStateDir returns the default state directory for PID and log files.
func GetDefaultStateDir() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, "ulog")
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "ulog")
		}
		return filepath.Join(homeDir, "AppData", "Local", "ulog")
	}

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "ulog")
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "ulog")
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "ulogd.pid")
}

// GetDefaultLogFile returns the default log file path for daemon mode.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "ulogd.log")
}
