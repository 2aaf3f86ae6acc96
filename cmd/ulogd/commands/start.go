package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/offlog/ulog/internal/config"
	"github.com/offlog/ulog/internal/logger"
	"github.com/offlog/ulog/internal/metrics"
	"github.com/offlog/ulog/pkg/server"
	"github.com/spf13/cobra"
)

var (
	foreground    bool
	pidFile       string
	socketPath    string
	serverLogPath string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ulogd daemon",
	Long: `Start the ulogd daemon, which accepts log bytes over a UNIX-domain
socket and appends them to files on behalf of its clients.

By default, the daemon runs in the background. Use --foreground to run in
the foreground for debugging or when managed by a process supervisor.

Examples:
  # Start in background (default)
  ulogd start

  # Start in foreground
  ulogd start --foreground

  # Start with a custom socket path
  ulogd start --socket-file /var/run/ulog.sock

  # Start with environment variable overrides
  ULOG_LOGGING_LEVEL=DEBUG ulogd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/ulog/ulogd.pid in background mode; none with --foreground)")
	startCmd.Flags().StringVarP(&socketPath, "socket-file", "s", "", "UNIX socket path (overrides configuration)")
	startCmd.Flags().StringVarP(&serverLogPath, "server-log-path", "l", "", "Path for the daemon's own operational log (overrides configuration)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if serverLogPath != "" {
		cfg.ServerLogPath = serverLogPath
	}

	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var m *metrics.Metrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server error", logger.Err(err))
			}
		}()
		logger.Info("metrics enabled", logger.Path(fmt.Sprintf(":%d", cfg.Metrics.Port)))
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	srv := server.New(server.Config{
		SocketPath:          cfg.SocketPath,
		ShutdownTimeout:     cfg.ShutdownTimeout,
		HandshakeBufferSize: cfg.HandshakeBufferSize,
		Metrics:             m,
	})

	logger.Info("ulogd starting", logger.Path(cfg.SocketPath))

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Run() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, draining sessions")
		srv.Shutdown()
		<-serverDone
		logger.Info("ulogd stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", logger.Err(err))
			return err
		}
	}

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(context.Background())
	}

	return nil
}
