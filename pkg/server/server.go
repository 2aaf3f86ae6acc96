// Package server implements the ulog daemon's accept loop: a UNIX-domain
// socket listener that hands each accepted connection to its own Session
// goroutine, tracks the live session set, and drives the graceful shutdown
// sequence described in §4.3.
package server

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/offlog/ulog/internal/logger"
	"github.com/offlog/ulog/internal/metrics"
	"github.com/offlog/ulog/pkg/filehandler"
	"github.com/offlog/ulog/pkg/session"
)

// Config holds the parameters needed to run a Server.
type Config struct {
	// SocketPath is the filesystem path of the UNIX socket to bind. Any
	// pre-existing entry at this path is unlinked before binding.
	SocketPath string

	// ShutdownTimeout bounds how long Shutdown waits for sessions to
	// drain before it forcibly closes the remaining ones.
	ShutdownTimeout time.Duration

	// HandshakeBufferSize sizes each Session's per-read buffer, used while
	// accumulating the pending filepath and while streaming. Zero means
	// "use the session package's default".
	HandshakeBufferSize int

	// Metrics, if non-nil, receives session and file handler instrument
	// updates. A nil value (the default, and what every existing test
	// leaves it as) disables reporting without any call-site branching.
	Metrics *metrics.Metrics
}

// Server owns the listening socket, the FileHandler registry, and the set
// of live Sessions. One Server per daemon process.
type Server struct {
	cfg      Config
	registry *filehandler.Registry

	listener *net.UnixListener

	mu       sync.Mutex
	sessions map[uint64]*session.Session
	wg       sync.WaitGroup

	nextID atomic.Uint64

	shutdownOnce sync.Once
	closed       chan struct{}
}

// New constructs a Server bound to cfg. Call Run to start accepting.
func New(cfg Config) *Server {
	registry := filehandler.NewRegistry()
	registry.SetMetrics(cfg.Metrics)
	return &Server{
		cfg:      cfg,
		registry: registry,
		sessions: make(map[uint64]*session.Session),
		closed:   make(chan struct{}),
	}
}

// Registry exposes the server's FileHandler registry, mainly for metrics.
func (s *Server) Registry() *filehandler.Registry {
	return s.registry
}

// SessionCount returns the number of currently live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run binds the configured socket and accepts connections until Shutdown
// is called. It returns once the listener is closed and every Accept has
// unwound; it does not itself wait for sessions to drain (call Shutdown
// for that, typically from a signal handler running concurrently with
// Run).
func (s *Server) Run() error {
	_ = os.Remove(s.cfg.SocketPath)

	addr, err := net.ResolveUnixAddr("unix", s.cfg.SocketPath)
	if err != nil {
		return err
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	logger.Info("ulog server listening", logger.Path(s.cfg.SocketPath))

	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
				logger.Debug("accept failed", logger.Err(err))
				continue
			}
		}

		id := s.nextID.Add(1)
		sess := session.New(id, conn, s.registry)
		sess.SetMetrics(s.cfg.Metrics)
		sess.SetReadBufferSize(s.cfg.HandshakeBufferSize)

		s.mu.Lock()
		s.sessions[id] = sess
		active := len(s.sessions)
		s.mu.Unlock()

		logger.Debug("session accepted", logger.ClientID(id), logger.RefCount(active))
		s.cfg.Metrics.SessionAccepted()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.Run()
			s.mu.Lock()
			delete(s.sessions, id)
			s.mu.Unlock()
			s.cfg.Metrics.SessionClosed()
		}()
	}
}

// Shutdown implements the §4.3 graceful shutdown sequence: stop accepting,
// unlink the socket path, notify every live session, then wait (up to
// ShutdownTimeout) for the session set to drain to empty.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		logger.Info("ulog server shutdown initiated")
		close(s.closed)

		if s.listener != nil {
			_ = s.listener.Close()
		}
		_ = os.Remove(s.cfg.SocketPath)

		s.mu.Lock()
		live := make([]*session.Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			live = append(live, sess)
		}
		s.mu.Unlock()

		for _, sess := range live {
			sess.SendShutdownNotice()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("ulog server shutdown complete: all sessions closed")
		case <-time.After(s.cfg.ShutdownTimeout):
			remaining := s.SessionCount()
			logger.Warn("ulog server shutdown timeout exceeded, forcing closure", logger.RefCount(remaining))
			s.mu.Lock()
			for _, sess := range s.sessions {
				sess.Close()
			}
			s.mu.Unlock()
			<-done
		}
	})
}
