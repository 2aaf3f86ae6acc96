// Package session implements the per-connection state machine: HANDSHAKE,
// where the client's filepath is accumulated and validated, and
// STREAMING, where received bytes are appended verbatim to the chosen
// FileHandler.
package session

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/offlog/ulog/internal/logger"
	"github.com/offlog/ulog/internal/metrics"
	"github.com/offlog/ulog/pkg/filehandler"
	"github.com/offlog/ulog/pkg/wire"
)

// defaultReadBufferSize is used when a Session has not been given an
// explicit read buffer size (SetReadBufferSize never called, or called
// with n <= 0).
const defaultReadBufferSize = 4096

// State is one of the three states a Session moves through during its
// lifetime: HANDSHAKE -> STREAMING -> CLOSED.
type State int

const (
	StateHandshake State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "HANDSHAKE"
	case StateStreaming:
		return "STREAMING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Session is the server-side per-connection object: one per accepted
// client socket. The accumulator, state, and handler reference are only
// ever touched by the goroutine running Run, so no locking is needed
// within a Session — the teacher's base adapter gets the same property
// for free by giving each connection its own goroutine
// (pkg/adapter/base.go's ServeWithFactory).
type Session struct {
	ID       uint64
	registry *filehandler.Registry
	metrics  *metrics.Metrics

	conn net.Conn

	readBufSize int

	state State
	accum []byte
	fh    *filehandler.Handler

	// shutdownNotified is set by SendShutdownNotice (called from the
	// Server's goroutine), so the EOF caused by the server's own read
	// half-close is not answered with a BYE.
	shutdownNotified atomic.Bool
}

// New creates a Session bound to an accepted connection. id must be
// unique for the lifetime of the owning Server.
func New(id uint64, conn net.Conn, registry *filehandler.Registry) *Session {
	return &Session{
		ID:       id,
		registry: registry,
		conn:     conn,
		state:    StateHandshake,
	}
}

// SetMetrics attaches m so handshake-error counts are reported through it.
// A nil m (the default) disables reporting.
func (s *Session) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetReadBufferSize sets the per-read buffer size used while accumulating
// the pending filepath and while streaming, per the configured
// handshake_buffer_size (internal/config). n <= 0 is ignored and the
// default is kept; it is never a protocol limit — PATH_MAX still bounds
// the handshake accumulator regardless of this setting.
func (s *Session) SetReadBufferSize(n int) {
	if n > 0 {
		s.readBufSize = n
	}
}

func (s *Session) readBufferSize() int {
	if s.readBufSize > 0 {
		return s.readBufSize
	}
	return defaultReadBufferSize
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Run drives the Session until the client disconnects, a protocol error
// occurs, or the connection is closed out-of-band (by Server during
// shutdown). It never returns an error: every failure is logged and
// translated into session teardown, matching the spec's "one bad session
// cannot take down the server" policy.
func (s *Session) Run() {
	defer s.teardown()

	for s.state != StateClosed {
		switch s.state {
		case StateHandshake:
			if !s.runHandshake() {
				return
			}
		case StateStreaming:
			if !s.runStreaming() {
				return
			}
		}
	}
}

// runHandshake reads one chunk of bytes and splits it at the first NUL,
// per §4.2: bytes before the NUL accumulate into the pending filepath;
// if no NUL has appeared the accumulator simply grows (bounded by
// PATH_MAX) and the caller loops to read more. Once a NUL is seen, the
// handshake resolves in this call.
func (s *Session) runHandshake() bool {
	buf := make([]byte, s.readBufferSize())
	n, err := s.conn.Read(buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			logger.Debug("handshake read failed", logger.ClientID(s.ID), logger.Err(err))
		}
		return false
	}
	buf = buf[:n]

	nulIdx := bytes.IndexByte(buf, wire.NUL)
	if nulIdx < 0 {
		s.accum = append(s.accum, buf...)
		if len(s.accum) > wire.PathMax {
			s.sendError(&wire.WireError{Kind: wire.KindValueError, Message: "path too long"})
			return false
		}
		return true
	}

	s.accum = append(s.accum, buf[:nulIdx]...)
	extradata := buf[nulIdx+1:]

	if len(s.accum) > wire.PathMax {
		s.sendError(&wire.WireError{Kind: wire.KindValueError, Message: "path too long"})
		return false
	}

	path := string(s.accum)
	if !strings.HasPrefix(path, "/") {
		s.sendError(&wire.WireError{Kind: wire.KindValueError, Message: "not an absolute path"})
		return false
	}

	h, err := s.registry.Instance(path)
	if err != nil {
		s.sendError(&wire.WireError{Kind: wire.KindOSError, Message: err.Error()})
		return false
	}

	s.fh = h
	s.accum = nil
	s.registry.NewClient(h, s.ID)
	s.state = StateStreaming

	// "Send extradata, then OK" — deliberate pipelining of the first
	// log lines behind the handshake reply.
	if len(extradata) > 0 {
		_ = s.fh.Write(extradata)
	}
	if _, err := s.conn.Write(wire.OKFrame()); err != nil {
		logger.Debug("failed writing OK response", logger.ClientID(s.ID), logger.Err(err))
		return false
	}

	logger.Info("session handshake complete", logger.ClientID(s.ID), logger.Path(path))
	return true
}

// runStreaming reads one chunk of opaque bytes and writes it verbatim to
// the attached FileHandler. No framing or parsing occurs once STREAMING
// begins.
func (s *Session) runStreaming() bool {
	buf := make([]byte, s.readBufferSize())
	n, err := s.conn.Read(buf)
	if n > 0 {
		if werr := s.fh.Write(buf[:n]); werr != nil {
			s.sendError(&wire.WireError{Kind: wire.KindOSError, Message: werr.Error()})
			return false
		}
	}
	if err != nil {
		if err == io.EOF {
			// Clean disconnect: the client half-closed for writing. Per
			// §6, the server may emit a BYE before closing; best-effort,
			// since the client may already be gone. An EOF that follows
			// the shutdown notice comes from the server's own read
			// half-close and gets no BYE.
			if !s.shutdownNotified.Load() {
				_, _ = s.conn.Write(wire.ByeFrame())
			}
		} else {
			logger.Debug("streaming read failed", logger.ClientID(s.ID), logger.Err(err))
		}
		return false
	}
	return true
}

// SendShutdownNotice sends the server's best-effort shutdown payload and
// half-closes the session for reading, per the §4.3 shutdown sequence.
// Errors are ignored: the notice is best-effort by design.
func (s *Session) SendShutdownNotice() {
	s.shutdownNotified.Store(true)
	_, _ = s.conn.Write(wire.ShutdownNotice.Frame())
	if tc, ok := s.conn.(*net.TCPConn); ok {
		_ = tc.CloseRead()
	} else if uc, ok := s.conn.(*net.UnixConn); ok {
		_ = uc.CloseRead()
	}
}

// Close forcibly closes the underlying connection, used by Server to
// terminate sessions that failed to drain within the shutdown timeout.
func (s *Session) Close() {
	_ = s.conn.Close()
}

func (s *Session) sendError(e *wire.WireError) {
	_, _ = s.conn.Write(e.Frame())
	logger.Warn("session protocol error", logger.ClientID(s.ID), logger.Err(e))
	if s.state == StateHandshake {
		s.metrics.HandshakeError(e.Kind)
	}
}

// teardown detaches from the FileHandler (if attached) and closes the
// socket. Safe to call exactly once, at the end of Run.
func (s *Session) teardown() {
	s.state = StateClosed
	if s.fh != nil {
		s.registry.ClientDone(s.fh, s.ID)
		s.fh = nil
	}
	_ = s.conn.Close()
	logger.Info("session closed", logger.ClientID(s.ID))
}
