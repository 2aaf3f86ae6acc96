// Package proxyfile implements the client-side endpoint of the ulog wire
// protocol (§4.4): a non-blocking UNIX stream socket with a segmented send
// queue, a timed handshake, and error-response demultiplexing on EPIPE.
package proxyfile

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/offlog/ulog/pkg/wire"
)

const recvProbeSize = 512

// ProxyFile is not safe for concurrent use by multiple goroutines, matching
// §5's "clients never share ProxyFile instances across threads" contract.
type ProxyFile struct {
	conn *net.UnixConn
	rc   syscall.RawConn

	handshakeTimeout time.Duration
	closeTimeout     time.Duration

	queue sendQueue

	closeOnce sync.Once
}

// Open connects to the daemon listening on socketPath and performs the
// handshake for path, per §4.4. handshakeTimeout and closeTimeout bound the
// handshake wait and the close-time drain respectively.
func Open(socketPath, path string, handshakeTimeout, closeTimeout time.Duration) (*ProxyFile, error) {
	if strings.IndexByte(path, 0) >= 0 {
		return nil, &wire.WireError{Kind: wire.KindConfigurationError, Message: "path contains an embedded NUL"}
	}

	addr := &net.UnixAddr{Name: socketPath, Net: "unix"}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		if errors.Is(err, syscall.ENOENT) {
			return nil, &wire.WireError{Kind: wire.KindNotFound, Message: fmt.Sprintf("server socket not found: %s", socketPath)}
		}
		return nil, &wire.WireError{Kind: wire.KindOSError, Message: err.Error()}
	}

	rc, err := conn.SyscallConn()
	if err != nil {
		_ = conn.Close()
		return nil, &wire.WireError{Kind: wire.KindOSError, Message: err.Error()}
	}

	p := &ProxyFile{
		conn:             conn,
		rc:               rc,
		handshakeTimeout: handshakeTimeout,
		closeTimeout:     closeTimeout,
	}

	if err := p.handshake(path); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *ProxyFile) handshake(path string) error {
	payload := append([]byte(path), wire.NUL)
	if _, err := p.conn.Write(payload); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			return p.demuxBrokenPipe()
		}
		return &wire.WireError{Kind: wire.KindOSError, Message: err.Error()}
	}

	if err := p.conn.SetReadDeadline(time.Now().Add(p.handshakeTimeout)); err != nil {
		return &wire.WireError{Kind: wire.KindOSError, Message: err.Error()}
	}
	defer func() { _ = p.conn.SetReadDeadline(time.Time{}) }()

	var accum []byte
	buf := make([]byte, recvProbeSize)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			accum = append(accum, buf[:n]...)
			if idx := indexNUL(accum); idx >= 0 {
				ok, werr := wire.Parse(accum[:idx])
				if ok {
					return nil
				}
				if werr != nil {
					return werr
				}
				return &wire.WireError{Kind: wire.KindOSError, Message: string(accum[:idx])}
			}
		}
		if err != nil {
			if errors.Is(err, syscall.ECONNRESET) {
				return &wire.WireError{Kind: wire.KindDisconnect, Message: err.Error()}
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return &wire.WireError{Kind: wire.KindTimeout, Message: "handshake timed out"}
			}
			return &wire.WireError{Kind: wire.KindDisconnect, Message: err.Error()}
		}
	}
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == wire.NUL {
			return i
		}
	}
	return -1
}

// Write sends b, queuing on would-block per §4.4. A nil or empty b is a
// no-op.
func (p *ProxyFile) Write(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	if err := p.drainNonBlocking(); err != nil {
		return err
	}

	if p.queue.Len() > 0 {
		// Ordering: new data never sends ahead of already-queued bytes.
		p.queue.put(b)
		return nil
	}

	n, err := p.rawWrite(b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			p.queue.put(b)
			return nil
		}
		if errors.Is(err, unix.EPIPE) {
			return p.demuxBrokenPipe()
		}
		return &wire.WireError{Kind: wire.KindOSError, Message: err.Error()}
	}
	if n < len(b) {
		p.queue.put(b[n:])
	}
	return nil
}

// drainNonBlocking attempts to flush previously queued bytes without
// blocking. It stops at the first would-block and leaves the remainder
// queued.
func (p *ProxyFile) drainNonBlocking() error {
	for p.queue.Len() > 0 {
		head := p.queue.peek()
		n, err := p.rawWrite(head)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return nil
			}
			if errors.Is(err, unix.EPIPE) {
				return p.demuxBrokenPipe()
			}
			return &wire.WireError{Kind: wire.KindOSError, Message: err.Error()}
		}
		p.queue.done(n)
	}
	return nil
}

// rawWrite performs exactly one non-blocking write(2) against the raw file
// descriptor, per §5's "all I/O is performed on non-blocking sockets".
// Unlike a poller-driven RawConn.Write, Control runs the syscall exactly
// once and never waits for writability — callers decide what to do with
// EAGAIN themselves, matching §4.4's "on would-block, queue and return".
func (p *ProxyFile) rawWrite(b []byte) (int, error) {
	var n int
	var serr error
	cerr := p.rc.Control(func(fd uintptr) {
		n, serr = unix.Write(int(fd), b)
	})
	if cerr != nil {
		return 0, cerr
	}
	return n, serr
}

func (p *ProxyFile) rawRead(b []byte) (int, error) {
	var n int
	var serr error
	cerr := p.rc.Control(func(fd uintptr) {
		n, serr = unix.Read(int(fd), b)
	})
	if cerr != nil {
		return 0, cerr
	}
	return n, serr
}

// demuxBrokenPipe implements §9's "error demultiplexing on EPIPE": a
// zero-timeout recv first, so a server-sent error payload is surfaced
// instead of the raw broken-pipe error.
func (p *ProxyFile) demuxBrokenPipe() error {
	buf := make([]byte, recvProbeSize)
	n, err := p.rawRead(buf)
	if n > 0 {
		if idx := indexNUL(buf[:n]); idx >= 0 {
			if _, werr := wire.Parse(buf[:idx]); werr != nil {
				return werr
			}
		}
	}
	_ = err
	return &wire.WireError{Kind: wire.KindBrokenPipe, Message: "broken pipe"}
}

// Close drains the send queue (subject to closeTimeout), half-closes the
// socket for writing, waits for an optional BYE, and unconditionally closes
// the underlying connection. Calling Close more than once is a no-op, per
// §4.4's idempotency requirement.
func (p *ProxyFile) Close() error {
	var result error
	p.closeOnce.Do(func() {
		result = p.closeOnceImpl()
	})
	return result
}

func (p *ProxyFile) closeOnceImpl() error {
	defer func() { _ = p.conn.Close() }()

	deadline := time.Now().Add(p.closeTimeout)
	for p.queue.Len() > 0 {
		if time.Now().After(deadline) {
			residual := p.queue.Len()
			return &wire.WireError{Kind: wire.KindTimeout, Message: fmt.Sprintf("close timed out with %d bytes unsent", residual)}
		}
		head := p.queue.peek()
		n, err := p.rawWrite(head)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				time.Sleep(time.Millisecond)
				continue
			}
			if errors.Is(err, unix.EPIPE) {
				break
			}
			return &wire.WireError{Kind: wire.KindOSError, Message: err.Error()}
		}
		p.queue.done(n)
	}

	_ = p.conn.CloseWrite()

	remaining := time.Until(deadline)
	if remaining > 0 {
		_ = p.conn.SetReadDeadline(time.Now().Add(remaining))
		buf := make([]byte, recvProbeSize)
		_, _ = p.conn.Read(buf) // best-effort BYE; EOF and timeout are both tolerated
	}
	return nil
}
