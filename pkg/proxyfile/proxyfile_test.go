package proxyfile

import (
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/offlog/ulog/pkg/wire"
)

func listen(t *testing.T) (*net.UnixListener, string) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "ulog.sock")
	addr, err := net.ResolveUnixAddr("unix", sockPath)
	if err != nil {
		t.Fatalf("ResolveUnixAddr: %v", err)
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	return l, sockPath
}

func TestOpenHandshakeSuccess(t *testing.T) {
	l, sockPath := listen(t)
	defer l.Close()

	accepted := make(chan []byte, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		accepted <- buf[:n]
		_, _ = conn.Write(wire.OKFrame())
		time.Sleep(50 * time.Millisecond)
	}()

	pf, err := Open(sockPath, "/tmp/out.log", time.Second, time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pf.Close()

	select {
	case got := <-accepted:
		if string(got) != "/tmp/out.log\x00" {
			t.Fatalf("server received %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received handshake")
	}
}

func TestOpenHandshakeServerError(t *testing.T) {
	l, sockPath := listen(t)
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		_, _ = conn.Write((&wire.WireError{Kind: wire.KindValueError, Message: "not an absolute path"}).Frame())
	}()

	_, err := Open(sockPath, "relative", time.Second, time.Second)
	if err == nil {
		t.Fatal("Open succeeded despite server error response")
	}
	werr, ok := err.(*wire.WireError)
	if !ok {
		t.Fatalf("error type = %T, want *wire.WireError", err)
	}
	if werr.Kind != wire.KindValueError {
		t.Fatalf("Kind = %q, want %q", werr.Kind, wire.KindValueError)
	}
}

func TestOpenNoServerReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "absent.sock")

	_, err := Open(sockPath, "/tmp/out.log", time.Second, time.Second)
	if err == nil {
		t.Fatal("Open succeeded against a nonexistent socket")
	}
	werr, ok := err.(*wire.WireError)
	if !ok {
		t.Fatalf("error type = %T, want *wire.WireError", err)
	}
	if werr.Kind != wire.KindNotFound {
		t.Fatalf("Kind = %q, want %q", werr.Kind, wire.KindNotFound)
	}
}

func TestOpenEmbeddedNULRejected(t *testing.T) {
	_, err := Open("/unused.sock", "/tmp/a\x00b", time.Second, time.Second)
	if err == nil {
		t.Fatal("Open succeeded with an embedded NUL in the path")
	}
	werr, ok := err.(*wire.WireError)
	if !ok {
		t.Fatalf("error type = %T, want *wire.WireError", err)
	}
	if werr.Kind != wire.KindConfigurationError {
		t.Fatalf("Kind = %q, want %q", werr.Kind, wire.KindConfigurationError)
	}
}

func TestOpenHandshakeTimeout(t *testing.T) {
	l, sockPath := listen(t)
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		time.Sleep(500 * time.Millisecond)
	}()

	_, err := Open(sockPath, "/tmp/out.log", 20*time.Millisecond, time.Second)
	if err == nil {
		t.Fatal("Open succeeded despite an unresponsive server")
	}
	werr, ok := err.(*wire.WireError)
	if !ok {
		t.Fatalf("error type = %T, want *wire.WireError", err)
	}
	if werr.Kind != wire.KindTimeout {
		t.Fatalf("Kind = %q, want %q", werr.Kind, wire.KindTimeout)
	}
}

func TestWriteAndCloseRoundTrip(t *testing.T) {
	l, sockPath := listen(t)
	defer l.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		_, _ = conn.Write(wire.OKFrame())

		var all []byte
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				all = append(all, buf[:n]...)
			}
			if err != nil {
				break
			}
		}
		_ = n
		received <- all
	}()

	pf, err := Open(sockPath, "/tmp/out.log", time.Second, time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := pf.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := pf.Write([]byte("world\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := pf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second Close must be a no-op.
	if err := pf.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case all := <-received:
		if string(all) != "hello\nworld\n" {
			t.Fatalf("server received %q", all)
		}
	case <-time.After(time.Second):
		t.Fatal("server never observed EOF")
	}
}

func TestWriteEmptyIsNoop(t *testing.T) {
	l, sockPath := listen(t)
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(wire.OKFrame())
		_, _ = io.Copy(io.Discard, conn)
	}()

	pf, err := Open(sockPath, "/tmp/out.log", time.Second, time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pf.Close()

	if err := pf.Write(nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
}
