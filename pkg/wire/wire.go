// Package wire defines the ulog client/server wire protocol: framing
// constants and the typed error used on both ends of the handshake.
package wire

import (
	"fmt"
	"strings"
)

const (
	// PathMax bounds the handshake accumulator. It mirrors the Linux
	// PATH_MAX (include/uapi/linux/limits.h) rather than relying on a
	// syscall, since the limit is a protocol guard, not a kernel query.
	PathMax = 4096

	// NUL terminates every frame: the handshake path, every response,
	// and (optionally) the close-time BYE.
	NUL byte = 0x00
)

// OK is the literal success sentinel sent by the server after a
// handshake completes, NUL-terminated.
const OK = "OK"

// BYE is the optional close-time acknowledgment. No implementation in
// the retrieval corpus actually emits it; ulogd does (see pkg/session),
// resolving the open question in favor of emitting rather than omitting.
const BYE = "BYE"

// Error kinds. These are wire-visible strings, not Go types: the server
// writes "<Kind>: <message>" and the client parses it back with Parse.
const (
	KindValueError         = "ValueError"
	KindOSError            = "OSError"
	KindPermissionError    = "PermissionError"
	KindConfigurationError = "ConfigurationError"
	KindNotFound           = "NotFound"
	KindTimeout            = "Timeout"
	KindDisconnect         = "Disconnect"
	KindBrokenPipe         = "BrokenPipe"
)

// ShutdownNotice is the best-effort payload sent to every live session
// when the server begins a graceful shutdown (spec scenario 6).
var ShutdownNotice = &WireError{Kind: KindOSError, Message: "ulog server exited"}

// WireError is the typed form of a "<Kind>: <message>" response. It is
// produced server-side (pkg/session) and parsed client-side
// (pkg/proxyfile), grounded on the teacher's APIError{Code,Message}
// convention in pkg/apiclient/errors.go.
type WireError struct {
	Kind    string
	Message string
}

func (e *WireError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Frame renders the error as a NUL-terminated wire frame.
func (e *WireError) Frame() []byte {
	b := make([]byte, 0, len(e.Kind)+2+len(e.Message)+1)
	b = append(b, e.Kind...)
	b = append(b, ':', ' ')
	b = append(b, e.Message...)
	b = append(b, NUL)
	return b
}

// OKFrame is the literal wire bytes for a successful handshake response.
func OKFrame() []byte {
	return []byte{'O', 'K', NUL}
}

// ByeFrame is the literal wire bytes for the optional close acknowledgment.
func ByeFrame() []byte {
	return []byte{'B', 'Y', 'E', NUL}
}

// Parse decodes a response payload (without its terminating NUL) into
// either a plain OK or a WireError. ok is true only for the exact "OK"
// sentinel; the "BYE" sentinel yields (false, nil).
func Parse(payload []byte) (ok bool, wireErr *WireError) {
	s := string(payload)
	if s == OK {
		return true, nil
	}
	if s == BYE {
		return false, nil
	}
	kind, message, found := strings.Cut(s, ": ")
	if !found {
		return false, &WireError{Kind: KindOSError, Message: s}
	}
	return false, &WireError{Kind: kind, Message: message}
}
