package logger

import (
	"log/slog"
)

// Standard field keys for structured logging, kept consistent across the
// daemon and its client library so log aggregation can group on them.
const (
	KeyClientID = "client_id" // session/client identifier assigned by the server
	KeyPath     = "path"      // absolute path of the file being logged to
	KeyBytes    = "bytes"     // number of bytes written or read
	KeyRefCount = "refcount"  // number of clients currently attached to a FileHandler
	KeyError    = "error"     // error message
	KeyAddr     = "addr"      // socket/listener address
	KeyKind     = "kind"      // WireError kind
	KeyDuration = "duration_ms"
)

// ClientID returns a slog attribute for a client identifier.
func ClientID(id uint64) slog.Attr {
	return slog.Uint64(KeyClientID, id)
}

// Path returns a slog attribute for a filesystem path.
func Path(path string) slog.Attr {
	return slog.String(KeyPath, path)
}

// Bytes returns a slog attribute for a byte count.
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// RefCount returns a slog attribute for a FileHandler's attached-client count.
func RefCount(n int) slog.Attr {
	return slog.Int(KeyRefCount, n)
}

// Err returns a slog attribute for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
