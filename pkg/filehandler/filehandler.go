// Package filehandler implements the server-side FileHandler registry: a
// process-wide mapping from absolute filesystem path to a shared
// append-mode file descriptor and the set of sessions currently writing
// to it.
package filehandler

import (
	"os"
	"sync"

	"github.com/offlog/ulog/internal/logger"
	"github.com/offlog/ulog/internal/metrics"
)

// Handler is the shared writer for one absolute filesystem path. Opened
// lazily on first use, closed when its last client detaches. Only the
// Registry that owns a Handler mutates its client set; a Handler never
// reaches across to another Handler, so a single mutex per handler is
// enough (the registry-wide map is protected separately).
type Handler struct {
	path    string
	metrics *metrics.Metrics

	mu      sync.Mutex
	file    *os.File // nil once a write failure has disabled this handler
	clients map[uint64]struct{}
}

// Path returns the absolute filesystem path this handler appends to.
func (h *Handler) Path() string {
	return h.path
}

// Write appends bytes to the underlying file and flushes. On I/O
// failure it logs a warning, discards the file handle, and returns the
// error; once the handle is gone, subsequent writes are no-ops, mirroring
// the registry's "do not cache failures, but do not retry forever either"
// behavior.
func (h *Handler) Write(b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil || len(b) == 0 {
		return nil
	}

	if _, err := h.file.Write(b); err != nil {
		logger.Warn("write failed, disabling file handler", logger.Path(h.path), logger.Err(err))
		h.metrics.WriteError()
		_ = h.file.Close()
		h.file = nil
		return err
	}
	if err := h.file.Sync(); err != nil {
		logger.Warn("flush failed, disabling file handler", logger.Path(h.path), logger.Err(err))
		h.metrics.WriteError()
		_ = h.file.Close()
		h.file = nil
		return err
	}
	h.metrics.BytesWritten(h.path, len(b))
	return nil
}

func (h *Handler) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Registry is the process-wide FileHandler map. One Registry is owned by
// one Server; nothing outside this package ever constructs a Handler
// directly, which is what keeps invariant (a) of the spec ("at most one
// FileHandler per path") true without a language-level singleton.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]*Handler
	metrics  *metrics.Metrics
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// SetMetrics attaches m to the registry; every Handler it creates from this
// point on reports through m. A nil m (the default) disables reporting.
func (r *Registry) SetMetrics(m *metrics.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Instance returns the existing Handler for path or creates one by
// opening the file in append mode. Open errors propagate to the caller
// unchanged; the registry never caches a failed open.
func (r *Registry) Instance(path string) (*Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handlers[path]; ok {
		return h, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	h := &Handler{path: path, file: f, clients: make(map[uint64]struct{}), metrics: r.metrics}
	r.handlers[path] = h
	r.metrics.SetFileHandlersOpen(len(r.handlers))
	return h, nil
}

// NewClient attaches clientID to h, creating the first reference on path
// if this is the first attach. Idempotent for a given id.
func (r *Registry) NewClient(h *Handler, clientID uint64) {
	h.mu.Lock()
	h.clients[clientID] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	logger.Info("new client attached to file handler",
		logger.ClientID(clientID), logger.Path(h.path), logger.RefCount(total))
}

// ClientDone detaches clientID from h. When the client set empties, the
// handler's file is closed and the handler is dropped from the registry
// — invariant (b): a FileHandler with an empty client set does not
// survive to the next observation.
func (r *Registry) ClientDone(h *Handler, clientID uint64) {
	h.mu.Lock()
	delete(h.clients, clientID)
	remaining := len(h.clients)
	var file *os.File
	if remaining == 0 {
		file = h.file
		h.file = nil
	}
	h.mu.Unlock()

	logger.Info("client detached from file handler",
		logger.ClientID(clientID), logger.Path(h.path), logger.RefCount(remaining))

	if remaining == 0 {
		r.mu.Lock()
		if r.handlers[h.path] == h {
			delete(r.handlers, h.path)
		}
		r.metrics.SetFileHandlersOpen(len(r.handlers))
		r.mu.Unlock()
		if file != nil {
			_ = file.Close()
		}
	}
}

// Count returns the number of distinct paths currently open, the same
// number the registry reports as ulog_filehandlers_open.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}
