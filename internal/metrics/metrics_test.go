package metrics

import (
	"net/http/httptest"
	"testing"
)

func TestDisabledByDefault(t *testing.T) {
	// Package-level state: only assert the nil-Metrics no-op contract here,
	// since InitRegistry is process-global and other tests in this package
	// may have already called it.
	var m *Metrics
	m.SessionAccepted()
	m.SessionClosed()
	m.SetFileHandlersOpen(3)
	m.BytesWritten("/tmp/x.log", 10)
	m.HandshakeError("ValueError")
	m.WriteError()
}

func TestInitRegistryEnablesMetrics(t *testing.T) {
	InitRegistry()
	if !IsEnabled() {
		t.Fatal("IsEnabled() = false after InitRegistry()")
	}
	if GetRegistry() == nil {
		t.Fatal("GetRegistry() returned nil after InitRegistry()")
	}
}

func TestNewRegistersInstruments(t *testing.T) {
	InitRegistry()
	m := New()
	if m == nil {
		t.Fatal("New() returned nil with metrics enabled")
	}
	m.SessionAccepted()
	m.BytesWritten("/tmp/out.log", 42)
	m.HandshakeError("Timeout")

	h := Handler()
	if h == nil {
		t.Fatal("Handler() returned nil with metrics enabled")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !contains(body, "ulog_sessions_active") {
		t.Fatalf("/metrics output missing ulog_sessions_active:\n%s", body)
	}
	if !contains(body, "ulog_bytes_written_total") {
		t.Fatalf("/metrics output missing ulog_bytes_written_total:\n%s", body)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
