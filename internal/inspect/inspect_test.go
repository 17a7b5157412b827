package inspect

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewInspector(t *testing.T) {
	// Test with zero timeout (should use default)
	inspector := NewInspector(0)
	if inspector.timeout != DefaultTimeout {
		t.Errorf("Expected default timeout %v, got %v", DefaultTimeout, inspector.timeout)
	}

	customTimeout := 2 * time.Second
	inspector = NewInspector(customTimeout)
	if inspector.timeout != customTimeout {
		t.Errorf("Expected custom timeout %v, got %v", customTimeout, inspector.timeout)
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		validTo  time.Time
		expected int
	}{
		{"ten days and an hour", now.Add(10*24*time.Hour + time.Hour), 10},
		{"just under a day", now.Add(23 * time.Hour), 0},
		{"exactly one day", now.Add(24 * time.Hour), 1},
		{"expires now", now, 0},
		{"expired an hour ago", now.Add(-time.Hour), -1},
		{"expired exactly two days ago", now.Add(-48 * time.Hour), -2},
		{"expired two days and a minute ago", now.Add(-48*time.Hour - time.Minute), -3},
		{"one year", now.AddDate(1, 0, 0), 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysRemaining(tt.validTo, now); got != tt.expected {
				t.Errorf("DaysRemaining() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"example.com", "example.com:443"},
		{"example.com:8443", "example.com:8443"},
		{"127.0.0.1:10443", "127.0.0.1:10443"},
		{"2001:db8::1", "[2001:db8::1]:443"},
	}

	for _, tt := range tests {
		if got := hostPort(tt.input); got != tt.expected {
			t.Errorf("hostPort(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCertificateInfoWithoutPeerCertificate(t *testing.T) {
	now := time.Now()

	if _, err := certificateInfo(nil, now); !errors.Is(err, ErrNoCertificate) {
		t.Errorf("Expected ErrNoCertificate for nil state, got %v", err)
	}
	if _, err := certificateInfo(&tls.ConnectionState{}, now); !errors.Is(err, ErrNoCertificate) {
		t.Errorf("Expected ErrNoCertificate for empty state, got %v", err)
	}
}

func TestInspectTLSServer(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		// The certificate is read whatever the status code
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	inspector := NewInspector(5 * time.Second)
	inspector.now = func() time.Time { return fixed }

	info, err := inspector.Inspect(context.Background(), strings.TrimPrefix(server.URL, "https://"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cert := server.Certificate()
	if !info.ValidTo.Equal(cert.NotAfter) {
		t.Errorf("Expected ValidTo %v, got %v", cert.NotAfter, info.ValidTo)
	}
	if !info.ValidFrom.Equal(cert.NotBefore) {
		t.Errorf("Expected ValidFrom %v, got %v", cert.NotBefore, info.ValidFrom)
	}
	if want := DaysRemaining(cert.NotAfter, fixed); info.DaysRemaining != want {
		t.Errorf("Expected %d days remaining, got %d", want, info.DaysRemaining)
	}
	if info.Issuer == "" || info.Subject == "" {
		t.Errorf("Expected subject and issuer, got %q and %q", info.Subject, info.Issuer)
	}
	if !strings.HasPrefix(info.TLSVersion, "TLS") {
		t.Errorf("Expected a TLS version, got %q", info.TLSVersion)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(methods) != 1 || methods[0] != http.MethodHead {
		t.Errorf("Expected a single HEAD request, got %v", methods)
	}
}

func TestInspectTimeout(t *testing.T) {
	// A listener that accepts connections and never answers the handshake
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()

	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	inspector := NewInspector(200 * time.Millisecond)
	start := time.Now()
	_, err = inspector.Inspect(context.Background(), ln.Addr().String())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if err.Error() != "request timed out" {
		t.Errorf("Unexpected message: %s", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Inspection took too long: %v", elapsed)
	}
}

func TestInspectConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	inspector := NewInspector(2 * time.Second)
	_, err = inspector.Inspect(context.Background(), addr)
	if err == nil {
		t.Fatal("Expected error, got none")
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNoCertificate) {
		t.Errorf("Expected the underlying network error, got %v", err)
	}
}

func TestInspectPlainHTTPServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	inspector := NewInspector(2 * time.Second)
	_, err := inspector.Inspect(context.Background(), strings.TrimPrefix(server.URL, "http://"))
	if err == nil {
		t.Fatal("Expected a TLS handshake error against a plain HTTP server")
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Expected handshake failure, got timeout")
	}
}

func TestInspectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inspector := NewInspector(time.Second)
	_, err := inspector.Inspect(ctx, "127.0.0.1:1")
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Cancellation should not be reported as a timeout")
	}
}
