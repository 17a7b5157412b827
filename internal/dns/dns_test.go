package dns

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestNewClient(t *testing.T) {
	// Test with zero timeout (should use default)
	client := NewClient(0)
	if client.timeout != defaultTimeout {
		t.Errorf("Expected default timeout %v, got %v", defaultTimeout, client.timeout)
	}

	customTimeout := 60 * time.Second
	client = NewClient(customTimeout)
	if client.timeout != customTimeout {
		t.Errorf("Expected custom timeout %v, got %v", customTimeout, client.timeout)
	}

	if len(client.dnsServers) == 0 {
		t.Error("Expected DNS servers to be set")
	}
}

func TestGetSystemDNSServers(t *testing.T) {
	for _, server := range getSystemDNSServers() {
		if _, _, err := net.SplitHostPort(server); err != nil {
			t.Errorf("Server %s should have port: %v", server, err)
		}
	}
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"NXDOMAIN", &testError{"NXDOMAIN"}, true},
		{"no such host", &testError{"no such host"}, true},
		{"Name Error", &testError{"Name Error"}, true},
		{"other error", &testError{"connection refused"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFoundError(tt.err); got != tt.expected {
				t.Errorf("isNotFoundError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"SERVFAIL", &testError{"DNS error: SERVFAIL"}, "server failure (SERVFAIL)"},
		{"REFUSED", &testError{"DNS error: REFUSED"}, "query refused"},
		{"i/o timeout", &testError{"read udp: i/o timeout"}, "DNS query timeout"},
		{"connection refused", &testError{"connection refused"}, "DNS server connection refused"},
		{"other error", &testError{"unknown error"}, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeError(tt.err); got != tt.expected {
				t.Errorf("categorizeError() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCAARecords(t *testing.T) {
	answer := []dns.RR{
		&dns.CAA{Tag: "issuewild", Value: ";"},
		&dns.CAA{Tag: "issue", Value: "letsencrypt.org"},
		&dns.A{A: net.ParseIP("192.0.2.1")},
	}

	records := caaRecords(answer)
	expected := []string{"issue letsencrypt.org", "issuewild ;"}
	if len(records) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, records)
	}
	for i := range expected {
		if records[i] != expected[i] {
			t.Errorf("records[%d] = %q, want %q", i, records[i], expected[i])
		}
	}
}

// startTestServer runs an authoritative test server for example.test
func startTestServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		if q.Name != "www.example.test." {
			m.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}
		hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: 60}
		switch q.Qtype {
		case dns.TypeA:
			m.Answer = append(m.Answer,
				&dns.A{Hdr: hdr, A: net.ParseIP("192.0.2.20")},
				&dns.A{Hdr: hdr, A: net.ParseIP("192.0.2.10")},
			)
		case dns.TypeAAAA:
			m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP("2001:db8::10")})
		case dns.TypeCAA:
			m.Answer = append(m.Answer, &dns.CAA{Hdr: hdr, Tag: "issue", Value: "letsencrypt.org"})
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("DNS test server did not start")
	}
	return pc.LocalAddr().String()
}

func TestLookup(t *testing.T) {
	client := NewClient(2 * time.Second)
	client.dnsServers = []string{startTestServer(t)}

	info := client.Lookup(context.Background(), "www.example.test")
	if info.Error != "" {
		t.Fatalf("Unexpected error: %s", info.Error)
	}
	if strings.Join(info.A, ",") != "192.0.2.10,192.0.2.20" {
		t.Errorf("Unexpected A records: %v", info.A)
	}
	if len(info.AAAA) != 1 || info.AAAA[0] != "2001:db8::10" {
		t.Errorf("Unexpected AAAA records: %v", info.AAAA)
	}
	if len(info.CAA) != 1 || info.CAA[0] != "issue letsencrypt.org" {
		t.Errorf("Unexpected CAA records: %v", info.CAA)
	}
}

func TestLookupNXDOMAIN(t *testing.T) {
	client := NewClient(2 * time.Second)
	client.dnsServers = []string{startTestServer(t)}

	info := client.Lookup(context.Background(), "missing.example.test")
	if info.Error != "" {
		t.Errorf("NXDOMAIN should not be reported as an error, got %s", info.Error)
	}
	if len(info.A) != 0 || len(info.AAAA) != 0 || len(info.CAA) != 0 {
		t.Errorf("Expected no records, got %+v", info)
	}
}

func TestLookupIPAddress(t *testing.T) {
	client := NewClient(time.Second)
	client.dnsServers = nil

	info := client.Lookup(context.Background(), "192.0.2.1")
	if len(info.A) != 1 || info.A[0] != "192.0.2.1" {
		t.Errorf("Expected literal address to be returned, got %+v", info)
	}
}

func TestLookupCancellation(t *testing.T) {
	client := NewClient(1 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info := client.Lookup(ctx, "example.com")
	if info == nil {
		t.Fatal("Expected result to be non-nil")
	}
	if info.Error == "" {
		t.Error("Expected cancellation to be reported")
	}
}

// testError is a simple error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
