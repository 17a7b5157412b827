// Package dns collects address and CAA records for checked hosts
package dns

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/commjoen/certexpiry/pkg/models"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 3
)

// Client provides DNS query functionality
type Client struct {
	dnsServers []string
	timeout    time.Duration
	retries    int
}

// NewClient creates a new DNS client with the specified timeout
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		timeout:    timeout,
		retries:    defaultRetries,
		dnsServers: getSystemDNSServers(),
	}
}

// getSystemDNSServers returns the system's DNS servers or defaults
func getSystemDNSServers() []string {
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(config.Servers))
	for _, server := range config.Servers {
		servers = append(servers, net.JoinHostPort(server, config.Port))
	}
	return servers
}

// Lookup gathers the A, AAAA and CAA records of hostname.
// Lookup never fails; problems are reported in the Error field.
func (c *Client) Lookup(ctx context.Context, hostname string) *models.DNSInfo {
	info := &models.DNSInfo{}
	if ip := net.ParseIP(hostname); ip != nil {
		if ip.To4() != nil {
			info.A = []string{ip.String()}
		} else {
			info.AAAA = []string{ip.String()}
		}
		return info
	}

	var errs []string
	record := func(name string, err error) {
		if err != nil && !isNotFoundError(err) {
			errs = append(errs, fmt.Sprintf("%s: %s", name, categorizeError(err)))
		}
	}

	var err error
	info.A, err = c.QueryA(ctx, hostname)
	record("A", err)
	info.AAAA, err = c.QueryAAAA(ctx, hostname)
	record("AAAA", err)
	info.CAA, err = c.QueryCAA(ctx, hostname)
	record("CAA", err)

	if len(errs) > 0 {
		info.Error = strings.Join(errs, "; ")
	}
	return info
}

// QueryA returns A records (IPv4 addresses) for a hostname
func (c *Client) QueryA(ctx context.Context, hostname string) ([]string, error) {
	resp, err := c.query(ctx, hostname, dns.TypeA)
	if err != nil {
		return nil, err
	}

	var ips []string
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}

	sort.Strings(ips)
	return ips, nil
}

// QueryAAAA returns AAAA records (IPv6 addresses) for a hostname
func (c *Client) QueryAAAA(ctx context.Context, hostname string) ([]string, error) {
	resp, err := c.query(ctx, hostname, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}

	var ips []string
	for _, ans := range resp.Answer {
		if aaaa, ok := ans.(*dns.AAAA); ok {
			ips = append(ips, aaaa.AAAA.String())
		}
	}

	sort.Strings(ips)
	return ips, nil
}

// QueryCAA returns the CAA records of a hostname as "tag value" pairs
func (c *Client) QueryCAA(ctx context.Context, hostname string) ([]string, error) {
	resp, err := c.query(ctx, hostname, dns.TypeCAA)
	if err != nil {
		return nil, err
	}
	return caaRecords(resp.Answer), nil
}

func caaRecords(answer []dns.RR) []string {
	var records []string
	for _, ans := range answer {
		if caa, ok := ans.(*dns.CAA); ok {
			records = append(records, fmt.Sprintf("%s %s", caa.Tag, caa.Value))
		}
	}
	sort.Strings(records)
	return records
}

// query performs a DNS query with retry logic
func (c *Client) query(ctx context.Context, hostname string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), qtype)

	client := &dns.Client{
		Timeout: c.timeout,
		Net:     "udp",
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for _, server := range c.dnsServers {
			resp, _, err := client.ExchangeContext(ctx, msg, server)
			if err != nil {
				lastErr = err
				continue
			}

			if resp.Rcode == dns.RcodeNameError {
				return nil, fmt.Errorf("NXDOMAIN")
			}
			if resp.Rcode != dns.RcodeSuccess {
				lastErr = fmt.Errorf("DNS error: %s", dns.RcodeToString[resp.Rcode])
				continue
			}

			return resp, nil
		}

		if attempt < c.retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("DNS query failed after %d attempts: %w", c.retries, lastErr)
	}
	return nil, fmt.Errorf("DNS query failed after %d attempts", c.retries)
}

// isNotFoundError checks if the error indicates no records were found
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NXDOMAIN") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "Name Error")
}

// categorizeError converts DNS errors to user-friendly messages
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return "DNS query timeout"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "SERVFAIL"):
		return "server failure (SERVFAIL)"
	case strings.Contains(errStr, "REFUSED"):
		return "query refused"
	case strings.Contains(errStr, "i/o timeout"):
		return "DNS query timeout"
	case strings.Contains(errStr, "connection refused"):
		return "DNS server connection refused"
	default:
		return errStr
	}
}
