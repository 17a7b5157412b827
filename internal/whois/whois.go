// Package whois looks up domain registration expiry for checked hosts
package whois

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/commjoen/certexpiry/pkg/models"
)

const (
	defaultTimeout = 30 * time.Second
)

// queryFunc fetches the raw WHOIS text for a domain
type queryFunc func(domain string) (string, error)

// Client provides WHOIS lookup functionality with caching
type Client struct {
	timeout time.Duration
	query   queryFunc
	now     func() time.Time
	cache   map[string]*cachedResult
	mu      sync.RWMutex
	ttl     time.Duration
}

type cachedResult struct {
	result    *models.DomainInfo
	timestamp time.Time
}

// NewClient creates a new WHOIS client with the specified timeout
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	wc := whois.NewClient().SetTimeout(timeout)
	return &Client{
		timeout: timeout,
		query: func(domain string) (string, error) {
			return wc.Whois(domain)
		},
		now:   time.Now,
		cache: make(map[string]*cachedResult),
		ttl:   24 * time.Hour,
	}
}

// Lookup returns the registration data of the domain that hostname belongs to.
// Lookup never fails; problems are reported in the Error field.
func (c *Client) Lookup(ctx context.Context, hostname string) *models.DomainInfo {
	domain := extractBaseDomain(hostname)
	if domain == "" {
		return &models.DomainInfo{Error: "invalid domain"}
	}

	if result := c.getFromCache(domain); result != nil {
		return result
	}

	result := c.performLookup(ctx, domain)
	if result.Error == "" {
		c.saveToCache(domain, result)
	}
	return result
}

// performLookup executes the actual WHOIS query
func (c *Client) performLookup(ctx context.Context, domain string) *models.DomainInfo {
	result := &models.DomainInfo{Domain: domain}

	done := make(chan struct{})
	var raw string
	var err error

	go func() {
		raw, err = c.query(domain)
		close(done)
	}()

	select {
	case <-ctx.Done():
		result.Error = "WHOIS lookup cancelled"
		return result
	case <-time.After(c.timeout):
		result.Error = "WHOIS lookup timeout"
		return result
	case <-done:
	}

	if err != nil {
		result.Error = categorizeError(err)
		return result
	}

	c.applyParsed(result, raw)
	return result
}

// applyParsed fills result from raw WHOIS text
func (c *Client) applyParsed(result *models.DomainInfo, raw string) {
	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		result.Error = fmt.Sprintf("parse error: %v", err)
		return
	}

	if parsed.Registrar != nil {
		result.Registrar = parsed.Registrar.Name
	}
	if parsed.Domain == nil || parsed.Domain.ExpirationDate == "" {
		return
	}

	expires, err := parseDate(parsed.Domain.ExpirationDate)
	if err != nil {
		result.Error = err.Error()
		return
	}
	days := int(math.Floor(expires.Sub(c.now()).Hours() / 24))
	result.Expires = &expires
	result.DaysRemaining = &days
}

// getFromCache retrieves a cached result if valid
func (c *Client) getFromCache(domain string) *models.DomainInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[domain]
	if !ok {
		return nil
	}
	if time.Since(cached.timestamp) > c.ttl {
		return nil
	}
	return cached.result
}

// saveToCache stores a result in the cache
func (c *Client) saveToCache(domain string, result *models.DomainInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[domain] = &cachedResult{
		result:    result,
		timestamp: time.Now(),
	}
}

// extractBaseDomain returns the registrable domain of a host name
// e.g., "www.example.com" -> "example.com"
func extractBaseDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}

	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")

	if idx := strings.Index(domain, "/"); idx != -1 {
		domain = domain[:idx]
	}
	if idx := strings.Index(domain, ":"); idx != -1 {
		domain = domain[:idx]
	}
	domain = strings.TrimSuffix(domain, ".")

	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return ""
	}

	// Second-level registries
	specialTLDs := map[string]bool{
		"co.uk": true, "org.uk": true, "me.uk": true, "ltd.uk": true,
		"com.au": true, "net.au": true, "org.au": true,
		"co.nz": true, "net.nz": true, "org.nz": true,
		"co.jp": true, "ne.jp": true, "or.jp": true,
		"com.br": true, "net.br": true, "org.br": true,
	}

	if len(parts) >= 3 {
		lastTwo := parts[len(parts)-2] + "." + parts[len(parts)-1]
		if specialTLDs[lastTwo] {
			return strings.Join(parts[len(parts)-3:], ".")
		}
	}

	return strings.Join(parts[len(parts)-2:], ".")
}

// parseDate attempts to parse a date string in various formats
func parseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-Jan-2006",
		"January 02, 2006",
		"02/01/2006",
		"01/02/2006",
		"2006/01/02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// categorizeError converts WHOIS errors to user-friendly messages
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "timeout"):
		return "WHOIS server timeout"
	case strings.Contains(errStr, "connection refused"):
		return "WHOIS server connection refused"
	case strings.Contains(errStr, "no whois server"):
		return "no WHOIS server found for this TLD"
	case strings.Contains(errStr, "rate limit"):
		return "rate limited by WHOIS server"
	default:
		return errStr
	}
}
