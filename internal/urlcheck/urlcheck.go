// Package urlcheck validates host list entries and derives host names from them
package urlcheck

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidURL is returned for entries that are not absolute URLs
var ErrInvalidURL = errors.New("invalid URL")

// ValidateURL reports whether candidate is an absolute URL with a scheme and a host
func ValidateURL(candidate string) bool {
	if strings.TrimSpace(candidate) != candidate || candidate == "" {
		return false
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Hostname() != ""
}

// ExtractHost returns the host name of the URL's authority, without port
func ExtractHost(rawURL string) (string, error) {
	if !ValidateURL(rawURL) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return u.Hostname(), nil
}

// ExtractTarget returns the address to connect to for rawURL: the host name,
// followed by the port when the URL names one explicitly
func ExtractTarget(rawURL string) (string, error) {
	host, err := ExtractHost(rawURL)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(rawURL)
	if port := u.Port(); port != "" {
		return net.JoinHostPort(host, port), nil
	}
	return host, nil
}

// ValidateAll checks every entry and fails on the first malformed one
func ValidateAll(urls []string) error {
	for i, u := range urls {
		if !ValidateURL(u) {
			return fmt.Errorf("%w (entry %d): %q", ErrInvalidURL, i+1, u)
		}
	}
	return nil
}

// ReadURLFile reads a host list with one URL per line.
// Blank lines and lines starting with '#' are skipped.
func ReadURLFile(path string) ([]string, error) {
	// #nosec G304 -- the host list path is supplied by the operator
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open URLs file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URLs file: %w", err)
	}
	return urls, nil
}
