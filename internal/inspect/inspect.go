// Package inspect retrieves the TLS certificate a host presents and computes how long it remains valid
package inspect

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/commjoen/certexpiry/pkg/models"
)

const (
	// DefaultTimeout bounds a single inspection
	DefaultTimeout = 8 * time.Second
	defaultPort    = "443"
	day            = 24 * time.Hour
)

var (
	// ErrTimeout is returned when the host does not answer within the timeout
	ErrTimeout = errors.New("request timed out")
	// ErrNoCertificate is returned when the connection carries no peer certificate
	ErrNoCertificate = errors.New("no certificate found")
)

// Inspector opens TLS connections to hosts and reports on their certificates
type Inspector struct {
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

// NewInspector creates a new inspector with the specified timeout
func NewInspector(timeout time.Duration) *Inspector {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{
		// The certificate of the requested host is wanted, not the one of a redirect target
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: &http.Transport{
			// #nosec G402 -- expiry is reported for self-signed and misconfigured hosts too
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
			DialContext: (&net.Dialer{
				Timeout: timeout,
			}).DialContext,
			DisableKeepAlives:     true,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
	}

	return &Inspector{
		httpClient: client,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Inspect sends a HEAD request to host and returns the leaf certificate it presented.
// host may carry an explicit port; port 443 is used otherwise.
func (i *Inspector) Inspect(ctx context.Context, host string) (*models.CertificateInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	target := &url.URL{Scheme: "https", Host: hostPort(host), Path: "/"}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "certexpiry/1.0")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, ErrTimeout
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, urlErr.Err
		}
		return nil, err
	}
	defer resp.Body.Close()

	return certificateInfo(resp.TLS, i.now())
}

// certificateInfo extracts the leaf certificate details from a connection state
func certificateInfo(state *tls.ConnectionState, now time.Time) (*models.CertificateInfo, error) {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil, ErrNoCertificate
	}

	cert := state.PeerCertificates[0]
	info := &models.CertificateInfo{
		Subject:           cert.Subject.String(),
		Issuer:            cert.Issuer.String(),
		SubjectCommonName: cert.Subject.CommonName,
		IssuerCommonName:  cert.Issuer.CommonName,
		DNSNames:          cert.DNSNames,
		ValidFrom:         cert.NotBefore,
		ValidTo:           cert.NotAfter,
		DaysRemaining:     DaysRemaining(cert.NotAfter, now),
		TLSVersion:        tls.VersionName(state.Version),
	}
	if cert.SerialNumber != nil {
		info.SerialNumber = cert.SerialNumber.Text(16)
	}
	return info, nil
}

// DaysRemaining returns the whole days between now and validTo, rounded down.
// The result is negative once validTo has passed.
func DaysRemaining(validTo, now time.Time) int {
	d := validTo.Sub(now)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// hostPort appends the default HTTPS port unless host already names one
func hostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, defaultPort)
}
