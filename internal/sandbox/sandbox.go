// Package sandbox provisions disposable SMTP accounts for test runs
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	etherealAPIURL = "https://api.nodemailer.com/user"
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	requestor      = "certexpiry"
)

// Server is the address of a mail service endpoint
type Server struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Secure bool   `json:"secure"`
}

// Account is a disposable mailbox with SMTP credentials
type Account struct {
	User string `json:"user"`
	Pass string `json:"pass"`
	SMTP Server `json:"smtp"`
	IMAP Server `json:"imap"`
	Web  string `json:"web"`
}

type accountResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Account
}

// Provisioner creates sandbox accounts through the Ethereal API
type Provisioner struct {
	httpClient *http.Client
	apiURL     string
	version    string
	retries    uint64
}

// NewProvisioner creates a new provisioner with the specified timeout
func NewProvisioner(timeout time.Duration, version string) *Provisioner {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Provisioner{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiURL:  etherealAPIURL,
		version: version,
		retries: maxRetries,
	}
}

// Provision requests a new sandbox account, retrying transient failures
func (p *Provisioner) Provision(ctx context.Context) (*Account, error) {
	var account *Account

	op := func() error {
		a, err := p.request(ctx)
		if err != nil {
			return err
		}
		account = a
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.retries-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("failed to provision sandbox account: %w", err)
	}
	return account, nil
}

// request performs a single account creation call
func (p *Provisioner) request(ctx context.Context) (*Account, error) {
	payload, err := json.Marshal(map[string]string{
		"requestor": requestor,
		"version":   p.version,
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", requestor, p.version))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("sandbox API HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var parsed accountResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse JSON response: %w", err))
	}
	if parsed.Status != "success" {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, backoff.Permanent(fmt.Errorf("sandbox API refused account creation: %s", msg))
	}
	if parsed.User == "" || parsed.SMTP.Host == "" {
		return nil, backoff.Permanent(fmt.Errorf("sandbox API returned an incomplete account"))
	}

	return &parsed.Account, nil
}
