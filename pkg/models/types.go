// Package models contains shared data structures used across the application
package models

import "time"

// HostStatus is the final state of a single host within a run
type HostStatus string

const (
	StatusValid         HostStatus = "valid"
	StatusInspectFailed HostStatus = "inspect_failed"
	StatusNotified      HostStatus = "notified"
	StatusNotifyFailed  HostStatus = "notify_failed"
)

// CertificateInfo describes the leaf certificate presented by a host
type CertificateInfo struct {
	Subject           string    `json:"subject"`
	Issuer            string    `json:"issuer"`
	SubjectCommonName string    `json:"subject_cn,omitempty"`
	IssuerCommonName  string    `json:"issuer_cn,omitempty"`
	DNSNames          []string  `json:"dns_names,omitempty"`
	SerialNumber      string    `json:"serial_number,omitempty"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidTo           time.Time `json:"valid_to"`
	DaysRemaining     int       `json:"days_remaining"`
	TLSVersion        string    `json:"tls_version,omitempty"`
}

// Expired reports whether the certificate was already past its validity end
// when it was inspected
func (c *CertificateInfo) Expired() bool {
	return c.DaysRemaining < 0
}

// DNSInfo contains the DNS records collected for a host
type DNSInfo struct {
	A     []string `json:"a,omitempty"`
	AAAA  []string `json:"aaaa,omitempty"`
	CAA   []string `json:"caa,omitempty"`
	Error string   `json:"error,omitempty"`
}

// DomainInfo contains registration data for the host's registrable domain
type DomainInfo struct {
	Domain        string     `json:"domain"`
	Registrar     string     `json:"registrar,omitempty"`
	Expires       *time.Time `json:"expires,omitempty"`
	DaysRemaining *int       `json:"days_remaining,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// HostResult is the outcome of checking one entry of the host list
type HostResult struct {
	URL         string           `json:"url"`
	Host        string           `json:"host"`
	Status      HostStatus       `json:"status"`
	Certificate *CertificateInfo `json:"certificate,omitempty"`
	MessageID   string           `json:"message_id,omitempty"`
	Error       string           `json:"error,omitempty"`
	DNS         *DNSInfo         `json:"dns,omitempty"`
	Domain      *DomainInfo      `json:"domain,omitempty"`
}

// RunResult is the top-level result structure
type RunResult struct {
	Timestamp time.Time    `json:"timestamp"`
	Threshold int          `json:"threshold_days"`
	Hosts     []HostResult `json:"hosts"`
	Summary   *RunSummary  `json:"summary"`
}

// RunSummary provides aggregate statistics
type RunSummary struct {
	Total         int `json:"total"`
	Valid         int `json:"valid"`
	Expiring      int `json:"expiring"`
	Notified      int `json:"notified"`
	NotifyFailed  int `json:"notify_failed"`
	InspectFailed int `json:"inspect_failed"`
}

// Add folds a single host outcome into the summary
func (s *RunSummary) Add(r HostResult) {
	s.Total++
	switch r.Status {
	case StatusValid:
		s.Valid++
	case StatusNotified:
		s.Expiring++
		s.Notified++
	case StatusNotifyFailed:
		s.Expiring++
		s.NotifyFailed++
	case StatusInspectFailed:
		s.InspectFailed++
	}
}
