// Package models provides tests for shared data structures
package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRunSummaryAdd(t *testing.T) {
	var s RunSummary
	for _, status := range []HostStatus{StatusValid, StatusNotified, StatusNotifyFailed, StatusInspectFailed, StatusValid} {
		s.Add(HostResult{Status: status})
	}

	if s.Total != 5 {
		t.Errorf("Expected total 5, got %d", s.Total)
	}
	if s.Valid != 2 {
		t.Errorf("Expected 2 valid, got %d", s.Valid)
	}
	if s.Expiring != 2 {
		t.Errorf("Expected 2 expiring, got %d", s.Expiring)
	}
	if s.Notified != 1 || s.NotifyFailed != 1 {
		t.Errorf("Expected 1 notified and 1 notify failure, got %d and %d", s.Notified, s.NotifyFailed)
	}
	if s.InspectFailed != 1 {
		t.Errorf("Expected 1 inspection failure, got %d", s.InspectFailed)
	}
}

func TestCertificateInfoExpired(t *testing.T) {
	tests := []struct {
		days     int
		expected bool
	}{
		{-3, true},
		{-1, true},
		{0, false},
		{42, false},
	}

	for _, tt := range tests {
		info := &CertificateInfo{DaysRemaining: tt.days}
		if info.Expired() != tt.expected {
			t.Errorf("Expired() with %d days = %v, want %v", tt.days, info.Expired(), tt.expected)
		}
	}
}

func TestHostResultJSONOmitsEmptyAnnotations(t *testing.T) {
	result := HostResult{
		URL:    "https://example.com",
		Host:   "example.com",
		Status: StatusInspectFailed,
		Error:  "request timed out",
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Failed to marshal HostResult: %v", err)
	}

	out := string(data)
	for _, key := range []string{`"certificate"`, `"dns"`, `"domain"`, `"message_id"`} {
		if strings.Contains(out, key) {
			t.Errorf("Expected %s to be omitted, got %s", key, out)
		}
	}
	if !strings.Contains(out, `"status":"inspect_failed"`) {
		t.Errorf("Expected status in output, got %s", out)
	}
}

func TestRunResultJSONFieldNames(t *testing.T) {
	result := RunResult{
		Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Threshold: 30,
		Summary:   &RunSummary{Total: 1, Valid: 1},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Failed to marshal RunResult: %v", err)
	}

	for _, key := range []string{`"threshold_days":30`, `"summary"`, `"total":1`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected %s in %s", key, data)
		}
	}
}
