// Package output provides formatting options for run reports
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/commjoen/certexpiry/pkg/models"
)

// Formatter defines the interface for output formatters
type Formatter interface {
	Format(result *models.RunResult) (string, error)
	Write(w io.Writer, result *models.RunResult) error
}

// TextFormatter formats results as human-readable text tables
type TextFormatter struct{}

// JSONFormatter formats results as JSON
type JSONFormatter struct {
	Pretty bool
}

// CSVFormatter formats results as CSV
type CSVFormatter struct{}

// NewFormatter creates a new formatter based on the format type
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return &TextFormatter{}, nil
	case "json":
		return &JSONFormatter{Pretty: true}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func format(f Formatter, result *models.RunResult) (string, error) {
	var sb strings.Builder
	if err := f.Write(&sb, result); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Format returns the formatted string
func (f *TextFormatter) Format(result *models.RunResult) (string, error) {
	return format(f, result)
}

// Write writes the formatted output to the writer
func (f *TextFormatter) Write(w io.Writer, result *models.RunResult) error {
	separator := strings.Repeat("=", 80)
	lineSeparator := strings.Repeat("-", 80)

	fmt.Fprintf(w, "Certificate check at %s (threshold %d days)\n", result.Timestamp.Format(time.RFC3339), result.Threshold)
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "%-32s %-14s %-6s %-12s %s\n", "Host", "Status", "Days", "Expires", "Issuer")
	fmt.Fprintln(w, lineSeparator)

	for _, h := range result.Hosts {
		days := "-"
		expires := "-"
		issuer := "-"
		if h.Certificate != nil {
			days = strconv.Itoa(h.Certificate.DaysRemaining)
			expires = h.Certificate.ValidTo.Format("2006-01-02")
			issuer = h.Certificate.IssuerCommonName
		}
		if h.Error != "" {
			issuer = h.Error
		}

		host := h.Host
		if len(host) > 30 {
			host = host[:27] + "..."
		}

		fmt.Fprintf(w, "%-32s %-14s %-6s %-12s %s\n", host, h.Status, days, expires, issuer)
	}

	fmt.Fprintln(w, separator)

	if result.Summary != nil {
		s := result.Summary
		fmt.Fprintf(w, "Checked %d hosts | %d valid | %d expiring (%d notified, %d not sent) | %d failed\n",
			s.Total, s.Valid, s.Expiring, s.Notified, s.NotifyFailed, s.InspectFailed)
	}

	return nil
}

// Format returns the formatted string
func (f *JSONFormatter) Format(result *models.RunResult) (string, error) {
	return format(f, result)
}

// Write writes the formatted output to the writer
func (f *JSONFormatter) Write(w io.Writer, result *models.RunResult) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(result)
}

// Format returns the formatted string
func (f *CSVFormatter) Format(result *models.RunResult) (string, error) {
	return format(f, result)
}

// Write writes the formatted output to the writer
func (f *CSVFormatter) Write(w io.Writer, result *models.RunResult) error {
	writer := csv.NewWriter(w)

	header := []string{"url", "host", "status", "days_remaining", "valid_to", "issuer", "message_id", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, h := range result.Hosts {
		var days, validTo, issuer string
		if h.Certificate != nil {
			days = strconv.Itoa(h.Certificate.DaysRemaining)
			validTo = h.Certificate.ValidTo.Format(time.RFC3339)
			issuer = h.Certificate.IssuerCommonName
		}

		row := []string{h.URL, h.Host, string(h.Status), days, validTo, issuer, h.MessageID, h.Error}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
