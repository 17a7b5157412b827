// Package config loads and validates the run configuration
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/commjoen/certexpiry/internal/notify"
	"github.com/commjoen/certexpiry/internal/urlcheck"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "CERTEXPIRY"

// Config holds the application configuration
type Config struct {
	MinimumCertificateAgeDays int           `envconfig:"MINIMUM_CERTIFICATE_AGE_DAYS"`
	URLsFilePath              string        `envconfig:"URLS_FILE_PATH"`
	SMTPHost                  string        `envconfig:"SMTP_HOST"`
	SMTPUsername              string        `envconfig:"SMTP_USERNAME"`
	SMTPPassword              string        `envconfig:"SMTP_PASSWORD"`
	SMTPPort                  int           `envconfig:"SMTP_PORT" default:"587"`
	SendTo                    string        `envconfig:"SEND_TO"`
	SendFrom                  string        `envconfig:"SEND_FROM"`
	Testing                   bool          `envconfig:"TESTING"`
	Timeout                   time.Duration `envconfig:"TIMEOUT" default:"8s"`
	Verbose                   bool          `envconfig:"VERBOSE"`
	DNS                       bool          `envconfig:"DNS"`
	Whois                     bool          `envconfig:"WHOIS"`
	Format                    string        `envconfig:"FORMAT" default:"text"`
	Output                    string        `envconfig:"OUT"`
}

// Load reads the given .env files (".env" when none is named, ignored when
// missing) and then the CERTEXPIRY_* environment variables
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.MinimumCertificateAgeDays == 0 {
		result = multierror.Append(result, missing("minimumCertificateAgeDays"))
	} else if c.MinimumCertificateAgeDays < 0 {
		result = multierror.Append(result, fmt.Errorf("invalid value for minimumCertificateAgeDays: must be a positive integer, got %d", c.MinimumCertificateAgeDays))
	}

	if c.URLsFilePath == "" {
		result = multierror.Append(result, missing("urlsFilePath"))
	} else if info, err := os.Stat(c.URLsFilePath); err != nil {
		result = multierror.Append(result, fmt.Errorf("URLs file path does not exist: %s", c.URLsFilePath))
	} else if !info.Mode().IsRegular() {
		result = multierror.Append(result, fmt.Errorf("URLs file path is not a file: %s", c.URLsFilePath))
	}

	if !c.Testing {
		if c.SMTPHost == "" {
			result = multierror.Append(result, missing("smtpHost"))
		} else if c.SMTPHostName() == "" {
			result = multierror.Append(result, fmt.Errorf("invalid value for smtpHost: %q", c.SMTPHost))
		}
		result = appendEmail(result, "smtpUsername", c.SMTPUsername, true)
		if c.SMTPPassword == "" {
			result = multierror.Append(result, missing("smtpPassword"))
		}
		result = appendEmail(result, "sendTo", c.SendTo, true)
	}
	result = appendEmail(result, "sendFrom", c.SendFrom, false)

	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("invalid value for smtpPort: %d", c.SMTPPort))
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("invalid value for timeout: %s", c.Timeout))
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json", "csv":
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported format: %s", c.Format))
	}

	return result.ErrorOrNil()
}

// SMTPHostName returns the host name of the SMTP server, which may be
// configured either as a bare host or as a URL such as smtp://mail.example.com
func (c *Config) SMTPHostName() string {
	host := strings.TrimSpace(c.SMTPHost)
	if strings.Contains(host, "://") {
		h, err := urlcheck.ExtractHost(host)
		if err != nil {
			return ""
		}
		return h
	}
	if host == "" || strings.ContainsAny(host, " /@") {
		return ""
	}
	return host
}

// From returns the sender address for notices
func (c *Config) From() string {
	if c.SendFrom != "" {
		return c.SendFrom
	}
	return c.SMTPUsername
}

// Transport returns the SMTP transport settings
func (c *Config) Transport() notify.TransportConfig {
	return notify.TransportConfig{
		Host:     c.SMTPHostName(),
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
	}
}

// ApplySandbox replaces the SMTP settings with those of a sandbox account.
// Notices go to the sandbox mailbox unless a recipient is configured.
func (c *Config) ApplySandbox(host string, port int, user, pass string) {
	c.SMTPHost = host
	c.SMTPPort = port
	c.SMTPUsername = user
	c.SMTPPassword = pass
	if c.SendTo == "" {
		c.SendTo = user
	}
}

func missing(key string) error {
	return fmt.Errorf("missing required argument: %s", key)
}

func appendEmail(result *multierror.Error, key, value string, required bool) *multierror.Error {
	if value == "" {
		if required {
			return multierror.Append(result, missing(key))
		}
		return result
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return multierror.Append(result, fmt.Errorf("invalid value for %s: %v", key, err))
	}
	// bare addresses only; the value is also the SMTP login
	if addr.Name != "" || addr.Address != value {
		return multierror.Append(result, fmt.Errorf("invalid value for %s: expected a plain email address", key))
	}
	return result
}
