// certexpiry checks the TLS certificates of a list of hosts and emails a notice
// for every certificate that expires within the configured number of days
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/commjoen/certexpiry/internal/batch"
	"github.com/commjoen/certexpiry/internal/config"
	"github.com/commjoen/certexpiry/internal/dns"
	"github.com/commjoen/certexpiry/internal/inspect"
	"github.com/commjoen/certexpiry/internal/notify"
	"github.com/commjoen/certexpiry/internal/output"
	"github.com/commjoen/certexpiry/internal/sandbox"
	"github.com/commjoen/certexpiry/internal/urlcheck"
	"github.com/commjoen/certexpiry/internal/whois"
	"github.com/commjoen/certexpiry/pkg/models"
)

const sandboxTimeout = 30 * time.Second

var (
	// CLI flags
	minimumDays  int
	urlsFilePath string
	smtpHost     string
	smtpUsername string
	smtpPassword string
	smtpPort     int
	sendTo       string
	sendFrom     string
	testingMode  bool
	timeout      time.Duration
	verbose      bool
	enableDNS    bool
	enableWhois  bool
	format       string
	outputFile   string

	// Version information (set during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "certexpiry",
	Short:   "TLS certificate expiry checker with email notices",
	Version: version,
	Long: `certexpiry reads a list of URLs, connects to every host over TLS and
reports how many days its certificate remains valid. When fewer days remain
than --minimumCertificateAgeDays, a notice is emailed through the configured
SMTP server.

Every option can also be set through a CERTEXPIRY_* environment variable or
a .env file in the working directory, e.g. CERTEXPIRY_SMTP_PASSWORD.
With --testing a disposable Ethereal mailbox is used instead of a real SMTP
account.`,
	Example: `  # Notify ops when a certificate has less than 30 days left
  certexpiry --minimumCertificateAgeDays 30 --urlsFilePath urls.txt \
    --smtpHost smtp.example.com --smtpUsername alerts@example.com \
    --smtpPassword "$SMTP_PASSWORD" --sendTo ops@example.com

  # Try it out against a sandbox mailbox
  certexpiry --minimumCertificateAgeDays 30 --urlsFilePath urls.txt --testing

  # Save a JSON report including DNS and domain registration data
  certexpiry --minimumCertificateAgeDays 30 --urlsFilePath urls.txt --testing \
    --dns --whois --format json --out report.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&minimumDays, "minimumCertificateAgeDays", 0, "Notify when fewer days than this remain (required)")
	flags.StringVar(&urlsFilePath, "urlsFilePath", "", "File with one URL per line; blank lines and lines starting with # are skipped (required)")
	flags.StringVar(&smtpHost, "smtpHost", "", "SMTP server host or URL (required unless --testing)")
	flags.StringVar(&smtpUsername, "smtpUsername", "", "SMTP user name, an email address (required unless --testing)")
	flags.StringVar(&smtpPassword, "smtpPassword", "", "SMTP password (required unless --testing)")
	flags.IntVar(&smtpPort, "smtpPort", notify.DefaultPort, "SMTP port; 465 uses implicit TLS, other ports STARTTLS")
	flags.StringVar(&sendTo, "sendTo", "", "Recipient of the notices (required unless --testing)")
	flags.StringVar(&sendFrom, "sendFrom", "", "Sender of the notices (default: --smtpUsername)")
	flags.BoolVar(&testingMode, "testing", false, "Send through a disposable Ethereal sandbox account")
	flags.DurationVarP(&timeout, "timeout", "t", inspect.DefaultTimeout, "Timeout for each certificate inspection")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&enableDNS, "dns", false, "Record A/AAAA/CAA records of every host")
	flags.BoolVar(&enableWhois, "whois", false, "Record domain registration expiry of every host")
	flags.StringVarP(&format, "format", "f", "text", "Report format: text, json, or csv")
	flags.StringVarP(&outputFile, "out", "o", "", "Write a report of the run to this file")
}

// applyFlags overrides the loaded configuration with flags set on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("minimumCertificateAgeDays", func() { cfg.MinimumCertificateAgeDays = minimumDays })
	set("urlsFilePath", func() { cfg.URLsFilePath = urlsFilePath })
	set("smtpHost", func() { cfg.SMTPHost = smtpHost })
	set("smtpUsername", func() { cfg.SMTPUsername = smtpUsername })
	set("smtpPassword", func() { cfg.SMTPPassword = smtpPassword })
	set("smtpPort", func() { cfg.SMTPPort = smtpPort })
	set("sendTo", func() { cfg.SendTo = sendTo })
	set("sendFrom", func() { cfg.SendFrom = sendFrom })
	set("testing", func() { cfg.Testing = testingMode })
	set("timeout", func() { cfg.Timeout = timeout })
	set("verbose", func() { cfg.Verbose = verbose })
	set("dns", func() { cfg.DNS = enableDNS })
	set("whois", func() { cfg.Whois = enableWhois })
	set("format", func() { cfg.Format = format })
	set("out", func() { cfg.Output = outputFile })
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "certexpiry",
	})
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	urls, err := urlcheck.ReadURLFile(cfg.URLsFilePath)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs found in %s", cfg.URLsFilePath)
	}
	// Malformed entries abort the run before any network activity
	if err := urlcheck.ValidateAll(urls); err != nil {
		return err
	}

	var formatter output.Formatter
	if cfg.Output != "" {
		if err := validateOutputPath(cfg.Output); err != nil {
			return err
		}
		if formatter, err = output.NewFormatter(cfg.Format); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Warn("received interrupt, stopping after the current host")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Testing {
		account, err := sandbox.NewProvisioner(sandboxTimeout, version).Provision(ctx)
		if err != nil {
			return err
		}
		cfg.ApplySandbox(account.SMTP.Host, account.SMTP.Port, account.User, account.Pass)
		logger.Info("using sandbox mailbox", "user", account.User, "web", account.Web)
	}

	transport := cfg.Transport()
	transport.Timeout = cfg.Timeout
	sender, err := notify.NewSMTPSender(transport)
	if err != nil {
		return err
	}
	notifier := notify.NewNotifier(sender, cfg.From(), cfg.SendTo)

	opts := []batch.Option{
		batch.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		batch.WithLogger(logger),
	}
	if cfg.DNS {
		dnsClient := dns.NewClient(cfg.Timeout)
		opts = append(opts, batch.WithAnnotator(batch.AnnotatorFunc(func(ctx context.Context, host string, r *models.HostResult) {
			r.DNS = dnsClient.Lookup(ctx, host)
		})))
	}
	if cfg.Whois {
		whoisClient := whois.NewClient(0)
		opts = append(opts, batch.WithAnnotator(batch.AnnotatorFunc(func(ctx context.Context, host string, r *models.HostResult) {
			r.Domain = whoisClient.Lookup(ctx, host)
		})))
	}

	runner := batch.NewRunner(inspect.NewInspector(cfg.Timeout), notifier, cfg.MinimumCertificateAgeDays, opts...)
	result, err := runner.Run(ctx, urls)
	if err != nil {
		return err
	}

	if formatter != nil {
		return writeReport(formatter, cfg.Output, result)
	}
	return nil
}

// validateOutputPath performs security validation on the output file path
func validateOutputPath(path string) error {
	cleanPath := filepath.Clean(path)

	if filepath.IsAbs(cleanPath) {
		sensitivePatterns := []string{"/etc/", "/var/", "/usr/", "/bin/", "/sbin/", "/root/"}
		for _, pattern := range sensitivePatterns {
			if strings.HasPrefix(cleanPath, pattern) {
				return fmt.Errorf("refusing to write to sensitive system location: %s", cleanPath)
			}
		}
	}

	return nil
}

func writeReport(formatter output.Formatter, path string, result *models.RunResult) error {
	// #nosec G304 -- User-provided output file path is intentional for CLI tool
	writer, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer writer.Close()

	return formatter.Write(writer, result)
}
