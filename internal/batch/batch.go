// Package batch runs the certificate check over a host list, one host at a time
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/commjoen/certexpiry/internal/urlcheck"
	"github.com/commjoen/certexpiry/pkg/models"
)

// Inspector retrieves the certificate a host presents
type Inspector interface {
	Inspect(ctx context.Context, host string) (*models.CertificateInfo, error)
}

// Notifier sends an expiration notice and returns its message id
type Notifier interface {
	SendExpirationNotice(ctx context.Context, info *models.CertificateInfo, url string) (string, error)
}

// Annotator adds supplementary data to a host result. It must not change the status.
type Annotator interface {
	Annotate(ctx context.Context, host string, result *models.HostResult)
}

// AnnotatorFunc adapts a function to the Annotator interface
type AnnotatorFunc func(ctx context.Context, host string, result *models.HostResult)

// Annotate calls f
func (f AnnotatorFunc) Annotate(ctx context.Context, host string, result *models.HostResult) {
	f(ctx, host, result)
}

// Runner checks every host of a list against the expiry threshold
type Runner struct {
	inspector  Inspector
	notifier   Notifier
	threshold  int
	annotators []Annotator
	out        io.Writer
	errOut     io.Writer
	logger     *log.Logger
	now        func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithOutput sets the writers for progress lines and per-host errors
func WithOutput(out, errOut io.Writer) Option {
	return func(r *Runner) {
		r.out = out
		r.errOut = errOut
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithAnnotator registers an annotator that runs for every host
func WithAnnotator(a Annotator) Option {
	return func(r *Runner) {
		r.annotators = append(r.annotators, a)
	}
}

// NewRunner creates a runner that notifies when fewer than threshold days remain
func NewRunner(inspector Inspector, notifier Notifier, threshold int, opts ...Option) *Runner {
	r := &Runner{
		inspector: inspector,
		notifier:  notifier,
		threshold: threshold,
		out:       os.Stdout,
		errOut:    os.Stderr,
		logger:    log.New(io.Discard),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates every URL, then checks the hosts in order.
// A malformed URL aborts the run before any host is contacted.
// Per-host failures are recorded and never stop the run.
func (r *Runner) Run(ctx context.Context, urls []string) (*models.RunResult, error) {
	if err := urlcheck.ValidateAll(urls); err != nil {
		return nil, err
	}

	result := &models.RunResult{
		Timestamp: r.now().UTC(),
		Threshold: r.threshold,
		Hosts:     make([]models.HostResult, 0, len(urls)),
		Summary:   &models.RunSummary{},
	}

	r.logger.Info("starting certificate check", "hosts", len(urls), "threshold", r.threshold)

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		hostResult := r.checkHost(ctx, url)
		result.Hosts = append(result.Hosts, hostResult)
		result.Summary.Add(hostResult)
	}

	fmt.Fprintf(r.out, "Processed %d hosts\n", len(result.Hosts))
	fmt.Fprintln(r.out, "Done")

	return result, nil
}

// checkHost takes one host from Pending to Done
func (r *Runner) checkHost(ctx context.Context, url string) models.HostResult {
	fmt.Fprintf(r.out, "Checking %s ...\n", url)

	// URLs were validated up front
	host, _ := urlcheck.ExtractHost(url)
	target, _ := urlcheck.ExtractTarget(url)
	result := models.HostResult{URL: url, Host: host}

	info, err := r.inspector.Inspect(ctx, target)
	r.annotate(ctx, host, &result)
	if err != nil {
		result.Status = models.StatusInspectFailed
		result.Error = err.Error()
		fmt.Fprintf(r.errOut, "❌ Error getting certificate info for %s: %v\n", url, err)
		fmt.Fprintf(r.out, "❌ No certificate found for %s\n", url)
		r.logger.Debug("inspection failed", "url", url, "target", target, "err", err)
		return result
	}

	result.Certificate = info
	r.logger.Debug("certificate inspected", "url", url, "days", info.DaysRemaining, "valid_to", info.ValidTo)

	if info.DaysRemaining >= r.threshold {
		result.Status = models.StatusValid
		fmt.Fprintf(r.out, "✅ Certificate is valid for %s\n", url)
		return result
	}

	messageID, err := r.notifier.SendExpirationNotice(ctx, info, url)
	if err != nil {
		result.Status = models.StatusNotifyFailed
		result.Error = err.Error()
		fmt.Fprintf(r.errOut, "Error sending email for %s: %v\n", url, err)
		fmt.Fprintf(r.out, "🥹 Email not sent for %s\n", url)
		r.logger.Warn("notification failed", "url", url, "days", info.DaysRemaining, "err", err)
		return result
	}

	result.Status = models.StatusNotified
	result.MessageID = messageID
	fmt.Fprintf(r.out, "➡️ Email sent for %s: %s\n", url, messageID)
	r.logger.Info("notification sent", "url", url, "days", info.DaysRemaining, "message_id", messageID)
	return result
}

func (r *Runner) annotate(ctx context.Context, host string, result *models.HostResult) {
	for _, a := range r.annotators {
		a.Annotate(ctx, host, result)
	}
}
