package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	// DefaultPort is the mail submission port used when none is configured
	DefaultPort = 587
	// ImplicitTLSPort is the port on which the connection is TLS from the start
	ImplicitTLSPort = 465

	defaultSMTPTimeout = 30 * time.Second
)

// TransportConfig describes how to reach the mail submission service
type TransportConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Secure reports whether the connection uses implicit TLS
func (c TransportConfig) Secure() bool {
	return c.port() == ImplicitTLSPort
}

func (c TransportConfig) port() int {
	if c.Port == 0 {
		return DefaultPort
	}
	return c.Port
}

// SMTPSender submits messages to an SMTP server
type SMTPSender struct {
	client *mail.Client
	config TransportConfig
}

// NewSMTPSender creates a sender for the given transport configuration
func NewSMTPSender(cfg TransportConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSMTPTimeout
	}

	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPSender{client: client, config: cfg}, nil
}

func clientOptions(cfg TransportConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.port()),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Secure() {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	// PLAIN is refused by go-mail on an unencrypted connection to a remote
	// server, so credentials never travel in clear text
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return opts
}

// Send delivers msg and returns its Message-ID
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (string, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return "", fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.SetDate()
	m.SetMessageID()

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("failed to send message via %s:%d: %w", s.config.Host, s.config.port(), err)
	}

	ids := m.GetGenHeader(mail.HeaderMessageID)
	if len(ids) == 0 {
		return "", ErrNoMessageID
	}
	return ids[0], nil
}
