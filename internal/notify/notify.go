// Package notify builds certificate expiration notices and hands them to a mail submission channel
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/commjoen/certexpiry/pkg/models"
)

// ErrNoMessageID is returned when the submission channel accepted a message without an identifier
var ErrNoMessageID = errors.New("no message id returned")

// Message is a plain-text notification
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a message and returns the identifier the channel assigned to it
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// BuildExpirationNotice renders the notice for a certificate served by url
func BuildExpirationNotice(info *models.CertificateInfo, url, from, to string) *Message {
	msg := &Message{From: from, To: to}
	if info.Expired() {
		msg.Subject = fmt.Sprintf("SSL Certificate for %s has expired", url)
		msg.Body = fmt.Sprintf("The SSL certificate for %s expired %d days ago.\nPlease renew the certificate.", url, -info.DaysRemaining)
		return msg
	}
	msg.Subject = fmt.Sprintf("SSL Certificate for %s is about to expire", url)
	msg.Body = fmt.Sprintf("The SSL certificate for %s is about to expire in %d days.\nPlease renew the certificate.", url, info.DaysRemaining)
	return msg
}

// SendExpirationNotice builds the notice for url and submits it through sender
func SendExpirationNotice(ctx context.Context, sender Sender, info *models.CertificateInfo, url, from, to string) (string, error) {
	if info == nil {
		return "", fmt.Errorf("no certificate info for %s", url)
	}
	id, err := sender.Send(ctx, BuildExpirationNotice(info, url, from, to))
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoMessageID
	}
	return id, nil
}

// Notifier sends expiration notices between a fixed sender and recipient
type Notifier struct {
	sender Sender
	from   string
	to     string
}

// NewNotifier creates a notifier that submits through sender
func NewNotifier(sender Sender, from, to string) *Notifier {
	return &Notifier{sender: sender, from: from, to: to}
}

// SendExpirationNotice notifies about the certificate served by url
func (n *Notifier) SendExpirationNotice(ctx context.Context, info *models.CertificateInfo, url string) (string, error) {
	return SendExpirationNotice(ctx, n.sender, info, url, n.from, n.to)
}
