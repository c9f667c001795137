// Package mailer delivers rendered heatmaps as e-mail attachments over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"

	"github.com/jwaldner/bsheat/internal/config"
	"github.com/jwaldner/bsheat/internal/logger"
)

// ErrInvalidRecipient is returned for an empty or malformed address.
var ErrInvalidRecipient = errors.New("invalid recipient address")

const defaultFilename = "heatmap.png"

// Message is one outgoing heatmap e-mail. Empty Subject and Body fall back to
// the configured defaults.
type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment []byte
	Filename   string
}

type sendFunc func(addr string, auth smtp.Auth, e *email.Email) error

// Mailer sends messages through one SMTP relay.
type Mailer struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		cfg: cfg,
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			// Send upgrades to STARTTLS when the server offers it
			return e.Send(addr, auth)
		},
	}
}

// Build assembles the MIME message without sending it.
func (m *Mailer) Build(msg Message) (*email.Email, error) {
	to, err := mail.ParseAddress(msg.To)
	if msg.To == "" || err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to.Address}
	e.Subject = firstNonEmpty(msg.Subject, m.cfg.Subject)
	e.Text = []byte(firstNonEmpty(msg.Body, m.cfg.Body))

	if len(msg.Attachment) > 0 {
		name := firstNonEmpty(msg.Filename, defaultFilename)
		if _, err := e.Attach(bytes.NewReader(msg.Attachment), name, "image/png"); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", name, err)
		}
	}
	return e, nil
}

// Send builds and transmits msg.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	e, err := m.Build(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, e); err != nil {
		return fmt.Errorf("failed to send heatmap to %s via %s: %w", e.To[0], addr, err)
	}
	logger.Info.Printf("📧 Heatmap sent to %s", e.To[0])
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
