// Package mail delivers transactional email (one-time codes) over SMTP.
package mail

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Sender delivers one HTML mail.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender sends mail through an SMTP relay using gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger zerolog.Logger
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(host string, port int, username, password, from string, logger zerolog.Logger) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp host cannot be empty")
	}
	if from == "" {
		from = username
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: logger.With().Str("component", "SMTPSender").Logger(),
	}, nil
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	s.logger.Debug().Str("to", to).Str("subject", subject).Msg("Mail sent.")
	return nil
}

// NewCode returns a random six-digit verification code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// OTPBody renders the verification mail for a code.
func OTPBody(code string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:420px;margin:0 auto">
<h2>Verify your email</h2>
<p>Use this code to finish creating your account. It expires in 10 minutes.</p>
<p style="font-size:28px;letter-spacing:6px;font-weight:bold">%s</p>
<p>If you did not request this, you can ignore this mail.</p>
</div>`, code)
}
