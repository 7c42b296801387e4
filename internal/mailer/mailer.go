package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPMailer sends mail through a plain SMTP relay. It implements
// auth.Mailer; tests substitute fakes instead of talking SMTP.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTP creates a mailer for host:port sending as from. user/pass
// may be empty for unauthenticated relays.
func NewSMTP(host, port, from, user, pass string) *SMTPMailer {
	var a smtp.Auth
	if user != "" {
		a = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPMailer{
		addr: host + ":" + port,
		from: from,
		auth: a,
	}
}

// Send dispatches one message. net/smtp has no context support, so
// cancellation is honored only between the dial and the result.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, to, subject, body,
	)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg))
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("mailer: send to %s: %w", to, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: send to %s: %w", to, err)
		}
		return nil
	}
}
