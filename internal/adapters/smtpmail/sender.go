// Package smtpmail implements the report dispatcher over SMTP submission.
package smtpmail

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"backupwatch/internal/core"
)

// smtpsPort is the well-known implicit-TLS submission port.
const smtpsPort = 465

// Sender delivers rendered reports through the configured SMTP server. It
// implements core.ReportSender.
type Sender struct {
	logger *zap.Logger
}

// NewSender creates an SMTP report sender.
func NewSender(logger *zap.Logger) *Sender {
	return &Sender{logger: logger}
}

// Send submits one message with a plain-text body and an HTML alternative to
// all recipients in a single envelope. With the security flag set the
// connection uses implicit TLS on the SMTPS port and opportunistic STARTTLS
// otherwise. The whole exchange is bounded by the context deadline, and the
// transport is always shut down cleanly, whatever the send outcome.
func (s *Sender) Send(ctx context.Context, settings *core.Settings, recipients []string, subject, textBody, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send aborted: %w", err)
	}

	dialer := gomail.NewDialer(settings.SMTPHost, settings.SMTPPort, settings.SMTPUsername, settings.SMTPPassword)
	if settings.SMTPUseTLS {
		dialer.TLSConfig = &tls.Config{ServerName: settings.SMTPHost}
		dialer.SSL = settings.SMTPPort == smtpsPort
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", settings.SMTPUsername)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	s.logger.Debug("Sending report",
		zap.String("host", settings.SMTPHost),
		zap.Int("port", settings.SMTPPort),
		zap.Int("recipients", len(recipients)))

	// The dialer has no context support, so the exchange runs in its own
	// goroutine and the caller is released when the deadline passes. An
	// abandoned attempt holds no locks and dies with its connection.
	errCh := make(chan error, 1)
	go func() {
		errCh <- dialer.DialAndSend(msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send report via %s:%d: %w", settings.SMTPHost, settings.SMTPPort, err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Warn("Send abandoned at context deadline",
			zap.String("host", settings.SMTPHost),
			zap.Int("port", settings.SMTPPort))
		return fmt.Errorf("send aborted: %w", ctx.Err())
	}
}
