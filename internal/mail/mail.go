// Package mail delivers transactional e-mail (account confirmation links).
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Message is a plain-text e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Delivery is best effort: callers report a failure
// to the user but never roll back the action that triggered the mail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig locates and authenticates against a submission server.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender sends through an SMTP submission server using PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, compose(s.cfg.From, msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: sending to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: sending to %s: %w", msg.To, ctx.Err())
	}
}

// compose renders RFC 5322 headers and a UTF-8 plain-text body.
func compose(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info("mail not sent (no SMTP configured)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// ConfirmationMessage builds the account confirmation e-mail.
func ConfirmationMessage(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "Account Verification Link",
		Body: fmt.Sprintf("Hello %s,\n\nPlease verify your account by clicking the link:\n%s\n\n"+
			"The link expires after one day.\n\nThank You!\n", name, link),
	}
}
