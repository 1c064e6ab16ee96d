package mail

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"bookstore/internal/config"
)

// Sender is the delivery-transport boundary. Rendering and transport details
// live behind it; callers only hand over recipient, subject and body.
type Sender interface {
	Send(to, subject, body string) error
}

type smtpSender struct {
	cfg config.SMTP
}

func NewSMTP(cfg config.SMTP) Sender {
	return &smtpSender{cfg: cfg}
}

func (s *smtpSender) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.cfg.From, to, subject, body)

	addr := s.cfg.Host + ":" + s.cfg.Port
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg))
}

// LogSender writes mail to the log instead of a wire; used in dev and tests.
type LogSender struct {
	Log *slog.Logger
}

func (l *LogSender) Send(to, subject, _ string) error {
	l.Log.Info("email sent", "to", to, "subject", subject)
	return nil
}
