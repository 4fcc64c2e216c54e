package mailer

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/gophish/gomail"
)

// Sender delivers transactional email over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	logger *slog.Logger
}

// Config holds SMTP connection settings.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	InsecureSkipVerify bool
}

// New constructs a Sender from SMTP settings.
func New(cfg Config, logger *slog.Logger) *Sender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host}
	}
	return &Sender{dialer: dialer, from: cfg.From, logger: logger}
}

// Send delivers a single HTML email.
func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	sender, err := s.dialer.Dial()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sender.Close(); cerr != nil {
			s.logger.Warn("smtp close", slog.Any("error", cerr))
		}
	}()

	return gomail.Send(sender, msg)
}
