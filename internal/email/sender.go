// Package email - отправка писем (квитанции об оплате) через SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig - параметры SMTP сервера.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// dialer - то, что нужно от gomail.Dialer.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// GomailSender отправляет письма через gomail.
type GomailSender struct {
	config    SMTPConfig
	dialer    dialer
	templates *TemplateManager
}

func NewGomailSender(cfg SMTPConfig) *GomailSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GomailSender{
		config:    cfg,
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		templates: NewTemplateManager(),
	}
}

func (s *GomailSender) Validate() error {
	if s.config.Host == "" {
		return errors.New("SMTP host is required")
	}
	if s.config.Port <= 0 || s.config.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", s.config.Port)
	}
	if s.config.FromEmail == "" {
		return errors.New("from email is required")
	}
	return nil
}

func (s *GomailSender) Send(ctx context.Context, email *Email) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if len(email.To) == 0 {
		return errors.New("email has no recipients")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromEmail, s.config.FromName)
	m.SetHeader("To", email.To...)
	m.SetHeader("Subject", email.Subject)
	if email.HTMLBody != "" {
		m.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			m.AddAlternative("text/plain", email.Body)
		}
	} else {
		m.SetBody("text/plain", email.Body)
	}

	// gomail не принимает контекст, поэтому ждем отправку не дольше таймаута
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}

func (s *GomailSender) SendReceipt(ctx context.Context, r Receipt) error {
	html, err := s.templates.Render(receiptTemplate, receiptData(r))
	if err != nil {
		return err
	}
	return s.Send(ctx, &Email{
		To:       []string{r.To},
		Subject:  receiptSubject(r),
		HTMLBody: html,
	})
}
