package email

import (
	"context"
	"fmt"
	"time"

	gomail "gopkg.in/mail.v2"
)

const minDialTimeout = time.Second

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg    Config
	dialer *gomail.Dialer
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.cfg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)

	if deadline, ok := ctx.Deadline(); ok {
		dialer := *p.dialer
		dialer.Timeout = timeUntil(deadline)
		return send(&dialer, m)
	}
	return send(p.dialer, m)
}

func send(d *gomail.Dialer, m *gomail.Message) error {
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func timeUntil(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	if d < minDialTimeout {
		return minDialTimeout
	}
	return d
}
