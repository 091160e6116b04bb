// Package notify delivers outbound notifications: visitor-arrival email
// to the contact person and escalation webhooks to security endpoints.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/gatewarden/internal/config"
	"github.com/ppiankov/gatewarden/internal/log"
)

// Mailer sends visitor-arrival notifications over SMTP with STARTTLS.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	sender   string
	logger   zerolog.Logger

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer builds a mailer from config. Returns nil when SMTP is not
// configured; callers nil-check.
func NewMailer(cfg config.SMTPConfig, password string) *Mailer {
	if cfg.Host == "" || cfg.Username == "" || password == "" {
		return nil
	}
	m := &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
		sender:   cfg.SenderName,
		logger:   log.WithComponent("mailer"),
	}
	m.send = m.sendSTARTTLS
	return m
}

// Notify emails the contact person about the visitor's arrival.
func (m *Mailer) Notify(ctx context.Context, contact, email, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := m.username
	if m.sender != "" {
		from = fmt.Sprintf("%s <%s>", m.sender, m.username)
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := m.send(addr, auth, m.username, []string{email}, []byte(msg.String())); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	m.logger.Info().Str("contact", contact).Msg("arrival notification sent")
	return nil
}

// sendSTARTTLS speaks SMTP with an explicit STARTTLS upgrade before
// authenticating. smtp.SendMail negotiates STARTTLS too, but without a
// ServerName-pinned TLS config.
func (m *Mailer) sendSTARTTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if err := c.Auth(auth); err != nil {
		return err
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
