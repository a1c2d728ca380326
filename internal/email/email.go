// Пакет email — отправка уведомлений: SMTP (production) и
// демо-режим, который только логирует письма.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// ErrInvalidRecipient — адрес получателя некорректен.
var ErrInvalidRecipient = errors.New("некорректный адрес получателя")

// Message — письмо.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
	// Template — имя шаблона, пишется в email_logs
	Template string
}

// Sender — способ доставки писем.
type Sender interface {
	// Mode — "demo" или "production".
	Mode() string
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig — параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// UseTLS — STARTTLS после EHLO
	UseTLS  bool
	Timeout time.Duration
}

// SMTPSender отправляет письма через SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender создаёт SMTP-отправителя.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Mode() string { return "production" }

// Send отправляет письмо всем получателям одной SMTP-транзакцией.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	to, err := normalizeRecipients(msg.To)
	if err != nil {
		return err
	}
	body, err := buildMessage(s.cfg.From, s.cfg.FromName, to, msg, time.Now())
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > s.cfg.Timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("подключение к SMTP %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("создание SMTP клиента: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}

	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("SMTP аутентификация: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("запись письма: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("завершение письма: %w", err)
	}

	// Письмо уже принято сервером, ошибка QUIT не важна.
	_ = client.Quit()
	return nil
}

// DemoSender ничего не отправляет, только пишет письмо в лог.
type DemoSender struct {
	logger *slog.Logger
}

// NewDemoSender создаёт демо-отправителя.
func NewDemoSender(logger *slog.Logger) *DemoSender {
	return &DemoSender{logger: logger.With(slog.String("component", "email_demo"))}
}

func (d *DemoSender) Mode() string { return "demo" }

func (d *DemoSender) Send(_ context.Context, msg Message) error {
	to, err := normalizeRecipients(msg.To)
	if err != nil {
		return err
	}
	d.logger.Info("Демо-режим: письмо не отправлено",
		slog.Any("to", to),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.Template),
		slog.Int("text_len", len(msg.Text)),
	)
	return nil
}

// ValidAddress проверяет адрес электронной почты.
func ValidAddress(addr string) bool {
	a, err := mail.ParseAddress(addr)
	return err == nil && a.Address == addr
}

func normalizeRecipients(list []string) ([]string, error) {
	out := make([]string, 0, len(list))
	for _, addr := range list {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if !ValidAddress(addr) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, addr)
		}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: список пуст", ErrInvalidRecipient)
	}
	return out, nil
}

// buildMessage собирает RFC 5322 письмо: multipart/alternative,
// если есть HTML-часть, иначе text/plain. Части в quoted-printable.
func buildMessage(from, fromName string, to []string, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", (&mail.Address{Name: fromName, Address: from}).String())
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if msg.HTML == "" {
		header("Content-Type", "text/plain; charset=UTF-8")
		header("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQP(&buf, msg.Text); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	buf.WriteString("\r\n")

	for _, part := range []struct{ ctype, body string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("создание части письма: %w", err)
		}
		if err := writeQP(pw, part.body); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("завершение multipart: %w", err)
	}
	return buf.Bytes(), nil
}

func writeQP(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(s)); err != nil {
		return fmt.Errorf("кодирование письма: %w", err)
	}
	return qp.Close()
}
