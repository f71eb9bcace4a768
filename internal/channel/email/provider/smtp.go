package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

// SMTPProvider sends email through an SMTP relay. Ports 465 and 587 use TLS;
// other ports (e.g. a local MailHog on 1025) use plain SMTP.
type SMTPProvider struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPProvider creates an SMTP provider.
func NewSMTPProvider(cfg SMTPConfig) *SMTPProvider {
	d := &net.Dialer{Timeout: 10 * time.Second}
	return &SMTPProvider{cfg: cfg, dial: d.DialContext}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) IsConfigured() bool {
	return p.cfg.Host != "" && p.cfg.Port != ""
}

func (p *SMTPProvider) Send(ctx context.Context, req *Request) error {
	if len(req.To) == 0 {
		return fmt.Errorf("recipient is required")
	}

	from := req.From
	// Gmail rejects an envelope sender that differs from the authenticated user
	if strings.Contains(p.cfg.Host, "gmail.com") && p.cfg.User != "" {
		from = p.cfg.User
	}

	addr := net.JoinHostPort(p.cfg.Host, p.cfg.Port)
	conn, err := p.connect(ctx, addr)
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if p.cfg.Port == "587" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.cfg.Host}); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if p.cfg.User != "" && p.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", p.cfg.User, p.cfg.Password, p.cfg.Host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender %s: %w", from, err)
	}
	for _, rcpt := range req.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(BuildMessage(from, req.To, req.Subject, req.Text, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("failed to write email data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	if err := client.Quit(); err != nil {
		slog.Warn("Error during SMTP QUIT", "error", err)
	}

	slog.Info("Email sent via SMTP",
		"smtp_server", addr,
		"to", strings.Join(req.To, ", "),
		"subject", req.Subject,
	)
	return nil
}

func (p *SMTPProvider) connect(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := p.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if p.cfg.Port == "465" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: p.cfg.Host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to connect to SMTP server with TLS: %w", err)
		}
		return tlsConn, nil
	}
	return conn, nil
}

// BuildMessage renders an RFC 822 plain-text message.
func BuildMessage(from string, to []string, subject, body string, at time.Time) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", at.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.Bytes()
}
