// Package email delivers alert notifications by email through a provider registry.
package email

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel/email/provider"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/retry"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// Mailer is satisfied by *provider.Registry.
type Mailer interface {
	Send(ctx context.Context, req *provider.Request) error
}

// Sender implements channel.Sender for email.
type Sender struct {
	mailer Mailer
	from   string
}

// NewSender creates an email sender that sends from the given address.
func NewSender(mailer Mailer, from string) *Sender {
	return &Sender{mailer: mailer, from: from}
}

func (s *Sender) Type() rules.Channel { return rules.ChannelEmail }

// Send emails p to the comma-separated addresses in endpoint.
func (s *Sender) Send(ctx context.Context, endpoint string, p *channel.Payload) error {
	recipients, err := ParseRecipients(endpoint)
	if err != nil {
		return retry.Permanent(err)
	}

	body := p.Body()
	req := &provider.Request{
		From:    s.from,
		To:      recipients,
		Subject: p.Subject(),
		Text:    body,
		HTML:    "<pre>" + html.EscapeString(body) + "</pre>",
	}
	if err := s.mailer.Send(ctx, req); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

// ParseRecipients splits a comma-separated address list and validates each entry.
func ParseRecipients(value string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(value, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("invalid email address %q", addr)
		}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("email recipient is required")
	}
	return out, nil
}
