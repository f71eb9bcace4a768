package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendProvider sends email through the Resend API.
type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider creates a provider for apiKey. An empty key yields an
// unconfigured provider.
func NewResendProvider(apiKey string) *ResendProvider {
	if apiKey == "" {
		return &ResendProvider{}
	}
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

// NewResendProviderWithClient wraps an existing client, e.g. one pointed at a test server.
func NewResendProviderWithClient(client *resend.Client) *ResendProvider {
	return &ResendProvider{client: client}
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) IsConfigured() bool { return p.client != nil }

func (p *ResendProvider) Send(ctx context.Context, req *Request) error {
	if p.client == nil {
		return fmt.Errorf("Resend client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("recipient is required")
	}

	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Text:    req.Text,
		Html:    req.HTML,
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sent, err := p.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("Resend send failed: %w", err)
	}

	slog.Info("Email sent via Resend",
		"email_id", sent.Id,
		"to", req.To,
		"subject", req.Subject,
	)
	return nil
}
