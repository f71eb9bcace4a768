package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the part of the SES v2 client the provider uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESProvider sends email through AWS SES v2.
type SESProvider struct {
	client SESAPI
	region string
}

// NewSESProvider loads the default AWS credential chain for region. A
// provider that failed to load reports IsConfigured() == false.
func NewSESProvider(ctx context.Context, region string) *SESProvider {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider will be unavailable", "error", err)
		return &SESProvider{region: region}
	}
	slog.Info("SES email provider initialized", "region", region)
	return &SESProvider{client: sesv2.NewFromConfig(cfg), region: region}
}

// NewSESProviderWithClient wraps an existing client.
func NewSESProviderWithClient(client SESAPI, region string) *SESProvider {
	return &SESProvider{client: client, region: region}
}

func (p *SESProvider) Name() string { return "ses" }

func (p *SESProvider) IsConfigured() bool { return p.client != nil }

func (p *SESProvider) Send(ctx context.Context, req *Request) error {
	if p.client == nil {
		return fmt.Errorf("SES client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("recipient is required")
	}

	var body types.Body
	if req.HTML != "" {
		body.Html = &types.Content{Data: aws.String(req.HTML), Charset: aws.String("UTF-8")}
	}
	if req.Text != "" {
		body.Text = &types.Content{Data: aws.String(req.Text), Charset: aws.String("UTF-8")}
	}

	out, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(req.From),
		Destination:      &types.Destination{ToAddresses: req.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(req.Subject)},
				Body:    &body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES send failed: %w", err)
	}

	slog.Info("Email sent via SES",
		"message_id", aws.ToString(out.MessageId),
		"to", req.To,
		"subject", req.Subject,
	)
	return nil
}
