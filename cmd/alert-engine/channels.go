package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel/email"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel/email/provider"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel/push"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel/slack"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel/sms"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel/sound"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/shared"
)

// newEmailProviders registers SES, Resend and SMTP from the environment.
// EMAIL_PROVIDER picks the primary; the others are fallbacks.
func newEmailProviders(ctx context.Context) *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register(provider.NewSMTPProvider(provider.SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     shared.GetEnvOrDefault("SMTP_PORT", "587"),
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}))
	reg.Register(provider.NewResendProvider(os.Getenv("RESEND_API_KEY")))
	if region := os.Getenv("AWS_REGION"); region != "" {
		reg.Register(provider.NewSESProvider(ctx, region))
	}

	primary := strings.ToLower(shared.GetEnvOrDefault("EMAIL_PROVIDER", "smtp"))
	if err := reg.SetPrimary(primary); err != nil {
		slog.Warn("Unknown EMAIL_PROVIDER, using any configured provider", "provider", primary, "error", err)
		return reg
	}
	var fallback []string
	for _, name := range reg.List() {
		if name != primary {
			fallback = append(fallback, name)
		}
	}
	if err := reg.SetFallback(fallback...); err != nil {
		slog.Warn("Failed to set email fallback providers", "error", err)
	}
	return reg
}

// newChannelRegistry builds a sender for every channel.
func newChannelRegistry(ctx context.Context) *channel.Registry {
	reg := channel.NewRegistry()
	reg.Register(push.NewSender(os.Getenv("PUSH_GATEWAY_URL"), os.Getenv("PUSH_API_KEY")))
	reg.Register(sms.NewSender(os.Getenv("SMS_GATEWAY_URL"), os.Getenv("SMS_API_KEY"), shared.GetEnvOrDefault("SMS_SENDER_ID", "ALERTS")))
	reg.Register(email.NewSender(newEmailProviders(ctx), shared.GetEnvOrDefault("EMAIL_FROM", "alerts@localhost")))
	reg.Register(sound.NewSender(os.Stdout))
	reg.Register(slack.NewSender())

	slog.Info("Initialized notification channels", "channels", reg.List())
	return reg
}
