// Package push delivers in-app notifications through an HTTP push gateway.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/retry"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// DefaultTopic receives app notifications for rules without an app recipient.
const DefaultTopic = "alerts"

// Message is the body posted to the gateway.
type Message struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data"`
}

// BuildMessage renders p for delivery to target.
func BuildMessage(target string, p *channel.Payload) Message {
	priority := "normal"
	if p.Severity == rules.SeverityCritical {
		priority = "high"
	}
	return Message{
		To:       target,
		Title:    p.Subject(),
		Body:     p.Summary(),
		Priority: priority,
		Data: map[string]string{
			"record_id": p.RecordID,
			"rule_id":   p.RuleID,
			"metric":    p.Metric,
			"scope":     p.Scope,
			"severity":  string(p.Severity),
		},
	}
}

// Sender posts app notifications to a push gateway.
type Sender struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
}

// NewSender creates a push sender for the given gateway.
func NewSender(gatewayURL, apiKey string) *Sender {
	return &Sender{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		apiKey:     apiKey,
		httpClient: channel.NewHTTPClient(),
	}
}

func (s *Sender) Type() rules.Channel { return rules.ChannelApp }

// Send delivers p to the device or topic in endpoint, or to DefaultTopic.
func (s *Sender) Send(ctx context.Context, endpoint string, p *channel.Payload) error {
	if s.gatewayURL == "" {
		// no gateway configured: app notifications are surfaced through the active-alert API only
		slog.Debug("Push gateway not configured, skipping app notification",
			"rule_id", p.RuleID,
			"record_id", p.RecordID,
		)
		return nil
	}
	if !channel.IsHTTPURL(s.gatewayURL) {
		return retry.Permanent(fmt.Errorf("invalid push gateway URL %q", s.gatewayURL))
	}

	target := strings.TrimSpace(endpoint)
	if target == "" {
		target = DefaultTopic
	}

	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + s.apiKey}
	}
	if err := channel.PostJSON(ctx, s.httpClient, s.gatewayURL+"/push", BuildMessage(target, p), headers); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	slog.Info("Successfully sent app notification",
		"target", target,
		"rule_id", p.RuleID,
		"record_id", p.RecordID,
	)
	return nil
}
