// Package slack sends alert notifications to Slack Incoming Webhooks.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/retry"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// Message is the webhook body.
type Message struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a Slack message attachment.
type Attachment struct {
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Timestamp int64   `json:"ts,omitempty"`
}

// Field is one key/value cell of an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// BuildMessage renders p as a Slack attachment colored by severity.
func BuildMessage(p *channel.Payload) Message {
	fields := []Field{
		{Title: "Severity", Value: string(p.Severity), Short: true},
		{Title: "Metric", Value: p.Metric, Short: true},
		{Title: "Scope", Value: p.Scope, Short: true},
		{Title: "Value", Value: p.ValueString(), Short: true},
		{Title: "Condition", Value: fmt.Sprintf("%s %s", p.Condition, p.ThresholdString()), Short: false},
	}
	if p.Occurrences > 1 {
		fields = append(fields, Field{Title: "Occurrences", Value: fmt.Sprint(p.Occurrences), Short: true})
	}

	return Message{
		Text: p.Summary(),
		Attachments: []Attachment{{
			Color:     severityColor(p.Severity),
			Title:     p.Subject(),
			Fields:    fields,
			Timestamp: p.Timestamp.Unix(),
		}},
	}
}

func severityColor(sev rules.Severity) string {
	switch sev {
	case rules.SeverityCritical:
		return "danger"
	case rules.SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

// Sender posts to a Slack Incoming Webhook.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a Slack sender.
func NewSender() *Sender {
	return &Sender{httpClient: channel.NewHTTPClient()}
}

func (s *Sender) Type() rules.Channel { return rules.ChannelSlack }

// Send posts p to the webhook URL in endpoint.
func (s *Sender) Send(ctx context.Context, endpoint string, p *channel.Payload) error {
	if endpoint == "" {
		return retry.Permanent(fmt.Errorf("slack webhook URL is required"))
	}
	if !channel.IsHTTPURL(endpoint) {
		return retry.Permanent(fmt.Errorf("invalid Slack webhook URL %q: expected https://hooks.slack.com/services/...", endpoint))
	}

	if err := channel.PostJSON(ctx, s.httpClient, endpoint, BuildMessage(p), nil); err != nil {
		return fmt.Errorf("slack: %w", err)
	}

	slog.Info("Successfully sent Slack notification",
		"webhook_url", channel.MaskURL(endpoint),
		"rule_id", p.RuleID,
		"record_id", p.RecordID,
	)
	return nil
}
