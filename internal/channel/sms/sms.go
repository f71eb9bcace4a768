// Package sms sends alert notifications through an HTTP SMS gateway.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/retry"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// MaxLength is the longest message body sent; longer summaries are truncated.
const MaxLength = 160

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Message is the body posted to the gateway.
type Message struct {
	To     []string `json:"to"`
	Body   string   `json:"body"`
	Sender string   `json:"sender,omitempty"`
}

// Sender posts SMS messages to a gateway.
type Sender struct {
	gatewayURL string
	apiKey     string
	senderID   string
	httpClient *http.Client
}

// NewSender creates an SMS sender.
func NewSender(gatewayURL, apiKey, senderID string) *Sender {
	return &Sender{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		apiKey:     apiKey,
		senderID:   senderID,
		httpClient: channel.NewHTTPClient(),
	}
}

func (s *Sender) Type() rules.Channel { return rules.ChannelSMS }

// Send texts the summary of p to the comma-separated numbers in endpoint.
func (s *Sender) Send(ctx context.Context, endpoint string, p *channel.Payload) error {
	if !channel.IsHTTPURL(s.gatewayURL) {
		return retry.Permanent(fmt.Errorf("SMS gateway URL is not configured"))
	}
	numbers, err := ParseNumbers(endpoint)
	if err != nil {
		return retry.Permanent(err)
	}

	msg := Message{To: numbers, Body: Truncate(p.Summary(), MaxLength), Sender: s.senderID}
	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + s.apiKey}
	}
	if err := channel.PostJSON(ctx, s.httpClient, s.gatewayURL+"/messages", msg, headers); err != nil {
		return fmt.Errorf("sms: %w", err)
	}

	slog.Info("Successfully sent SMS notification",
		"recipients", len(numbers),
		"rule_id", p.RuleID,
		"record_id", p.RecordID,
	)
	return nil
}

// ParseNumbers splits a comma-separated list of E.164 phone numbers.
func ParseNumbers(value string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(value, ",") {
		n := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(part)
		if n == "" {
			continue
		}
		if !e164.MatchString(n) {
			return nil, fmt.Errorf("invalid phone number %q: expected E.164 format like +15551234567", strings.TrimSpace(part))
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("SMS recipient is required")
	}
	return out, nil
}

// Truncate shortens s to at most n runes, ending with "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
