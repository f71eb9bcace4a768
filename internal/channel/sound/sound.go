// Package sound drives the local audible annunciator for alerts.
package sound

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// Profiles maps severity to the default tone played when a rule sets none.
var Profiles = map[rules.Severity]string{
	rules.SeverityInfo:     "chime",
	rules.SeverityWarning:  "beep",
	rules.SeverityCritical: "siren",
}

// Sender plays a tone for each alert. Plays are written to out (a terminal
// bell, a relay driver, or io.Discard) and counted per profile.
type Sender struct {
	mu    sync.Mutex
	out   io.Writer
	plays map[string]int
}

// NewSender creates a sound sender writing to out; nil means io.Discard.
func NewSender(out io.Writer) *Sender {
	if out == nil {
		out = io.Discard
	}
	return &Sender{out: out, plays: make(map[string]int)}
}

func (s *Sender) Type() rules.Channel { return rules.ChannelSound }

// Send plays the profile named in endpoint, or the severity default.
func (s *Sender) Send(ctx context.Context, endpoint string, p *channel.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	profile := strings.TrimSpace(endpoint)
	if profile == "" {
		profile = Profiles[p.Severity]
	}
	if profile == "" {
		profile = "beep"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "\a[%s] %s\n", profile, p.Summary()); err != nil {
		return fmt.Errorf("sound: %w", err)
	}
	s.plays[profile]++

	slog.Info("Played alert sound",
		"profile", profile,
		"rule_id", p.RuleID,
		"scope", p.Scope,
	)
	return nil
}

// Plays returns how many times profile has played.
func (s *Sender) Plays(profile string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays[profile]
}
