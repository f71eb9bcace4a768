package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/retry"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

func testPayload() *channel.Payload {
	threshold := 80.0
	value := 91.0
	return &channel.Payload{
		RecordID:    "rec-1",
		RuleID:      "r1",
		RuleName:    "Tower overheating",
		Metric:      "temperature",
		Scope:       "tower-3",
		Value:       &value,
		Threshold:   &threshold,
		Condition:   "greater_than",
		Unit:        "C",
		Severity:    rules.SeverityCritical,
		Occurrences: 3,
		Timestamp:   time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC),
	}
}

func TestSender_Send(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantErr     bool
		wantRetries bool
	}{
		{"ok", http.StatusOK, false, false},
		{"server error is retryable", http.StatusBadGateway, true, true},
		{"client error is permanent", http.StatusForbidden, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Message
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewSender().Send(context.Background(), srv.URL, testPayload())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && retry.IsRetryable(err) != tt.wantRetries {
				t.Errorf("IsRetryable(%v) = %v, want %v", err, !tt.wantRetries, tt.wantRetries)
			}
			if len(got.Attachments) != 1 || got.Attachments[0].Color != "danger" {
				t.Errorf("posted message = %+v", got)
			}
		})
	}
}

func TestSender_InvalidEndpoint(t *testing.T) {
	s := NewSender()
	for _, ep := range []string{"", "#ops-alerts"} {
		err := s.Send(context.Background(), ep, testPayload())
		if err == nil {
			t.Fatalf("Send(%q) error = nil", ep)
		}
		if retry.IsRetryable(err) {
			t.Errorf("Send(%q) error should be permanent", ep)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	m := BuildMessage(testPayload())
	a := m.Attachments[0]
	if a.Title != "Alert: CRITICAL - Tower overheating" {
		t.Errorf("Title = %q", a.Title)
	}
	var occ *Field
	for i := range a.Fields {
		if a.Fields[i].Title == "Occurrences" {
			occ = &a.Fields[i]
		}
	}
	if occ == nil || occ.Value != "3" {
		t.Errorf("Occurrences field = %+v", occ)
	}

	p := testPayload()
	p.Severity = rules.SeverityInfo
	if c := BuildMessage(p).Attachments[0].Color; c != "good" {
		t.Errorf("info color = %q, want good", c)
	}
}
