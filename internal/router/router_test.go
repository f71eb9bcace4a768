package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/dispatch"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/engine"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/handlers"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

type okDeliverer struct{}

func (okDeliverer) Deliver(ctx context.Context, c rules.Channel, endpoint string, p *channel.Payload) channel.Result {
	return channel.Result{Channel: c, Attempts: 1}
}

func newTestServer(t *testing.T) (*httptest.Server, *metrics.Collector) {
	t.Helper()
	log := history.NewLog(100)
	coord := dispatch.NewCoordinator(okDeliverer{}, log, nil)
	eng := engine.New(engine.Deps{
		Store:       rules.NewMemoryStore(),
		Coordinator: coord,
		History:     log,
	})
	t.Cleanup(eng.Close)

	collector := metrics.NewCollector("alert-engine-router-test", nil)
	srv := httptest.NewServer(NewRouter(handlers.NewHandlers(eng, nil), collector).Handler())
	t.Cleanup(srv.Close)
	return srv, collector
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestRouter_Routes(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"prometheus", http.MethodGet, "/metrics", "", http.StatusOK},
		{"list rules", http.MethodGet, "/api/v1/rules", "", http.StatusOK},
		{"get missing rule", http.MethodGet, "/api/v1/rules?rule_id=nope", "", http.StatusNotFound},
		{"rules wrong method", http.MethodPatch, "/api/v1/rules", "", http.StatusMethodNotAllowed},
		{"malformed sample", http.MethodPost, "/api/v1/samples", `{"metric":"churn_risk","scope":"acme"}`, http.StatusUnprocessableEntity},
		{"active alerts", http.MethodGet, "/api/v1/alerts/active", "", http.StatusOK},
		{"ack without alert", http.MethodPost, "/api/v1/alerts/acknowledge", `{"rule_id":"r1","scope":"acme","user_id":"u1"}`, http.StatusNotFound},
		{"history", http.MethodGet, "/api/v1/history", "", http.StatusOK},
		{"clear history", http.MethodDelete, "/api/v1/history", "", http.StatusNoContent},
		{"history wrong method", http.MethodPost, "/api/v1/history", "", http.StatusMethodNotAllowed},
		{"schedule", http.MethodGet, "/api/v1/schedule", "", http.StatusOK},
		{"service metrics without redis", http.MethodGet, "/api/v1/services/metrics", "", http.StatusServiceUnavailable},
		{"preflight", http.MethodOptions, "/api/v1/rules", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.want, body)
			}
			if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}
		})
	}
}

func TestRouter_RuleLifecycle(t *testing.T) {
	srv, collector := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/rules",
		`{"name":"High churn","metric":"churn_risk","scope":["*"],"condition":"greater_than","threshold":30,"severity":"warning","channels":["app"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", resp.StatusCode, body)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/samples", `{"metric":"churn_risk","scope":"acme","value":35}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("sample status = %d", resp.StatusCode)
	}
	_, body = do(t, http.MethodGet, srv.URL+"/api/v1/alerts/active?scope=acme", "")
	if !strings.Contains(body, `"scope":"acme"`) {
		t.Errorf("active alerts = %s, want acme alert", body)
	}

	if got := collector.GetSnapshot().CustomCounters["http_POST"]; got != 2 {
		t.Errorf("http_POST = %d, want 2", got)
	}
}

func TestRouter_TextRule(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/rules",
		`{"name":"Gate open","metric":"gate","scope":["*"],"condition":"equals","threshold_text":"open","severity":"warning","channels":["app"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", resp.StatusCode, body)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/samples", `{"metric":"gate","scope":"g1","text":"open"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("sample status = %d", resp.StatusCode)
	}

	for _, path := range []string{"/api/v1/alerts/active", "/api/v1/history"} {
		resp, body := do(t, http.MethodGet, srv.URL+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
		if !strings.Contains(body, `"text":"open"`) || strings.Contains(body, `"value"`) {
			t.Errorf("%s body = %q, want text reading without a value", path, body)
		}
	}
}
