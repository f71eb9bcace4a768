package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

func serve(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid rule", &rules.InvalidRuleError{Field: "name", Reason: "is required"}, http.StatusBadRequest},
		{"invalid schedule", fmt.Errorf("%w: bad start", schedule.ErrInvalidSchedule), http.StatusBadRequest},
		{"rule not found", fmt.Errorf("%w: r1", rules.ErrRuleNotFound), http.StatusNotFound},
		{"record not found", fmt.Errorf("%w: x", history.ErrRecordNotFound), http.StatusNotFound},
		{"no active alert", alertstate.ErrNoActiveAlert, http.StatusNotFound},
		{"version mismatch", fmt.Errorf("%w: expected 1", rules.ErrVersionMismatch), http.StatusConflict},
		{"duplicate", errors.New("rule already exists: r1"), http.StatusConflict},
		{"malformed sample", fmt.Errorf("%w: scope is required", signal.ErrMalformedSample), http.StatusUnprocessableEntity},
		{"other", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandlers_SubmitSample(t *testing.T) {
	var got signal.Sample
	eng := &mockEngine{SubmitSampleFn: func(ctx context.Context, s signal.Sample) error {
		got = s
		return s.Check()
	}}
	h := NewHandlers(eng, nil)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"numeric sample", http.MethodPost, `{"metric":"churn_risk","scope":"acme","value":35}`, http.StatusAccepted},
		{"text sample", http.MethodPost, `{"metric":"gate","scope":"g1","text":"open"}`, http.StatusAccepted},
		{"missing value", http.MethodPost, `{"metric":"churn_risk","scope":"acme"}`, http.StatusUnprocessableEntity},
		{"missing scope", http.MethodPost, `{"metric":"churn_risk","value":1}`, http.StatusUnprocessableEntity},
		{"invalid JSON", http.MethodPost, `churn=35`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h.SubmitSample, tt.method, "/api/v1/samples", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	serve(h.SubmitSample, http.MethodPost, "/api/v1/samples", `{"metric":" churn_risk ","scope":"acme","value":35,"event_ts":1710151200000}`)
	if got.Metric != "churn_risk" || got.Value != 35 || !got.Timestamp.Equal(time.UnixMilli(1710151200000)) {
		t.Errorf("submitted sample = %+v", got)
	}
}

func TestHandlers_CreateRule(t *testing.T) {
	h := NewHandlers(&mockEngine{}, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "valid rule",
			body: `{"name":"High churn","metric":"churn_risk","scope":["*"],"condition":"greater_than","threshold":30,"severity":"warning","channels":["app"]}`,
			want: http.StatusCreated,
		},
		{
			name: "unknown condition",
			body: `{"name":"High churn","metric":"churn_risk","scope":["*"],"condition":"above","threshold":30,"severity":"warning","channels":["app"]}`,
			want: http.StatusBadRequest,
		},
		{name: "invalid JSON", body: `{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h.CreateRule, http.MethodPost, "/api/v1/rules", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want != http.StatusCreated {
				return
			}
			var rule rules.Rule
			if err := json.NewDecoder(w.Body).Decode(&rule); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if rule.ID != "rule-1" || !rule.Enabled {
				t.Errorf("created rule = %+v, want id rule-1 and enabled by default", rule)
			}
		})
	}
}

func TestHandlers_GetRule(t *testing.T) {
	eng := &mockEngine{GetRuleFn: func(ctx context.Context, id string) (*rules.Rule, error) {
		if id == "r1" {
			return &rules.Rule{ID: "r1", Name: "High churn"}, nil
		}
		return nil, fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
	}}
	h := NewHandlers(eng, nil)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"found", "/api/v1/rules?rule_id=r1", http.StatusOK},
		{"not found", "/api/v1/rules?rule_id=r2", http.StatusNotFound},
		{"missing rule_id", "/api/v1/rules", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(h.GetRule, http.MethodGet, tt.target, ""); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandlers_ListRulesFilters(t *testing.T) {
	var got rules.Filter
	eng := &mockEngine{ListRulesFn: func(ctx context.Context, f rules.Filter) ([]*rules.Rule, error) {
		got = f
		return nil, nil
	}}
	h := NewHandlers(eng, nil)

	w := serve(h.ListRules, http.MethodGet, "/api/v1/rules?metric=churn_risk&scope=acme&severity=critical&enabled=false", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("response = %d %s, want 200 []", w.Code, w.Body.String())
	}
	if got.Metric != "churn_risk" || got.Scope != "acme" || got.Severity != rules.SeverityCritical {
		t.Errorf("filter = %+v", got)
	}
	if got.Enabled == nil || *got.Enabled {
		t.Errorf("enabled filter = %v, want false", got.Enabled)
	}
}

func TestHandlers_UpdateRule(t *testing.T) {
	eng := &mockEngine{UpdateRuleFn: func(ctx context.Context, id string, p rules.Patch) (*rules.Rule, error) {
		if p.Version != nil && *p.Version != 1 {
			return nil, fmt.Errorf("%w: expected version %d", rules.ErrVersionMismatch, *p.Version)
		}
		return &rules.Rule{ID: id, Threshold: p.Threshold, Version: 2}, nil
	}}
	h := NewHandlers(eng, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"threshold change", http.MethodPut, "/api/v1/rules/update?rule_id=r1", `{"threshold":40,"version":1}`, http.StatusOK},
		{"stale version", http.MethodPut, "/api/v1/rules/update?rule_id=r1", `{"threshold":40,"version":7}`, http.StatusConflict},
		{"missing rule_id", http.MethodPut, "/api/v1/rules/update", `{}`, http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/v1/rules/update?rule_id=r1", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(h.UpdateRule, tt.method, tt.target, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandlers_ToggleAndDeleteRule(t *testing.T) {
	var toggled *bool
	eng := &mockEngine{
		ToggleRuleFn: func(ctx context.Context, id string, enabled bool) (*rules.Rule, error) {
			toggled = &enabled
			return &rules.Rule{ID: id, Enabled: enabled}, nil
		},
		DeleteRuleFn: func(ctx context.Context, id string) error {
			if id != "r1" {
				return fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
			}
			return nil
		},
	}
	h := NewHandlers(eng, nil)

	if w := serve(h.ToggleRule, http.MethodPost, "/api/v1/rules/toggle?rule_id=r1", `{"enabled":false}`); w.Code != http.StatusOK {
		t.Errorf("toggle status = %d", w.Code)
	}
	if toggled == nil || *toggled {
		t.Errorf("toggled = %v, want false", toggled)
	}
	if w := serve(h.ToggleRule, http.MethodPost, "/api/v1/rules/toggle?rule_id=r1", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("toggle without enabled status = %d, want 400", w.Code)
	}
	if w := serve(h.DeleteRule, http.MethodDelete, "/api/v1/rules/delete?rule_id=r1", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := serve(h.DeleteRule, http.MethodDelete, "/api/v1/rules/delete?rule_id=r9", ""); w.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", w.Code)
	}
}

func TestHandlers_Acknowledge(t *testing.T) {
	eng := &mockEngine{AcknowledgeFn: func(ctx context.Context, ruleID, scope, user string) (*alertstate.Event, error) {
		if ruleID == "r1" && scope == "acme" {
			return &alertstate.Event{RuleID: ruleID, Scope: scope, State: alertstate.StateAcknowledged, AcknowledgedBy: user}, nil
		}
		return nil, fmt.Errorf("%w: rule %s scope %s", alertstate.ErrNoActiveAlert, ruleID, scope)
	}}
	h := NewHandlers(eng, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"active alert", `{"rule_id":"r1","scope":"acme","user_id":"u1"}`, http.StatusOK},
		{"no active alert", `{"rule_id":"r1","scope":"globex","user_id":"u1"}`, http.StatusNotFound},
		{"missing user", `{"rule_id":"r1","scope":"acme"}`, http.StatusBadRequest},
		{"missing scope", `{"rule_id":"r1","user_id":"u1"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h.Acknowledge, http.MethodPost, "/api/v1/alerts/acknowledge", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandlers_ListActiveAlerts(t *testing.T) {
	var got alertstate.Filter
	eng := &mockEngine{ListActiveAlertsFn: func(f alertstate.Filter) []alertstate.Event {
		got = f
		return []alertstate.Event{{RuleID: "r1", Scope: "acme", State: alertstate.StateNotified}}
	}}
	h := NewHandlers(eng, nil)

	w := serve(h.ListActiveAlerts, http.MethodGet, "/api/v1/alerts/active?scope=acme&state=notified", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var active []alertstate.Event
	if err := json.NewDecoder(w.Body).Decode(&active); err != nil || len(active) != 1 {
		t.Fatalf("active = %+v, %v", active, err)
	}
	if got.Scope != "acme" || got.State != alertstate.StateNotified {
		t.Errorf("filter = %+v", got)
	}
}

func TestHandlers_History(t *testing.T) {
	var gotFilter history.Filter
	var gotLimit int
	cleared := false
	eng := &mockEngine{
		ListHistoryFn: func(f history.Filter, limit int) []history.Record {
			gotFilter, gotLimit = f, limit
			return []history.Record{{ID: "rec-1", RuleID: "r1", Kind: history.KindNotified}}
		},
		ClearHistoryFn: func(ctx context.Context) error {
			cleared = true
			return nil
		},
	}
	h := NewHandlers(eng, nil)

	w := serve(h.ListHistory, http.MethodGet, "/api/v1/history?limit=5&rule_id=r1&kind=notified&acknowledged=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HistoryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp.Count != 1 || resp.Limit != 5 {
		t.Fatalf("response = %+v, %v", resp, err)
	}
	if gotLimit != 5 || gotFilter.RuleID != "r1" || gotFilter.Kind != history.KindNotified || gotFilter.Acknowledged == nil || !*gotFilter.Acknowledged {
		t.Errorf("filter = %+v limit = %d", gotFilter, gotLimit)
	}

	serve(h.ListHistory, http.MethodGet, "/api/v1/history", "")
	if gotLimit != DefaultHistoryLimit {
		t.Errorf("default limit = %d, want %d", gotLimit, DefaultHistoryLimit)
	}
	if w := serve(h.ListHistory, http.MethodGet, "/api/v1/history?since=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", w.Code)
	}

	if w := serve(h.ClearHistory, http.MethodDelete, "/api/v1/history", ""); w.Code != http.StatusNoContent || !cleared {
		t.Errorf("clear status = %d cleared = %v", w.Code, cleared)
	}
}

func TestHandlers_Schedule(t *testing.T) {
	eng := &mockEngine{schedule: schedule.Default()}
	h := NewHandlers(eng, nil)

	w := serve(h.SetSchedule, http.MethodPut, "/api/v1/schedule",
		`{"enabled":true,"weekdays":[1,2,3,4,5],"start":"08:00","end":"18:00","timezone":"UTC","allow_critical_anytime":true,"group_interval":"10m"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d (%s)", w.Code, w.Body.String())
	}
	if eng.schedule.Start != "08:00" || eng.schedule.Grouping() != 10*time.Minute {
		t.Errorf("schedule = %+v", eng.schedule)
	}

	if w := serve(h.SetSchedule, http.MethodPut, "/api/v1/schedule", `{"enabled":true,"start":"25:00"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid schedule status = %d, want 400", w.Code)
	}
	if eng.schedule.Start != "08:00" {
		t.Errorf("invalid schedule was applied: %+v", eng.schedule)
	}

	w = serve(h.GetSchedule, http.MethodGet, "/api/v1/schedule", "")
	var got schedule.Schedule
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil || got.End != "18:00" {
		t.Errorf("get schedule = %+v, %v", got, err)
	}
}

func TestHandlers_GetServiceMetrics(t *testing.T) {
	reader := &mockMetricsReader{services: map[string]*metrics.ServiceMetrics{
		"other-service": {ServiceName: "other-service", Status: "healthy"},
	}}
	h := NewHandlers(&mockEngine{}, reader)

	w := serve(h.GetServiceMetrics, http.MethodGet, "/api/v1/services/metrics", "")
	var resp ServiceMetricsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Services["alert-engine"] == nil || resp.Services["alert-engine"].Status != "offline" {
		t.Errorf("alert-engine = %+v, want offline placeholder", resp.Services["alert-engine"])
	}
	if resp.Services["other-service"] == nil {
		t.Error("missing other-service")
	}

	w = serve(h.GetServiceMetrics, http.MethodGet, "/api/v1/services/metrics?service=missing", "")
	var one metrics.ServiceMetrics
	if err := json.NewDecoder(w.Body).Decode(&one); err != nil || one.Status != "offline" {
		t.Errorf("missing service = %+v, %v", one, err)
	}

	reader.err = errors.New("redis down")
	if w := serve(h.GetServiceMetrics, http.MethodGet, "/api/v1/services/metrics", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}

	noReader := NewHandlers(&mockEngine{}, nil)
	if w := serve(noReader.GetServiceMetrics, http.MethodGet, "/api/v1/services/metrics", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status without reader = %d, want 503", w.Code)
	}
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]float64{"value": math.NaN()})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "value") {
		t.Errorf("body = %q, want no partial payload", w.Body.String())
	}
}
