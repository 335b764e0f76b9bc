package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		status int
	}{
		{
			name:   "no checks",
			status: http.StatusOK,
		},
		{
			name: "healthy",
			checks: map[string]Check{
				"data": func(context.Context) error { return nil },
			},
			status: http.StatusOK,
		},
		{
			name: "unhealthy",
			checks: map[string]Check{
				"data":    func(context.Context) error { return nil },
				"storage": func(context.Context) error { return errors.New("bucket missing") },
			},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(":0", tt.checks)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if len(body) != len(tt.checks) {
				t.Errorf("body has %d entries, want %d", len(body), len(tt.checks))
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	AlertsTotal.WithLabelValues("high", "sent").Inc()

	s := NewServer(":0", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wildwatch_alerts_alerts_total") {
		t.Error("alerts counter not exported")
	}
}
