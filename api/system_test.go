package api_test

import (
	"net/http"
	"strings"
	"testing"
)

func TestSystemRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantBody   []string
	}{
		{"Health", "/health", "", http.StatusOK, []string{`"status":"ok"`, `"service":"qaforum"`}},
		{"Version", "/version", "", http.StatusOK, []string{`"version":"test"`, `"buildTime":"now"`}},
		{"StatsNeedsToken", "/v1/stats", "", http.StatusUnauthorized, nil},
		{"UnknownRoute", "/v2/nothing", "", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodGet, tt.path, tt.token, nil)
			if status != tt.wantStatus {
				t.Fatalf("expected %d got %d body=%s", tt.wantStatus, status, body)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(string(body), want) {
					t.Fatalf("body %s missing %s", body, want)
				}
			}
		})
	}
}
