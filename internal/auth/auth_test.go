package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{Enabled: false})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/elements/refresh", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rr.Code)
	}
}

func TestMiddlewareEnforced(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: "secret"})(okHandler())

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no header", "/api/v1/elements/refresh", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/elements/refresh", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "/api/v1/elements/refresh", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/api/v1/elements/refresh", "Bearer secret", http.StatusOK},
		{"exempt health", "/healthz", "", http.StatusOK},
		{"exempt metrics", "/metrics", "", http.StatusOK},
		{"exempt position", "/api/v1/position/25544", "", http.StatusOK},
		{"exempt passes", "/api/v1/passes/25544", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
