package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(t *testing.T, reached *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireTokenDisabled(t *testing.T) {
	var reached bool
	handler := RequireToken("")(okHandler(t, &reached))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/state", nil))

	if !reached || rec.Code != http.StatusOK {
		t.Errorf("status = %d, reached = %v, want pass-through", rec.Code, reached)
	}
}

func TestRequireToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", "", http.StatusUnauthorized},
		{"bearer", "Bearer s3cret", "", http.StatusOK},
		{"lowercase scheme", "bearer s3cret", "", http.StatusOK},
		{"query param", "", "?access_token=s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			handler := RequireToken("s3cret")(okHandler(t, &reached))

			req := httptest.NewRequest("GET", "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if reached != (tt.want == http.StatusOK) {
				t.Errorf("reached = %v", reached)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}
