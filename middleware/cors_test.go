package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_NilConfig(t *testing.T) {
	var called bool
	h := CORS(nil)(okHandler(&called))

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if !called {
		t.Error("handler not called")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected *, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	var called bool
	h := CORS(&CORSConfig{MaxAge: 600})(okHandler(&called))

	req := httptest.NewRequest("OPTIONS", "/users", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if called {
		t.Error("handler should not be called for preflight request")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	want := "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS"
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != want {
		t.Errorf("expected methods %q, got %q", want, got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("expected max age 600, got %q", got)
	}
}

func TestCORS_OptionsRouteIsNotPreflight(t *testing.T) {
	var called bool
	h := CORS(nil)(okHandler(&called))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/users", nil))

	if !called || w.Code != http.StatusOK {
		t.Errorf("plain OPTIONS should reach the handler (called=%v code=%d)", called, w.Code)
	}
}

func TestCORS_SpecificOrigin(t *testing.T) {
	var called bool
	h := CORS(&CORSConfig{AllowOrigins: []string{"http://allowed.com"}})(okHandler(&called))

	tests := []struct {
		origin string
		want   string
	}{
		{"http://allowed.com", "http://allowed.com"},
		{"http://evil.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %q: expected %q, got %q", tt.origin, tt.want, got)
		}
	}
}

func TestCORS_WildcardWithCredentials(t *testing.T) {
	var called bool
	h := CORS(&CORSConfig{AllowCredentials: true, ExposeHeaders: []string{"X-Total"}})(okHandler(&called))

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"with origin header", "http://example.com", "http://example.com"},
		{"no origin header", "", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("expected origin %s, got %s", tt.want, got)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
				t.Errorf("expected credentials 'true', got %s", got)
			}
			if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Total" {
				t.Errorf("expected exposed headers, got %q", got)
			}
		})
	}
}
