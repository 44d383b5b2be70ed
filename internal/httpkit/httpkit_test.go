package httpkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteErr(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErr(rec, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "ComfyUI error: boom", map[string]any{"status": 500})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != "UPSTREAM_UNAVAILABLE" || env.Error.Message != "ComfyUI error: boom" {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORS(CORSOptions{AllowedOrigins: []string{" http://kiosk.local ", ""}})(next)

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{"allowed simple", http.MethodGet, "http://kiosk.local", false, http.StatusTeapot, "http://kiosk.local"},
		{"foreign origin", http.MethodGet, "http://evil.example", false, http.StatusTeapot, ""},
		{"no origin", http.MethodGet, "", false, http.StatusTeapot, ""},
		{"preflight", http.MethodOptions, "http://kiosk.local", true, http.StatusNoContent, "http://kiosk.local"},
		{"bare options", http.MethodOptions, "http://kiosk.local", false, http.StatusTeapot, "http://kiosk.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/comfy/process", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("expected allow-origin %q, got %q", tt.wantAllow, got)
			}
			if tt.wantAllow != "" && rec.Header().Get("Access-Control-Max-Age") != "600" {
				t.Errorf("expected default max age, got %q", rec.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestCORSWildcard(t *testing.T) {
	h := CORS(CORSOptions{AllowedOrigins: []string{"*"}, AllowCredentials: true})(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://anything.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://anything.local" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials header")
	}
}
