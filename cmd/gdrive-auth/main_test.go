package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    bool
	}{
		{"valid", "?state=s1&code=abc", http.StatusOK, "abc", false},
		{"wrong state", "?state=other&code=abc", http.StatusBadRequest, "", true},
		{"denied", "?state=s1&error=access_denied", http.StatusBadRequest, "", true},
		{"missing code", "?state=s1", http.StatusBadRequest, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeCh := make(chan string, 1)
			errCh := make(chan error, 1)
			h := callbackHandler("s1", codeCh, errCh)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			select {
			case code := <-codeCh:
				if code != tt.wantCode {
					t.Errorf("expected code %q, got %q", tt.wantCode, code)
				}
			case err := <-errCh:
				if !tt.wantErr {
					t.Errorf("unexpected error %v", err)
				}
			default:
				t.Error("handler reported nothing")
			}
		})
	}
}

func TestRandomStateIsUnique(t *testing.T) {
	a, b := randomState(), randomState()
	if a == b || len(a) != 24 {
		t.Errorf("unexpected states %q %q", a, b)
	}
}
