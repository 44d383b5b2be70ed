package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "gender is required")

	if err.Code != CodeValidation {
		t.Errorf("expected code=%s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "gender is required" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if len(err.Stack) == 0 {
		t.Error("expected stack trace to be captured")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(CodeArchive, "upload rejected"),
			contains: []string{"ARCHIVE_FAILED", "upload rejected"},
		},
		{
			name: "error with op and cause",
			err: &Error{
				Code:    CodeUpstream,
				Message: "history request failed",
				Op:      "comfy.history",
				Err:     fmt.Errorf("connection refused"),
			},
			contains: []string{"comfy.history", "UPSTREAM_UNAVAILABLE", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			str := tt.err.Error()
			for _, c := range tt.contains {
				if !strings.Contains(str, c) {
					t.Errorf("expected error string to contain %q, got: %s", c, str)
				}
			}
		})
	}
}

func TestWrapPreservesCode(t *testing.T) {
	inner := New(CodeMalformed, "outputs missing")
	wrapped := Wrap(inner, "tracker.parse", "cannot read history")

	if wrapped.Code != CodeMalformed {
		t.Errorf("expected code %s preserved, got %s", CodeMalformed, wrapped.Code)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("expected wrapped error to match inner")
	}
	if Wrap(nil, "op", "msg") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "op", "failed")
	if wrapped.Code != CodeInternal {
		t.Errorf("expected internal code, got %s", wrapped.Code)
	}
}

func TestWrapWithCode(t *testing.T) {
	err := WrapWithCode(fmt.Errorf("503"), CodeUpstream, "comfy.view", "download failed")
	if !IsCode(err, CodeUpstream) {
		t.Errorf("expected upstream code, got %s", GetCode(err))
	}
	if WrapWithCode(nil, CodeUpstream, "op", "msg") != nil {
		t.Error("WrapWithCode(nil) should be nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, 400},
		{CodeNotFound, 404},
		{CodeUpstream, 502},
		{CodeMalformed, 502},
		{CodeArchive, 503},
		{CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}

	if GetHTTPStatus(fmt.Errorf("plain")) != 500 {
		t.Error("plain errors should map to 500")
	}
}

func TestFields(t *testing.T) {
	err := ValidationField("gender", "missing")
	fields := GetFields(err)
	if fields["field"] != "gender" {
		t.Errorf("expected field=gender, got %v", fields["field"])
	}
	if GetFields(fmt.Errorf("plain")) != nil {
		t.Error("plain errors carry no fields")
	}
}

func TestStackTrace(t *testing.T) {
	err := New(CodeInternal, "x")
	if !strings.Contains(err.StackTrace(), "errors_test.go") {
		t.Errorf("expected stack to mention test file, got: %s", err.StackTrace())
	}
}
