package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
)

func TestGenerateIDs(t *testing.T) {
	correlationID := GenerateCorrelationID()
	if correlationID == "" {
		t.Error("Expected non-empty correlation ID")
	}

	requestID := GenerateRequestID()
	if !strings.HasPrefix(requestID, "req_") {
		t.Errorf("Expected req_ prefix, got %q", requestID)
	}

	if correlationID == requestID {
		t.Error("Correlation ID and request ID should be different")
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithRequestID(ctx, "req_1")
	LogError(ctx, "lookup failed", errors.New("boom"), Fields{"url": "https://example.com"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	expected := map[string]string{
		"message":        "lookup failed",
		"level":          "error",
		"correlation_id": "corr-1",
		"request_id":     "req_1",
		"error":          "boom",
		"url":            "https://example.com",
	}
	for key, want := range expected {
		if got := entry[key]; got != want {
			t.Errorf("%s = %v, want %q", key, got, want)
		}
	}
}

func TestSetDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer SetDefaultFields(nil)

	fields := Fields{"mode": "serverless", "extractor": "yt-dlp"}
	SetDefaultFields(fields)
	fields["mode"] = "changed after the call"

	LogWarn(WithRequestID(context.Background(), "req_2"), "slow download", Fields{"format_id": "22"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	expected := map[string]string{
		"level":      "warning",
		"mode":       "serverless",
		"extractor":  "yt-dlp",
		"request_id": "req_2",
		"format_id":  "22",
	}
	for key, want := range expected {
		if got := entry[key]; got != want {
			t.Errorf("%s = %v, want %q", key, got, want)
		}
	}
}

func TestNewLoggerLevel(t *testing.T) {
	testCases := []struct {
		name  string
		level string
		want  string
	}{
		{"default", "", "info"},
		{"debug", "debug", "debug"},
		{"invalid", "chatty", "info"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(tc.level, &buf)
			if got := l.GetLevel().String(); got != tc.want {
				t.Errorf("level = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAppErrors(t *testing.T) {
	cause := errors.New("ERROR: [youtube] abc: Private video")

	testCases := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantMsg    string
	}{
		{"invalid request", NewInvalidRequestError(MsgURLRequired), http.StatusBadRequest, MsgURLRequired},
		{"lookup", NewLookupError(cause), http.StatusInternalServerError, MsgLookupFailed},
		{"download", NewDownloadError(cause), http.StatusInternalServerError, MsgDownloadFailed},
		{"merge", NewMergeUnavailableError(cause), http.StatusInternalServerError, MsgMergeUnavailable},
		{"rate limit", NewRateLimitError(), http.StatusTooManyRequests, MsgRateLimited},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.StatusCode != tc.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tc.err.StatusCode, tc.wantStatus)
			}
			if tc.err.Message != tc.wantMsg {
				t.Errorf("Message = %q, want %q", tc.err.Message, tc.wantMsg)
			}
			if strings.Contains(tc.err.Message, "Private video") {
				t.Error("client message leaks the cause")
			}
		})
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewLookupError(nil))
	if got := AsAppError(wrapped); got.Code != ErrorCodeLookupFailed {
		t.Errorf("Code = %s, want %s", got.Code, ErrorCodeLookupFailed)
	}

	plain := errors.New("disk full")
	got := AsAppError(plain)
	if got.Code != ErrorCodeInternalError {
		t.Errorf("Code = %s, want %s", got.Code, ErrorCodeInternalError)
	}
	if !errors.Is(got, plain) {
		t.Error("internal error should wrap the original cause")
	}
}
