package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"certwatch/internal/logger"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id, err := generateRequestID()
		if err != nil {
			t.Fatalf("generateRequestID() returned error on iteration %d: %v", i, err)
		}
		if !hexPattern.MatchString(id) {
			t.Fatalf("Request ID does not match hex format: %s", id)
		}
		if seen[id] {
			t.Errorf("Duplicate request ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	logger.Init("info", "text")

	tests := []struct {
		name     string
		incoming string
	}{
		{"generates id", ""},
		{"reuses caller id", "abc12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromContext bool
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				log := logger.GetFromContext(r.Context(), nil)
				fromContext = log != nil && log != logger.Get()
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/health", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()

			RequestIDMiddleware(handler).ServeHTTP(w, req)

			id := w.Header().Get("X-Request-ID")
			if tt.incoming != "" && id != tt.incoming {
				t.Errorf("Expected X-Request-ID %s, got %s", tt.incoming, id)
			}
			if tt.incoming == "" && !hexPattern.MatchString(id) {
				t.Errorf("Expected generated hex request ID, got %q", id)
			}
			if !fromContext {
				t.Error("Expected a request-scoped logger in context")
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	if _, err := logger.InitWriter(&buf, "info", "json"); err != nil {
		t.Fatalf("InitWriter() returned error: %v", err)
	}
	t.Cleanup(func() { logger.Init("info", "text") })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest("GET", "/example.com", nil)
	req.Header.Set("X-Request-ID", "feedc0de")
	w := httptest.NewRecorder()

	RequestIDMiddleware(LoggingMiddleware(handler)).ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}

	out := buf.String()
	for _, want := range []string{`"msg":"http request"`, `"status":418`, `"path":"/example.com"`, `"request_id":"feedc0de"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log line to contain %s, got %s", want, out)
		}
	}
}
