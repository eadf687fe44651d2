package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kafkasder-git/panel/internal/obs"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
}

func TestRequestIDGeneratedAndHonored(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if rec.Header().Get(requestIDHeader) != seen {
		t.Fatal("request id header must match the context value")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "client-supplied-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "client-supplied-id" {
		t.Fatalf("incoming request id not honored: %q", seen)
	}
}

func TestLoggingJSONEmitsStructuredEntry(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	h := RequestID(LoggingJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/members", nil)
	req.Header.Set("User-Agent", "panel-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not valid JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "request_complete" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["method"] != http.MethodPost || entry["path"] != "/v1/members" {
		t.Fatalf("unexpected method/path: %v %v", entry["method"], entry["path"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Fatalf("unexpected status: %v", entry["status"])
	}
	if entry["request_id"] == "" {
		t.Fatal("expected request_id in log entry")
	}
	if entry["user_agent"] != "panel-test" {
		t.Fatalf("unexpected user_agent: %v", entry["user_agent"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Fatal("expected duration_ms in log entry")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/v1/members", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected Allow-Credentials for a local origin")
	}
}

func TestCORSRejectsForeignOrigin(t *testing.T) {
	h := CORS(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/members", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("foreign origin must not be allowed")
	}
}

func TestRateLimitReturns429(t *testing.T) {
	h := RequestID(RateLimit(okHandler(), 3, 1))

	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/members", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	var body map[string]any
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "rate limit exceeded" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
	if rid, _ := body["request_id"].(string); rid == "" {
		t.Fatal("expected request_id in 429 body")
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	h := RateLimit(okHandler(), 1, 1)

	first := httptest.NewRequest(http.MethodGet, "/v1/members", nil)
	first.RemoteAddr = "203.0.113.1:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client status = %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/v1/members", nil)
	second.RemoteAddr = "203.0.113.2:1000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client status = %d, want 200", rec.Code)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := MaxBodyBytes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]any
		if err := decodeJSON(w, r, &v); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, v)
	}), 16)

	req := httptest.NewRequest(http.MethodPost, "/v1/members",
		bytes.NewReader(bytes.Repeat([]byte("a"), 64)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
