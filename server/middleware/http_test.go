package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/lexstream/logger"
	"github.com/kbukum/lexstream/server/middleware"
)

const lookupPath = "/api/v1/lookup/stream"

var readers = map[string]map[string]interface{}{
	"reader":  {"sub": "reader-1", "scope": "lookup"},
	"reader2": {"sub": "reader-2", "scope": "lookup profile"},
	"guest":   {"sub": "guest-1", "scope": "profile"},
}

// lookupStack mirrors the lookup backend: the server-wide chain around a Gin
// engine whose stream route sits behind auth, scope and rate limiting.
type lookupStack struct {
	handler http.Handler
	logs    *bytes.Buffer
}

func newLookupStack(t *testing.T) *lookupStack {
	t.Helper()
	logs := &bytes.Buffer{}
	log := logger.NewWithWriter(logs, &logger.Config{Level: "debug", Format: "json"}, "lookupd")

	r := gin.New()
	r.GET(lookupPath,
		middleware.Auth(middleware.AuthConfig{TokenValidator: func(token string) (map[string]interface{}, error) {
			if claims, ok := readers[token]; ok {
				return claims, nil
			}
			return nil, errors.New("unknown token")
		}}),
		middleware.RequireScope("lookup"),
		middleware.RateLimit(middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2, KeyFunc: middleware.SubjectBasedKey}),
		streamProgress,
	)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	chain := middleware.Chain(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.CORS(&middleware.CORSConfig{AllowedOrigins: []string{"https://reader.example"}, AllowedMethods: []string{"GET"}}),
		middleware.RequestLogger(log),
	)
	return &lookupStack{handler: chain(r), logs: logs}
}

// streamProgress writes two progress frames, flushing each.
func streamProgress(c *gin.Context) {
	word := c.Query("word")
	if word == "corrupt" {
		panic("dictionary entry for " + word + " is corrupt")
	}
	c.Header("Content-Type", "text/event-stream")
	for i, stage := range []string{"search", "synthesize"} {
		fmt.Fprintf(c.Writer, "event: progress\nid: %d\ndata: {\"stage\":%q,\"word\":%q}\n\n", i+1, stage, word)
		c.Writer.Flush()
	}
}

func (s *lookupStack) lookup(token, word string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, lookupPath+"?word="+word, http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

// entries returns the logged lines with the given message.
func (s *lookupStack) entries(t *testing.T, message string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(s.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if m["message"] == message {
			out = append(out, m)
		}
	}
	return out
}

func (s *lookupStack) lastRequest(t *testing.T) map[string]interface{} {
	t.Helper()
	got := s.entries(t, "Request completed")
	if len(got) == 0 {
		t.Fatalf("no request log in %s", s.logs.String())
	}
	return got[len(got)-1]
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) (string, map[string]interface{}) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected error envelope, got %q", rr.Body.String())
	}
	return body.Error.Code, body.Error.Details
}

func TestLookupStack_StreamsFrames(t *testing.T) {
	s := newLookupStack(t)
	rr := s.lookup("reader", "serendipity")

	if rr.Code != http.StatusOK || !rr.Flushed {
		t.Fatalf("expected a flushed 200 stream, got %d flushed=%v", rr.Code, rr.Flushed)
	}
	if n := strings.Count(rr.Body.String(), "event: progress"); n != 2 {
		t.Errorf("expected 2 progress frames, got %d in %q", n, rr.Body.String())
	}
	id := rr.Header().Get(middleware.HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected a generated UUID request id, got %q", id)
	}

	entry := s.lastRequest(t)
	if entry["level"] != "debug" || entry["status"] != float64(http.StatusOK) || entry["stream"] != true {
		t.Errorf("unexpected request log %v", entry)
	}
	if entry["flushes"] != float64(2) || entry["bytes"] != float64(rr.Body.Len()) {
		t.Errorf("expected 2 flushes and %d bytes, got %v", rr.Body.Len(), entry)
	}
	if entry[logger.FieldRequestID] != id || entry[logger.FieldDuration] == nil {
		t.Errorf("expected request id %q and duration in %v", id, entry)
	}
}

func TestLookupStack_RejectsBeforeStreaming(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"unknown token", "forged", http.StatusUnauthorized},
		{"missing lookup scope", "guest", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newLookupStack(t)
			rr := s.lookup(tc.token, "serendipity")

			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if code, _ := errorCode(t, rr); code != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %s", code)
			}
			entry := s.lastRequest(t)
			if entry["level"] != "warn" || entry["status"] != float64(tc.wantCode) || entry["stream"] != nil {
				t.Errorf("unexpected request log %v", entry)
			}
		})
	}
}

func TestLookupStack_RateLimitsPerSubject(t *testing.T) {
	s := newLookupStack(t)
	for i := 0; i < 2; i++ {
		if rr := s.lookup("reader", "word"); rr.Code != http.StatusOK {
			t.Fatalf("lookup %d: expected 200, got %d", i, rr.Code)
		}
	}

	rr := s.lookup("reader", "word")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the burst, got %d", rr.Code)
	}
	code, details := errorCode(t, rr)
	if code != "RATE_LIMITED" || details["retry_after"] == nil {
		t.Errorf("expected RATE_LIMITED with retry_after, got %s %v", code, details)
	}
	secs, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	if err != nil || secs < 1 {
		t.Errorf("expected a positive Retry-After, got %q", rr.Header().Get("Retry-After"))
	}
	if strings.Contains(rr.Body.String(), "event:") {
		t.Error("limited request must not start a stream")
	}

	if rr := s.lookup("reader2", "word"); rr.Code != http.StatusOK {
		t.Errorf("another subject has its own bucket, got %d", rr.Code)
	}
}

func TestLookupStack_RecoversPanickingLookup(t *testing.T) {
	s := newLookupStack(t)
	rr := s.lookup("reader", "corrupt")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if code, _ := errorCode(t, rr); code != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR envelope, got %s", code)
	}
	if strings.Contains(rr.Body.String(), "corrupt") {
		t.Error("panic value leaked into the response")
	}
	panics := s.entries(t, "Panic recovered")
	if len(panics) != 1 || panics[0]["path"] != lookupPath {
		t.Errorf("expected one panic log for the lookup path, got %v", panics)
	}
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, lookupPath, http.NoBody))
}

func TestRequestID(t *testing.T) {
	valid := uuid.NewString()
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"missing", "", false},
		{"client uuid", valid, true},
		{"not a uuid", "lookup-42", false},
		{"log injection", "x\" level=error msg=\"forged", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := middleware.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = r.Header.Get(middleware.HeaderRequestID)
			}))
			req := httptest.NewRequest(http.MethodGet, lookupPath, http.NoBody)
			if tc.incoming != "" {
				req.Header.Set(middleware.HeaderRequestID, tc.incoming)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			got := rr.Header().Get(middleware.HeaderRequestID)
			if got != seen {
				t.Errorf("response id %q differs from request id %q", got, seen)
			}
			if tc.keep && got != tc.incoming {
				t.Errorf("expected %q preserved, got %q", tc.incoming, got)
			}
			if !tc.keep {
				if got == tc.incoming {
					t.Errorf("expected %q replaced", tc.incoming)
				}
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("replacement %q is not a UUID", got)
				}
			}
		})
	}
}

func TestCORS_LookupPreflight(t *testing.T) {
	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"https://reader.example", "https://reader.example"},
		{"https://evil.example", ""},
	}
	for _, tc := range tests {
		s := newLookupStack(t)
		req := httptest.NewRequest(http.MethodOptions, lookupPath, http.NoBody)
		req.Header.Set("Origin", tc.origin)
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("%s: preflight should not reach auth, got %d", tc.origin, rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
			t.Errorf("%s: Allow-Origin = %q, want %q", tc.origin, got, tc.wantAllow)
		}
	}
}

func TestRequestLogger_QuietHealth(t *testing.T) {
	s := newLookupStack(t)
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := s.entries(t, "Request completed"); len(got) != 0 {
		t.Errorf("health checks should not be logged, got %v", got)
	}
}

func TestBodySizeLimit(t *testing.T) {
	handler := middleware.BodySizeLimit("1KB")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for size, want := range map[int]int{16: http.StatusOK, 2048: http.StatusRequestEntityTooLarge} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, lookupPath, strings.NewReader(strings.Repeat("x", size))))
		if rr.Code != want {
			t.Errorf("body of %d bytes: status %d, want %d", size, rr.Code, want)
		}
	}
}
