package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(buf, &Config{Level: level, Format: "json"}, "test")
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("invalid json log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	l := New(&Config{Level: "invalid-level", Format: "json", Output: "stdout"}, "test")
	if l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestWithComponentWritesField(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("stream")
	l.Info("opened", map[string]interface{}{FieldStreamKey: "serendipity"})

	m := lastLine(t, &buf)
	if m[FieldComponent] != "stream" {
		t.Errorf("expected component 'stream', got %v", m[FieldComponent])
	}
	if m[FieldStreamKey] != "serendipity" {
		t.Errorf("expected stream_key 'serendipity', got %v", m[FieldStreamKey])
	}
	if m["message"] != "opened" {
		t.Errorf("expected message 'opened', got %v", m["message"])
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").
		WithFields(map[string]interface{}{FieldConnectionID: "c-1"}).
		WithError(errors.New("boom"))
	l.Warn("decode failed")

	m := lastLine(t, &buf)
	if m[FieldConnectionID] != "c-1" {
		t.Errorf("expected connection_id 'c-1', got %v", m[FieldConnectionID])
	}
	if m["error"] != "boom" {
		t.Errorf("expected error 'boom', got %v", m["error"])
	}
	if m["level"] != "warn" {
		t.Errorf("expected level warn, got %v", m["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}
	l.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected error output, got %q", buf.String())
	}
	// restore for other tests
	jsonLogger(&bytes.Buffer{}, "debug")
}

func TestWithContextAllKeys(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")
	ctx := context.Background()
	ctx = context.WithValue(ctx, contextKey(FieldTraceID), "trace-123")
	ctx = context.WithValue(ctx, contextKey(FieldSpanID), "span-456")
	ctx = ContextWithRequestID(ctx, "req-789")

	l.WithContext(ctx).Info("ctx")
	m := lastLine(t, &buf)
	for key, want := range map[string]string{
		FieldTraceID:   "trace-123",
		FieldSpanID:    "span-456",
		FieldRequestID: "req-789",
	} {
		if m[key] != want {
			t.Errorf("%s = %v, want %q", key, m[key], want)
		}
	}
}

func TestConsoleFormatServiceTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info", Format: "console", NoColor: true}, "lexstream")
	l.Info("hello")
	out := buf.String()
	if !strings.Contains(out, "[LEX][INF]") {
		t.Errorf("expected service and level tag, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected message, got %q", out)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	if l.WithComponent("x") == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestInit(t *testing.T) {
	cfg := Config{Level: "info", Format: "console", ServiceName: "init-test"}
	Init(&cfg)
	if cfg.Output != "stdout" {
		t.Errorf("expected defaults applied, got output %q", cfg.Output)
	}
	gl := GetGlobalLogger()
	if gl == nil {
		t.Fatal("expected global logger to be set after Init")
	}
	if gl.service != "init-test" {
		t.Errorf("expected service 'init-test', got %q", gl.service)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
}

func TestSetGlobalLogger(t *testing.T) {
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(jsonLogger(&buf, "debug"))
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")
	if got := strings.Count(buf.String(), "\n"); got != 4 {
		t.Errorf("expected 4 lines, got %d", got)
	}
	if WithComponent("handler") == nil || WithContext(context.Background()) == nil {
		t.Fatal("expected non-nil derived loggers")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"valid pretty", Config{Level: "warn", Format: FormatPretty}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
		{"missing level", Config{Format: "json"}, true},
		{"invalid output", Config{Level: "info", Format: "json", Output: "syslog"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		kvs  []interface{}
		want int
	}{
		{"empty", nil, 0},
		{"pairs", []interface{}{FieldStreamKey, "k", FieldSequence, 3}, 2},
		{"odd trailing key dropped", []interface{}{"a", 1, "b"}, 1},
		{"non-string key skipped", []interface{}{42, "x", "b", 2}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(Fields(tc.kvs...)); got != tc.want {
				t.Errorf("len(Fields) = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDurationFields(t *testing.T) {
	fields := DurationFields(250*time.Millisecond, Fields(FieldStreamKey, "serendipity"))
	if fields[FieldDuration] != int64(250) || fields[FieldStreamKey] != "serendipity" {
		t.Errorf("unexpected fields %v", fields)
	}
	if got := DurationFields(time.Second, nil); got[FieldDuration] != int64(1000) {
		t.Errorf("expected a fresh map with 1000ms, got %v", got)
	}
}
