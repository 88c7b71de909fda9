package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/lexstream/auth/jwt"
	"github.com/kbukum/lexstream/dictionary"
	"github.com/kbukum/lexstream/logger"
)

const testConfigYAML = `
name: lexstream
environment: staging
stream:
  connect_timeout: 2s
lookup:
  chunk_size: 128
  steps: 2
  stage_delay: 1ms
auth:
  enabled: true
  required_scope: lookup
  jwt:
    secret: test-secret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := loadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"fetch"}, 2},
		{"lookup without word", []string{"lookup"}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tc.args, &stdout, &stderr)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := exitCode(err); got != tc.code {
				t.Errorf("exitCode = %d, want %d (%v)", got, tc.code, err)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"version"}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "lexstream ") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestConfig_Load(t *testing.T) {
	t.Setenv("LEXSTREAM_STREAM_GAP_TIMEOUT", "9s")
	cfg := loadTestConfig(t)

	if cfg.Stream.ConnectTimeout != 2*time.Second {
		t.Errorf("connect_timeout = %s", cfg.Stream.ConnectTimeout)
	}
	if cfg.Stream.GapTimeout != 9*time.Second {
		t.Errorf("gap_timeout from env = %s", cfg.Stream.GapTimeout)
	}
	if cfg.Lookup.ChunkSize != 128 || cfg.Auth.JWT == nil || cfg.Auth.JWT.Secret != "test-secret" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Client.BaseURL != "http://localhost:8080" || cfg.Telemetry.ServiceName != "lexstream" {
		t.Errorf("defaults not applied: client=%q telemetry=%q", cfg.Client.BaseURL, cfg.Telemetry.ServiceName)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"auth without jwt", func(c *Config) { c.Auth.JWT = nil }},
		{"bad stream path", func(c *Config) { c.Stream.Path = "lookup" }},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }},
		{"bad environment", func(c *Config) { c.Environment = "moon" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := loadTestConfig(t)
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTokenCmd(t *testing.T) {
	path := writeConfig(t, testConfigYAML)
	var stdout bytes.Buffer
	if err := run([]string{"token", "-config", path, "-sub", "reader-1"}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("token: %v", err)
	}

	svc, err := jwt.NewService(&jwt.Config{Secret: "test-secret"}, func() *jwt.Claims { return &jwt.Claims{} })
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Parse(strings.TrimSpace(stdout.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "reader-1" || !claims.HasScope("lookup") {
		t.Errorf("claims = %+v", claims)
	}
}

// startBackend serves the lookup backend from cfg and points the client at it.
func startBackend(t *testing.T, cfg *Config) {
	t.Helper()
	srv, err := newLookupServer(cfg, logger.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("newLookupServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	cfg.Client.BaseURL = ts.URL
}

func TestLookup_EndToEnd(t *testing.T) {
	cfg := loadTestConfig(t)
	startBackend(t, cfg)

	mgr, err := newManager(cfg, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("json entry", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := runLookup(ctx, mgr, cfg, "petrichor", lookupFlags{asJSON: true}, &stdout, &stderr); err != nil {
			t.Fatalf("runLookup: %v", err)
		}
		var e dictionary.Entry
		if err := json.Unmarshal(stdout.Bytes(), &e); err != nil {
			t.Fatalf("stdout is not an entry: %v\n%s", err, stdout.String())
		}
		if e.Word != "petrichor" {
			t.Errorf("word = %q", e.Word)
		}
		if !strings.Contains(stderr.String(), "100%") {
			t.Errorf("progress output lacks completion: %q", stderr.String())
		}
	})

	t.Run("rendered entry with retry", func(t *testing.T) {
		var stdout bytes.Buffer
		if err := runLookup(ctx, mgr, cfg, "Serendipity", lookupFlags{retry: true, quiet: true}, &stdout, &bytes.Buffer{}); err != nil {
			t.Fatalf("runLookup: %v", err)
		}
		if !strings.Contains(stdout.String(), "serendipity") {
			t.Errorf("output = %q", stdout.String())
		}
	})

	t.Run("unknown word", func(t *testing.T) {
		err := runLookup(ctx, mgr, cfg, "zzyzx", lookupFlags{quiet: true}, &bytes.Buffer{}, &bytes.Buffer{})
		if exitCode(err) != 3 {
			t.Errorf("exitCode = %d for %v", exitCode(err), err)
		}
	})
}

func TestLookup_Unauthorized(t *testing.T) {
	cfg := loadTestConfig(t)
	startBackend(t, cfg)
	cfg.Token = "not-a-jwt"

	mgr, err := newManager(cfg, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = runLookup(ctx, mgr, cfg, "serendipity", lookupFlags{quiet: true}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an error for a rejected token")
	}
	if errors.Is(err, errUsage) || exitCode(err) != 1 {
		t.Errorf("exitCode = %d for %v", exitCode(err), err)
	}
}
