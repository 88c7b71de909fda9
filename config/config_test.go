package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "lexstream"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
		if cfg.Logging.ServiceName != "lexstream" {
			t.Errorf("expected logging service name propagated, got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "lexstream", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid staging", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "invalid"}, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Prepare(&tc.cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Stream        struct {
		ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
		GapTimeout     time.Duration `mapstructure:"gap_timeout"`
	} `mapstructure:"stream"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return p
}

func TestLoadConfigWithYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", `
name: lexstream
environment: staging
stream:
  connect_timeout: 3s
  gap_timeout: 750ms
`)

	var cfg testConfig
	if err := LoadConfig("lexstream", &cfg, WithConfigFile(path), WithEnvPrefix("LEXTEST")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "lexstream" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.Stream.ConnectTimeout != 3*time.Second {
		t.Errorf("expected connect_timeout 3s, got %v", cfg.Stream.ConnectTimeout)
	}
	if cfg.Stream.GapTimeout != 750*time.Millisecond {
		t.Errorf("expected gap_timeout 750ms, got %v", cfg.Stream.GapTimeout)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", `
name: lexstream
stream:
  gap_timeout: 5s
`)
	t.Setenv("LEXTEST_STREAM_GAP_TIMEOUT", "2s")
	t.Setenv("STREAM_GAP_TIMEOUT", "9s")

	var cfg testConfig
	if err := LoadConfig("lexstream", &cfg, WithConfigFile(path), WithEnvPrefix("LEXTEST_")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Stream.GapTimeout != 2*time.Second {
		t.Errorf("expected prefixed env to win with 2s, got %v", cfg.Stream.GapTimeout)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvPrefix("LEXTEST"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "name: [unterminated")
	var cfg testConfig
	if err := LoadConfig("lexstream", &cfg, WithConfigFile(path)); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/lexstream/config.yml": true,
		"./.env":                     true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("lexstream", LoaderConfig{})
	if files.ConfigFile != "./cmd/lexstream/config.yml" {
		t.Errorf("expected cmd config file, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected root .env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("lexstream", LoaderConfig{ConfigFile: "/etc/lex.yml"})
	if explicit.ConfigFile != "/etc/lex.yml" {
		t.Errorf("expected explicit config path, got %q", explicit.ConfigFile)
	}
}

func TestLoadConfigLoadsEnvFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"./cmd/lexstream/.env.lexstream": true}}
	var cfg testConfig
	if err := LoadConfig("lexstream", &cfg, WithFileSystem(fs), WithEnvPrefix("LEXTEST")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(fs.loaded) != 1 || fs.loaded[0] != "./cmd/lexstream/.env.lexstream" {
		t.Errorf("expected service env file to be loaded, got %v", fs.loaded)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("STREAM_GAP_TIMEOUT")
	want := map[string]bool{
		"stream_gap_timeout": true,
		"stream.gap.timeout": true,
		"stream.gap_timeout": true,
		"stream_gap.timeout": true,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d variants, got %v", len(want), got)
	}
	for _, v := range got {
		if !want[v] {
			t.Errorf("unexpected variant %q", v)
		}
	}
	if v := envKeyVariants("NAME"); len(v) != 1 || v[0] != "name" {
		t.Errorf("expected single variant, got %v", v)
	}
}
