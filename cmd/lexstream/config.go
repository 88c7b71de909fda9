package main

import (
	"fmt"

	"github.com/kbukum/lexstream/auth"
	"github.com/kbukum/lexstream/config"
	"github.com/kbukum/lexstream/httpclient"
	"github.com/kbukum/lexstream/lookupd"
	"github.com/kbukum/lexstream/observability"
	"github.com/kbukum/lexstream/server"
	"github.com/kbukum/lexstream/server/middleware"
	"github.com/kbukum/lexstream/stream"
	"github.com/kbukum/lexstream/version"
)

const (
	serviceName = "lexstream"
	envPrefix   = "LEXSTREAM"
)

// Config is the lexstream configuration, loaded from config.yml, .env and
// LEXSTREAM_* variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// Client is the HTTP client the lookup command streams through.
	Client httpclient.Config `yaml:"client" mapstructure:"client"`
	// Token is a bearer token sent by the lookup command.
	Token  string        `yaml:"token" mapstructure:"token"`
	Stream stream.Config `yaml:"stream" mapstructure:"stream"`

	Server    server.Config               `yaml:"server" mapstructure:"server"`
	Auth      auth.Config                 `yaml:"auth" mapstructure:"auth"`
	RateLimit *middleware.RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Lookup    lookupd.Config              `yaml:"lookup" mapstructure:"lookup"`
	Telemetry observability.Config        `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Client.Name == "" {
		c.Client.Name = "lookup"
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8080"
	}
	c.Client.ApplyDefaults()
	c.Stream.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Lookup.ApplyDefaults()

	c.Telemetry.ServiceName = c.Name
	c.Telemetry.ServiceVersion = c.Version
	c.Telemetry.Environment = c.Environment
	c.Telemetry.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	sections := []struct {
		name string
		s    config.Section
	}{
		{"client", &c.Client},
		{"stream", &c.Stream},
		{"server", &c.Server},
		{"auth", &c.Auth},
		{"lookup", &c.Lookup},
		{"telemetry", &c.Telemetry},
	}
	for _, sec := range sections {
		if err := sec.s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
	}
	return nil
}

// loadConfig reads the configuration. An explicit path overrides the
// search of the standard locations.
func loadConfig(path string) (*Config, error) {
	var opts []config.LoaderOption
	opts = append(opts, config.WithEnvPrefix(envPrefix))
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &Config{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
