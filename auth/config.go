package auth

import (
	"fmt"

	"github.com/kbukum/lexstream/auth/jwt"
)

// Config holds authentication configuration for the lookup backend and for
// the CLI when it mints development tokens.
type Config struct {
	// Enabled controls whether the lookup route requires a bearer token.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// RequiredScope, when set, must be present in the token's scope claim.
	RequiredScope string `yaml:"required_scope" mapstructure:"required_scope"`

	// JWT configures the JWT token service (nil if not used).
	JWT *jwt.Config `yaml:"jwt" mapstructure:"jwt"`
}

// ApplyDefaults sets sensible defaults for non-nil sub-configurations.
func (c *Config) ApplyDefaults() {
	if c.JWT != nil {
		c.JWT.ApplyDefaults()
	}
}

// Validate checks the configuration. Enabled auth requires a JWT section.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWT == nil {
		return fmt.Errorf("auth.jwt is required when auth is enabled")
	}
	if err := c.JWT.Validate(); err != nil {
		return fmt.Errorf("auth.jwt: %w", err)
	}
	return nil
}

// Describe returns a human-readable one-liner for the startup summary.
func (c *Config) Describe() string {
	if !c.Enabled {
		return "disabled"
	}
	line := fmt.Sprintf("JWT(%s) TTL=%s", c.JWT.Method, c.JWT.AccessTokenTTL)
	if c.RequiredScope != "" {
		line += " scope=" + c.RequiredScope
	}
	return line
}
