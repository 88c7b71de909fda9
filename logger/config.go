package logger

import "github.com/kbukum/lexstream/validation"

// Config contains logging configuration.
type Config struct {
	// ServiceName tags console output with a short service prefix.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	Level       string `yaml:"level" mapstructure:"level"`
	Format      string `yaml:"format" mapstructure:"format"`
	Output      string `yaml:"output" mapstructure:"output"`
	NoColor     bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp   bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller      bool   `yaml:"caller" mapstructure:"caller"`
}

// ApplyDefaults applies default values to logging configuration.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	c.Timestamp = true
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	return validation.New().
		Required("logging.level", c.Level).
		OneOf("logging.level", c.Level, []string{"trace", "debug", "info", "warn", "error", "fatal"}).
		Required("logging.format", c.Format).
		OneOf("logging.format", c.Format, []string{"json", "console", "text", FormatPretty}).
		OneOf("logging.output", c.Output, []string{"stdout", "stderr"}).
		Err()
}
