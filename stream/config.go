package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/lexstream/resilience"
	"github.com/kbukum/lexstream/validation"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultGapTimeout     = 5 * time.Second
	DefaultPath           = "/api/v1/lookup/stream"
	DefaultKeyParam       = "word"
	// DefaultMaxChunks bounds chunk indexes and announced chunk counts.
	DefaultMaxChunks = 4096

	defaultMaxKeyLength = 128
	defaultFrameBuffer  = 16
)

// Config configures the stream manager and its HTTP transport.
type Config struct {
	// Path is the lookup stream endpoint, relative to the client's base URL.
	Path string `yaml:"path" mapstructure:"path"`
	// KeyParam is the query parameter carrying the resource key.
	KeyParam string `yaml:"key_param" mapstructure:"key_param"`

	// ConnectTimeout fails a stream that produced no frame in time.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout" validate:"gte=0"`
	// GapTimeout fails a chunked result whose missing chunks never arrive.
	GapTimeout time.Duration `yaml:"gap_timeout" mapstructure:"gap_timeout" validate:"gte=0"`

	MaxKeyLength int `yaml:"max_key_length" mapstructure:"max_key_length" validate:"gte=0"`
	// MaxConcurrent caps simultaneously open transports. 0 means no cap.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=0"`
	// MaxWait is how long Open waits for a free slot. 0 rejects at once.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait" validate:"gte=0"`
	// MaxChunks is the largest chunk count a result may be split into.
	MaxChunks int `yaml:"max_chunks" mapstructure:"max_chunks" validate:"gte=0"`
	// FrameBuffer is the reader-to-dispatch channel capacity.
	FrameBuffer int `yaml:"frame_buffer" mapstructure:"frame_buffer" validate:"gte=0"`

	// Retry is the policy DoWithRetry applies to retryable failures.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.KeyParam == "" {
		c.KeyParam = DefaultKeyParam
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.GapTimeout == 0 {
		c.GapTimeout = DefaultGapTimeout
	}
	if c.MaxKeyLength == 0 {
		c.MaxKeyLength = defaultMaxKeyLength
	}
	if c.MaxChunks == 0 {
		c.MaxChunks = DefaultMaxChunks
	}
	if c.FrameBuffer == 0 {
		c.FrameBuffer = defaultFrameBuffer
	}

	def := resilience.DefaultRetryConfig()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = def.MaxAttempts
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = 250 * time.Millisecond
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = 5 * time.Second
	}
	if c.Retry.BackoffFactor == 0 {
		c.Retry.BackoffFactor = def.BackoffFactor
	}
	if c.Retry.Jitter == 0 {
		c.Retry.Jitter = def.Jitter
	}
	if c.Retry.RetryIf == nil {
		c.Retry.RetryIf = resilience.DefaultRetryIf
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	return validation.New().
		PositiveDuration("connect_timeout", c.ConnectTimeout).
		PositiveDuration("gap_timeout", c.GapTimeout).
		Custom(strings.HasPrefix(c.Path, "/") || strings.HasPrefix(c.Path, "http"), "path", "must be absolute or a URL").
		Required("key_param", c.KeyParam).
		Custom(c.Retry.MaxAttempts > 0, "retry.max_attempts", "must be positive").
		Fraction("retry.jitter", c.Retry.Jitter).
		Err()
}

// Describe summarizes the configuration in one line.
func (c *Config) Describe() string {
	limit := "unbounded"
	if c.MaxConcurrent > 0 {
		limit = fmt.Sprintf("%d", c.MaxConcurrent)
	}
	return fmt.Sprintf("connect=%s gap=%s max=%s chunks<=%d", c.ConnectTimeout, c.GapTimeout, limit, c.MaxChunks)
}
