package lookupd

import (
	"fmt"
	"time"

	"github.com/kbukum/lexstream/dictionary"
	"github.com/kbukum/lexstream/validation"
)

// Stage names reported in progress events.
const (
	StageSearch     = "search"
	StageSynthesize = "synthesize"
)

const (
	DefaultChunkSize  = 512
	DefaultSteps      = 4
	DefaultKeepAlive  = 15 * time.Second
	DefaultStageDelay = 150 * time.Millisecond
	DefaultPath       = "/api/v1/lookup/stream"
	defaultMaxWord    = 128
	maxSteps          = 100
)

// Config configures the lookup backend.
type Config struct {
	// Path is where the stream handler is mounted.
	Path string `yaml:"path" mapstructure:"path"`
	// ChunkSize is the largest result sent inline; bigger results are sent
	// as chunks of at most ChunkSize bytes.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=0"`
	// StageDelay is the pause between progress steps.
	StageDelay time.Duration `yaml:"stage_delay" mapstructure:"stage_delay" validate:"gte=0"`
	// Steps is the number of progress events per stage.
	Steps int `yaml:"steps" mapstructure:"steps" validate:"gte=0"`
	// Weights are announced in the config event.
	Weights map[string]float64 `yaml:"weights" mapstructure:"weights"`
	// KeepAlive is the comment interval on idle streams.
	KeepAlive time.Duration `yaml:"keep_alive" mapstructure:"keep_alive" validate:"gte=0"`
	// RetryHint is sent as the SSE retry field when non-zero.
	RetryHint time.Duration `yaml:"retry_hint" mapstructure:"retry_hint" validate:"gte=0"`
	// MaxWordLength bounds the word query parameter.
	MaxWordLength int `yaml:"max_word_length" mapstructure:"max_word_length" validate:"gte=0"`

	Dictionary dictionary.Config `yaml:"dictionary" mapstructure:"dictionary"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Steps == 0 {
		c.Steps = DefaultSteps
	}
	if c.StageDelay == 0 {
		c.StageDelay = DefaultStageDelay
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.MaxWordLength == 0 {
		c.MaxWordLength = defaultMaxWord
	}
	if len(c.Weights) == 0 {
		c.Weights = map[string]float64{StageSearch: 0.2, StageSynthesize: 0.8}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	var sum float64
	for stage, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("lookup.weights.%s must be non-negative (got: %v)", stage, w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("lookup.weights must not sum to zero")
	}
	v := validation.New().
		Custom(c.ChunkSize > 0, "chunk_size", "must be positive").
		Range("steps", c.Steps, 1, maxSteps).
		Custom(len(c.Path) > 0 && c.Path[0] == '/', "path", "must start with /")
	if err := v.Err(); err != nil {
		return err
	}
	return c.Dictionary.Validate()
}
