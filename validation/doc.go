// Package validation provides input validation for configuration sections and
// incoming lookup requests.
//
// It supports both struct tag validation (using go-playground/validator) and
// programmatic validation with error collection. Both produce an
// *errors.AppError with per-field details.
//
// # Struct Tag Validation
//
//	type StreamConfig struct {
//	    ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	err := validation.New().
//	    Key("word", word, 128).
//	    Err()
package validation
