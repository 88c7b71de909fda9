// Package config loads lexstream configuration from a YAML file, an optional
// .env file and the process environment.
//
// Precedence, lowest first: config.yml, then environment variables (including
// those loaded from .env). Nested keys map from upper snake case, so
// STREAM_CONNECT_TIMEOUT sets stream.connect_timeout.
//
//	var cfg Config
//	if err := config.LoadConfig("lexstream", &cfg, config.WithConfigFile(path)); err != nil {
//	    return err
//	}
//	if err := config.Prepare(&cfg); err != nil {
//	    return err
//	}
package config
