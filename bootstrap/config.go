package bootstrap

import "github.com/kbukum/lexstream/config"

// Config is the constraint on an App's configuration. Structs embedding
// config.ServiceConfig get GetServiceConfig by promotion and add their own
// ApplyDefaults and Validate.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
