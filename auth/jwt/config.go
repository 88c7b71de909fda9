package jwt

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// SigningMethod defines supported JWT signing algorithms.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
	RS256 SigningMethod = "RS256"
	RS384 SigningMethod = "RS384"
	RS512 SigningMethod = "RS512"
	ES256 SigningMethod = "ES256"
	ES384 SigningMethod = "ES384"
	ES512 SigningMethod = "ES512"
)

// Config configures the JWT token service.
type Config struct {
	// Secret is the HMAC signing key (required for HS* methods).
	Secret string `yaml:"secret" mapstructure:"secret"`

	// PrivateKeyFile and PublicKeyFile are PEM files for RS*/ES* methods.
	// A verifying-only backend sets just PublicKeyFile.
	PrivateKeyFile string `yaml:"private_key_file" mapstructure:"private_key_file"`
	PublicKeyFile  string `yaml:"public_key_file" mapstructure:"public_key_file"`

	// PrivateKey and PublicKey may be set directly instead of via files.
	PrivateKey interface{} `yaml:"-" mapstructure:"-"`
	PublicKey  interface{} `yaml:"-" mapstructure:"-"`

	// Method is the signing algorithm (default: HS256).
	Method SigningMethod `yaml:"method" mapstructure:"method"`

	// Issuer is the "iss" claim (optional).
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	// Audience is the "aud" claim (optional).
	Audience []string `yaml:"audience" mapstructure:"audience"`

	// AccessTokenTTL is the lifetime of issued tokens (default: 15m).
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" mapstructure:"access_token_ttl"`

	// Leeway tolerates clock skew when checking exp/nbf (default: 0).
	Leeway time.Duration `yaml:"leeway" mapstructure:"leeway"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
}

// Validate checks required fields based on the signing method. For
// asymmetric methods it loads the PEM key files when keys are not set.
func (c *Config) Validate() error {
	switch c.Method {
	case HS256, HS384, HS512:
		if c.Secret == "" {
			return errors.New("secret is required for HMAC signing methods")
		}
	case RS256, RS384, RS512:
		if err := loadKeys(c, gojwt.ParseRSAPrivateKeyFromPEM, gojwt.ParseRSAPublicKeyFromPEM); err != nil {
			return err
		}
		if _, ok := c.PrivateKey.(*rsa.PrivateKey); c.PrivateKey != nil && !ok {
			return errors.New("private key must be *rsa.PrivateKey for RSA signing methods")
		}
	case ES256, ES384, ES512:
		if err := loadKeys(c, gojwt.ParseECPrivateKeyFromPEM, gojwt.ParseECPublicKeyFromPEM); err != nil {
			return err
		}
		if _, ok := c.PrivateKey.(*ecdsa.PrivateKey); c.PrivateKey != nil && !ok {
			return errors.New("private key must be *ecdsa.PrivateKey for ECDSA signing methods")
		}
	default:
		return errors.New("unsupported signing method: " + string(c.Method))
	}
	if c.AccessTokenTTL < 0 || c.Leeway < 0 {
		return errors.New("access_token_ttl and leeway must be non-negative")
	}
	return nil
}

func loadKeys[Priv, Pub any](c *Config, parsePriv func([]byte) (Priv, error), parsePub func([]byte) (Pub, error)) error {
	if c.PrivateKey == nil && c.PrivateKeyFile != "" {
		data, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("read private key: %w", err)
		}
		key, err := parsePriv(data)
		if err != nil {
			return fmt.Errorf("parse private key: %w", err)
		}
		c.PrivateKey = key
	}
	if c.PublicKey == nil && c.PublicKeyFile != "" {
		data, err := os.ReadFile(c.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("read public key: %w", err)
		}
		key, err := parsePub(data)
		if err != nil {
			return fmt.Errorf("parse public key: %w", err)
		}
		c.PublicKey = key
	}
	if c.PrivateKey == nil && c.PublicKey == nil {
		return fmt.Errorf("a private or public key is required for %s", c.Method)
	}
	return nil
}

// signingMethod returns the golang-jwt SigningMethod instance.
func (c *Config) signingMethod() gojwt.SigningMethod {
	if m := gojwt.GetSigningMethod(string(c.Method)); m != nil {
		return m
	}
	return gojwt.SigningMethodHS256
}

// signKey returns the key used for signing tokens.
func (c *Config) signKey() (interface{}, error) {
	switch c.Method {
	case HS256, HS384, HS512:
		return []byte(c.Secret), nil
	}
	if c.PrivateKey == nil {
		return nil, errors.New("no private key configured; service can only verify")
	}
	return c.PrivateKey, nil
}

// verifyKey returns the key used for verifying tokens.
func (c *Config) verifyKey() interface{} {
	switch c.Method {
	case HS256, HS384, HS512:
		return []byte(c.Secret)
	}
	if c.PublicKey != nil {
		return c.PublicKey
	}
	switch pk := c.PrivateKey.(type) {
	case *rsa.PrivateKey:
		return &pk.PublicKey
	case *ecdsa.PrivateKey:
		return &pk.PublicKey
	}
	return c.PrivateKey
}
