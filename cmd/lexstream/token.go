package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/lexstream/auth/jwt"
)

// tokenCmd mints a development token with the configured JWT settings.
func tokenCmd(args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("token", stderr)
	subject := fs.String("sub", "lexstream-cli", "Token subject")
	scope := fs.String("scope", "", "Space-separated scopes (default: auth.required_scope)")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default: auth.jwt.access_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyDefaults()
	tok, err := mintToken(cfg.Auth.JWT, *subject, scopesOr(*scope, cfg.Auth.RequiredScope), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, tok)
	return err
}

func mintToken(jwtCfg *jwt.Config, subject string, scopes []string, ttl time.Duration) (string, error) {
	if jwtCfg == nil {
		return "", errors.New("auth.jwt is not configured")
	}
	cfg := *jwtCfg
	if ttl > 0 {
		cfg.AccessTokenTTL = ttl
	}
	svc, err := jwt.NewService(&cfg, func() *jwt.Claims { return &jwt.Claims{} })
	if err != nil {
		return "", err
	}
	return svc.GenerateAccess(jwt.NewClaims(subject, scopes...))
}

func scopesOr(flagValue, fallback string) []string {
	if flagValue != "" {
		return strings.Fields(flagValue)
	}
	return strings.Fields(fallback)
}
