package jwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

func newClaims() *Claims { return &Claims{} }

func hmacService(t *testing.T, cfg Config) *Service[*Claims] {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "dev-secret"
	}
	svc, err := NewService(&cfg, newClaims)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_RoundTrip(t *testing.T) {
	svc := hmacService(t, Config{Issuer: "lexstream", Audience: []string{"lookupd"}})

	token, err := svc.GenerateAccess(NewClaims("reader-1", "lookup", "admin"))
	if err != nil {
		t.Fatalf("GenerateAccess: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "reader-1" || claims.Issuer != "lexstream" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if !claims.HasScope("lookup") || claims.HasScope("write") {
		t.Errorf("unexpected scopes %q", claims.Scope)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) != 15*time.Minute {
		t.Errorf("expected default 15m TTL, got %v", claims.ExpiresAt)
	}
}

func TestService_Rejects(t *testing.T) {
	svc := hmacService(t, Config{Issuer: "lexstream"})
	good, _ := svc.GenerateAccess(NewClaims("reader-1"))

	other := hmacService(t, Config{Secret: "other-secret", Issuer: "lexstream"})
	foreign, _ := other.GenerateAccess(NewClaims("reader-1"))

	wrongIssuer := hmacService(t, Config{Issuer: "someone-else"})
	misissued, _ := wrongIssuer.GenerateAccess(NewClaims("reader-1"))

	noExpiry, _ := svc.Generate(NewClaims("reader-1"))

	expiredSvc := hmacService(t, Config{Issuer: "lexstream"})
	expiredSvc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredSvc.GenerateAccess(NewClaims("reader-1"))

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", good, false},
		{"wrong secret", foreign, true},
		{"wrong issuer", misissued, true},
		{"missing exp", noExpiry, true},
		{"expired", expired, true},
		{"garbage", "not.a.token", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Parse(tc.token); (err != nil) != tc.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestService_LeewayAcceptsSkew(t *testing.T) {
	issuer := hmacService(t, Config{AccessTokenTTL: time.Minute})
	issuer.now = func() time.Time { return time.Now().Add(-70 * time.Second) }
	token, _ := issuer.GenerateAccess(NewClaims("reader-1"))

	strict := hmacService(t, Config{})
	if _, err := strict.Parse(token); err == nil {
		t.Error("expected expired token without leeway")
	}
	lenient := hmacService(t, Config{Leeway: 30 * time.Second})
	if _, err := lenient.Parse(token); err != nil {
		t.Errorf("expected leeway to accept skewed token: %v", err)
	}
}

func TestService_MapValidator(t *testing.T) {
	svc := hmacService(t, Config{})
	token, _ := svc.GenerateAccess(NewClaims("reader-1", "lookup"))

	claims, err := svc.MapValidator()(token)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	if claims["sub"] != "reader-1" || claims["scope"] != "lookup" {
		t.Errorf("unexpected claims map %v", claims)
	}
	if _, err := svc.MapValidator()("bad"); err == nil {
		t.Error("expected error for bad token")
	}
}

func writePEM(t *testing.T, dir, name, typ string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestService_RSAKeyFiles(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	dir := t.TempDir()
	privPath := writePEM(t, dir, "priv.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))
	pubDER, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)
	pubPath := writePEM(t, dir, "pub.pem", "PUBLIC KEY", pubDER)

	signer, err := NewService(&Config{Method: RS256, PrivateKeyFile: privPath}, newClaims)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	token, err := signer.GenerateAccess(NewClaims("reader-1"))
	if err != nil {
		t.Fatalf("GenerateAccess: %v", err)
	}

	verifier, err := NewService(&Config{Method: RS256, PublicKeyFile: pubPath}, newClaims)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	if _, err := verifier.Parse(token); err != nil {
		t.Errorf("verify with public key: %v", err)
	}
	if _, err := verifier.GenerateAccess(NewClaims("x")); err == nil {
		t.Error("expected verify-only service to refuse signing")
	}
}

func TestService_ECDSAKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	svc, err := NewService(&Config{Method: ES256, PrivateKey: key}, newClaims)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	token, err := svc.GenerateAccess(NewClaims("reader-1"))
	if err != nil {
		t.Fatalf("GenerateAccess: %v", err)
	}
	parsed, _, err := gojwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil || parsed.Method.Alg() != "ES256" {
		t.Fatalf("unexpected token header: %v", err)
	}
	if _, err := svc.Parse(token); err != nil {
		t.Errorf("Parse: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"hmac ok", Config{Method: HS256, Secret: "s"}, false},
		{"hmac missing secret", Config{Method: HS512}, true},
		{"rsa without keys", Config{Method: RS256}, true},
		{"rsa missing file", Config{Method: RS256, PrivateKeyFile: "/nonexistent.pem"}, true},
		{"unsupported", Config{Method: "none", Secret: "s"}, true},
		{"negative leeway", Config{Method: HS256, Secret: "s", Leeway: -time.Second}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
