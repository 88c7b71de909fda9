// Package auth holds the authentication configuration of the lookup
// backend. Token handling lives in auth/jwt.
//
//	auth:
//	  enabled: true
//	  required_scope: lookup
//	  jwt:
//	    secret: "dev-secret"
//	    issuer: lexstream
//	    access_token_ttl: 15m
package auth
