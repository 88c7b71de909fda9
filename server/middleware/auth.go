package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/lexstream/errors"
)

// ClaimsKey is the Gin context key holding the validated claims map.
const ClaimsKey = "claims"

// AuthConfig configures the bearer authentication middleware.
type AuthConfig struct {
	// TokenValidator validates a token string and returns the claims.
	TokenValidator func(token string) (map[string]interface{}, error)
	// SkipPaths are URL path prefixes that bypass authentication.
	SkipPaths []string
}

// Auth returns a Gin middleware that validates Bearer tokens using the
// configured TokenValidator. Claims are stored under ClaimsKey and, per key,
// directly in the Gin context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		claims, err := cfg.TokenValidator(token)
		if err != nil {
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set(ClaimsKey, claims)
		for key, value := range claims {
			c.Set(key, value)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func abortUnauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Unauthorized(reason).ToResponse())
}

// RequireScope returns a Gin middleware that rejects requests whose claims,
// set by Auth, do not grant scope. The scope claim is space-separated.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Get("scope")
		granted, _ := raw.(string)
		for _, s := range strings.Fields(granted) {
			if s == scope {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, apperrors.New(apperrors.ErrCodeUnauthorized,
			"Token lacks the "+scope+" scope.", http.StatusForbidden).ToResponse())
	}
}
