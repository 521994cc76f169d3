package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerMiddleware() {
	if s == nil || s.router == nil {
		return
	}
	s.router.Use(gin.Logger(), gin.Recovery(), corsMiddleware())
}

// corsPolicy is the parsed RICE_EVAL_CORS_ORIGINS value: either a wildcard
// or an explicit origin allow-list. The zero value allows nothing.
type corsPolicy struct {
	wildcard bool
	origins  map[string]struct{}
}

func corsPolicyFromEnv() corsPolicy {
	var p corsPolicy
	for _, part := range strings.Split(os.Getenv("RICE_EVAL_CORS_ORIGINS"), ",") {
		origin := strings.TrimSpace(part)
		switch {
		case origin == "":
		case origin == "*":
			return corsPolicy{wildcard: true}
		default:
			if p.origins == nil {
				p.origins = make(map[string]struct{})
			}
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) enabled() bool {
	return p.wildcard || len(p.origins) > 0
}

func (p corsPolicy) allows(origin string) bool {
	if p.wildcard {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func corsMiddleware() gin.HandlerFunc {
	policy := corsPolicyFromEnv()
	if !policy.enabled() {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if origin == "" {
			c.Next()
			return
		}

		if policy.allows(origin) {
			if policy.wildcard {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func apiKeyAuthMiddleware(expected string) gin.HandlerFunc {
	expected = strings.TrimSpace(expected)
	return func(c *gin.Context) {
		// Preflight requests carry no credentials.
		if expected == "" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if strings.TrimSpace(c.GetHeader("X-API-Key")) != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
