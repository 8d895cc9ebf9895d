package auth

import (
	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key under which Middleware stores the
// resolved session claims.
const ClaimsKey = "claims"

// Middleware annotates authenticated requests with their session claims so
// downstream handlers and rate limiters can key by user instead of IP.
// Requests without a valid session pass through unannotated; endpoints
// that require a session still enforce it themselves.
func (s *Sessions) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, claims, err := s.Resolve(c.Request); err == nil {
			c.Set(ClaimsKey, claims)
		}
		c.Next()
	}
}
