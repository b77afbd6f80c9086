// Package apiauth provides the single shared-secret gin middleware that
// guards the control plane: every route except /info requires the
// exeio-api-key header to match, compared in constant time.
package apiauth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderName is the header carrying the shared API key.
const HeaderName = "exeio-api-key"

// Middleware returns a gin middleware enforcing key on every request
// except the exempt paths. An empty key disables auth entirely, for local
// development.
func Middleware(key string, exempt ...string) gin.HandlerFunc {
	exemptSet := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		exemptSet[p] = true
	}

	return func(c *gin.Context) {
		if key == "" || exemptSet[c.FullPath()] {
			c.Next()
			return
		}

		supplied := c.GetHeader(HeaderName)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": "missing or invalid " + HeaderName,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
