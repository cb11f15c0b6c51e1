// Package adminauth guards the operator surface. Authentication proper lives
// at the gateway; this boundary only checks the shared admin token the
// gateway injects, so the service never sees end-user credentials.
package adminauth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const headerName = "X-Admin-Token"

// Middleware rejects requests whose admin token does not match. An empty
// configured token locks the admin surface entirely; there is no open mode.
func Middleware(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin surface disabled"})
			return
		}
		provided := strings.TrimSpace(c.GetHeader(headerName))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}
