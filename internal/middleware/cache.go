package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl marks a response as cacheable for maxAgeSeconds. Loaded
// exams never change after parsing, so their GET routes can carry a
// short client-side cache without risking stale content.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	header := fmt.Sprintf("public, max-age=%d, immutable", maxAgeSeconds)
	return func(c *gin.Context) {
		c.Header("Cache-Control", header)
		c.Next()
	}
}
