package middleware

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONMiddleware rejects API writes whose body is not JSON.
func JSONMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if contentType := c.GetHeader("Content-Type"); contentType != "" {
				mediaType, _, err := mime.ParseMediaType(contentType)
				if err != nil || mediaType != "application/json" {
					c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
						"success": false,
						"error":   "Content-Type must be application/json",
					})
					return
				}
			}
		}
		c.Next()
	}
}
