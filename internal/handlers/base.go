// Package handlers exposes the aggregation layer as a JSON API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedflow/internal/sources"
)

// abortWithError maps the adapter error taxonomy to HTTP statuses. A
// cancelled request gets no body; the client is gone.
func abortWithError(c *gin.Context, err error) {
	switch {
	case sources.IsCancellation(err):
		c.Abort()
	case sources.IsUnsupported(err):
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})
	case sources.IsAuth(err):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case sources.IsTransport(err), sources.IsParse(err):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
