package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithUnavailable sends a 503 Service Unavailable response and aborts the request.
// Used for transient upstream failures the client may retry.
func AbortWithUnavailable(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, NewAPIError(message, details))
}
