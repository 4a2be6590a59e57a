package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithPreconditionFailed sends a 412 Precondition Failed response and aborts
// the request. Used when no signer capability is configured.
func AbortWithPreconditionFailed(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusPreconditionFailed, NewAPIError(message, details))
}
