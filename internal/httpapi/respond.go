package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the uniform JSON envelope: code "ok" on success, a stable
// machine-readable error code otherwise.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	CodeOK               = "ok"
	CodeInvalidParam     = "invalid_param"
	CodePermissionDenied = "permission_denied"
	CodeAgentNotFound    = "agent_not_found"
	CodeTokenInvalid     = "token_invalid"
	CodeInternalError    = "internal_error"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Code: code, Message: message})
}
