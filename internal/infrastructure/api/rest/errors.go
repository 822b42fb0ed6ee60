package rest

import (
	"github.com/gin-gonic/gin"
)

// APIError is the JSON envelope returned on every non-2xx ingress response.
type APIError struct {
	Message string `json:"error"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, APIError{Message: message})
}
