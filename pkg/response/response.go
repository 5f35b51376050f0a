package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

const debugKey = "response_debug"

// Envelope represents the common success contract.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

// ErrorEnvelope represents the common failure contract.
type ErrorEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Errors  []appErrors.FieldError `json:"errors"`
	Stack   []string               `json:"stack,omitempty"`
}

// Debug toggles exposure of the error cause chain for the request. It must
// be installed before any handler that writes errors.
func Debug(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(debugKey, enabled)
		c.Next()
	}
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}, message string) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, Envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// OK responds with HTTP 200.
func OK(c *gin.Context, data interface{}, message string) {
	JSON(c, http.StatusOK, data, message)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}, message string) {
	JSON(c, http.StatusCreated, data, message)
}

// Error sends an error response converting the error to the common structure.
// The error is also recorded on the gin context for the logging middleware.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	_ = c.Error(appErr)

	body := ErrorEnvelope{
		Success: false,
		Message: appErr.Message,
		Errors:  appErr.Details,
	}
	if body.Errors == nil {
		body.Errors = []appErrors.FieldError{}
	}
	if debugEnabled(c) {
		body.Stack = causeChain(appErr)
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.AbortWithStatusJSON(appErr.Status, body)
}

func debugEnabled(c *gin.Context) bool {
	v, ok := c.Get(debugKey)
	if !ok {
		return false
	}
	enabled, _ := v.(bool)
	return enabled
}

func causeChain(err error) []string {
	var chain []string
	for current := err; current != nil; current = errors.Unwrap(current) {
		chain = append(chain, current.Error())
	}
	return chain
}
