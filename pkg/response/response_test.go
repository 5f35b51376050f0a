package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

func TestJSONEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Created(c, gin.H{"id": "1"}, "User registered successfully")

	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusCreated), body["statusCode"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "User registered successfully", body["message"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorEnvelopeHidesStackByDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Clone(appErrors.ErrConflict, "User with email or username already exists"))

	require.Equal(t, http.StatusConflict, w.Code)
	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "User with email or username already exists", body.Message)
	assert.NotNil(t, body.Errors)
	assert.Empty(t, body.Stack)
	assert.Len(t, c.Errors, 1)
}

func TestErrorEnvelopeExposesChainInDebug(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Debug(true))
	r.GET("/boom", func(c *gin.Context) {
		Error(c, fmt.Errorf("db down"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Message)
	require.Len(t, body.Stack, 2)
	assert.Equal(t, "db down", body.Stack[1])
}

func TestErrorEnvelopeFieldErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Validation("Validation Error", []appErrors.FieldError{{Field: "email", Message: "must be a valid email address"}}))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "email", body.Errors[0].Field)
}
