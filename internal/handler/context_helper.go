package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/channel-account-api/internal/middleware"
	"github.com/noah-isme/channel-account-api/internal/models"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
	"github.com/noah-isme/channel-account-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.TokenClaims {
	return middleware.Claims(c)
}

// currentAccountID returns the authenticated account id or writes a 401.
func currentAccountID(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.AccountID() == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.AccountID(), true
}

// bindOptionalJSON decodes a JSON body when one is present.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
