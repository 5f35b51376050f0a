package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/channel-account-api/internal/models"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
	"github.com/noah-isme/channel-account-api/pkg/response"
)

// ContextUserKey is the gin context key storing access token claims.
const ContextUserKey = "currentUser"

// Cookie names carrying the session tokens.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// TokenVerifier verifies signed tokens of a given kind.
type TokenVerifier interface {
	Verify(token string, kind models.TokenKind) (*models.TokenClaims, error)
}

// AuthGuard requires a valid access token, read from the accessToken cookie
// or an Authorization: Bearer header.
func AuthGuard(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := accessToken(c)
		if raw == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		claims, err := tokens.Verify(raw, models.TokenKindAccess)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "Invalid access token"))
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func accessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Claims returns the claims stored by AuthGuard.
func Claims(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.TokenClaims)
	return claims
}
