package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/channel-account-api/internal/middleware"
	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/pkg/config"
)

// CookieSettings are the attributes shared by both session cookies. Clearing
// uses the same attributes so browsers match the cookie being removed.
type CookieSettings struct {
	Secure   bool
	Domain   string
	Path     string
	SameSite http.SameSite
}

// NewCookieSettings converts the cookie configuration.
func NewCookieSettings(cfg config.CookieConfig) CookieSettings {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return CookieSettings{
		Secure:   cfg.Secure,
		Domain:   cfg.Domain,
		Path:     path,
		SameSite: parseSameSite(cfg.SameSite),
	}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax", "":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

func (s CookieSettings) cookie(name, value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.Path,
		Domain:   s.Domain,
		MaxAge:   maxAge,
		Expires:  expires,
		Secure:   s.Secure,
		HttpOnly: true,
		SameSite: s.SameSite,
	}
}

func (s CookieSettings) setSession(c *gin.Context, pair models.TokenPair) {
	now := time.Now()
	for name, token := range map[string]models.IssuedToken{
		middleware.AccessTokenCookie:  pair.Access,
		middleware.RefreshTokenCookie: pair.Refresh,
	} {
		maxAge := int(token.ExpiresAt.Sub(now).Seconds())
		if maxAge < 1 {
			maxAge = 1
		}
		http.SetCookie(c.Writer, s.cookie(name, token.Value, maxAge, token.ExpiresAt))
	}
}

func (s CookieSettings) clearSession(c *gin.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		http.SetCookie(c.Writer, s.cookie(name, "", -1, time.Unix(0, 0)))
	}
}
