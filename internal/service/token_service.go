package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/channel-account-api/internal/models"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

// TokenConfig holds the signing policy for both token kinds.
type TokenConfig struct {
	AccessSecret  string
	AccessExpiry  time.Duration
	RefreshSecret string
	RefreshExpiry time.Duration
	Issuer        string
}

// TokenService signs and verifies HS256 access and refresh tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(config TokenConfig) *TokenService {
	if config.AccessExpiry <= 0 {
		config.AccessExpiry = 15 * time.Minute
	}
	if config.RefreshExpiry <= 0 {
		config.RefreshExpiry = 240 * time.Hour
	}
	return &TokenService{config: config, now: time.Now}
}

// IssueAccessToken signs a short-lived access token for the account.
func (s *TokenService) IssueAccessToken(account *models.Account) (models.IssuedToken, error) {
	claims := &models.TokenClaims{
		Kind:             models.TokenKindAccess,
		Username:         account.Username,
		Email:            account.Email,
		RegisteredClaims: s.registered(account.ID, s.config.AccessExpiry, ""),
	}
	return s.sign(claims, s.config.AccessSecret)
}

// IssueRefreshToken signs a long-lived refresh token. Every token gets a
// fresh jti so two tokens issued within the same second still differ.
func (s *TokenService) IssueRefreshToken(accountID string) (models.IssuedToken, error) {
	claims := &models.TokenClaims{
		Kind:             models.TokenKindRefresh,
		RegisteredClaims: s.registered(accountID, s.config.RefreshExpiry, uuid.NewString()),
	}
	return s.sign(claims, s.config.RefreshSecret)
}

// IssuePair issues an access and a refresh token for the account.
func (s *TokenService) IssuePair(account *models.Account) (models.TokenPair, error) {
	access, err := s.IssueAccessToken(account)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(account.ID)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Verify parses a token of the given kind. It fails with ErrTokenExpired
// when only the expiry is wrong and ErrTokenInvalid otherwise.
func (s *TokenService) Verify(token string, kind models.TokenKind) (*models.TokenClaims, error) {
	secret := s.config.AccessSecret
	if kind == models.TokenKindRefresh {
		secret = s.config.RefreshSecret
	}

	parsed, err := jwt.ParseWithClaims(token, &models.TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrTokenExpired.Code, appErrors.ErrTokenExpired.Status, appErrors.ErrTokenExpired.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTokenInvalid.Code, appErrors.ErrTokenInvalid.Status, appErrors.ErrTokenInvalid.Message)
	}

	claims, ok := parsed.Claims.(*models.TokenClaims)
	if !ok || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "invalid token claims")
	}
	if claims.Kind != kind {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, fmt.Sprintf("expected %s token", kind))
	}
	if claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "token has no subject")
	}
	return claims, nil
}

func (s *TokenService) registered(subject string, ttl time.Duration, id string) jwt.RegisteredClaims {
	issuedAt := s.now().UTC()
	return jwt.RegisteredClaims{
		ID:        id,
		Issuer:    s.config.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
}

func (s *TokenService) sign(claims *models.TokenClaims, secret string) (models.IssuedToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("sign %s token: %w", claims.Kind, err)
	}
	return models.IssuedToken{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}
