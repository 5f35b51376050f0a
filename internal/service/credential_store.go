package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/channel-account-api/internal/models"
)

type credentialRepository interface {
	SetRefreshToken(ctx context.Context, id string, token *string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// CredentialStore owns the password hash and the stored refresh token of
// each account.
type CredentialStore struct {
	repo credentialRepository
	cost int
}

// NewCredentialStore constructs a CredentialStore. cost <= 0 uses bcrypt's default.
func NewCredentialStore(repo credentialRepository, cost int) *CredentialStore {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &CredentialStore{repo: repo, cost: cost}
}

// VerifyPassword reports whether candidate matches the stored hash.
func (s *CredentialStore) VerifyPassword(account *models.Account, candidate string) bool {
	if account == nil || account.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(candidate)) == nil
}

// HashPassword returns the bcrypt hash of plaintext.
func (s *CredentialStore) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SetPassword rehashes and stores a new password. The stored refresh token
// is cleared in the same write.
func (s *CredentialStore) SetPassword(ctx context.Context, accountID, plaintext string) error {
	hash, err := s.HashPassword(plaintext)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, accountID, hash)
}

// SetRefreshToken stores token as the only live refresh token. nil clears it.
func (s *CredentialStore) SetRefreshToken(ctx context.Context, accountID string, token *string) error {
	return s.repo.SetRefreshToken(ctx, accountID, token)
}
