package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/channel-account-api/internal/dto"
	"github.com/noah-isme/channel-account-api/internal/models"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.AccountEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.AccountEvent) {}

// Session is the result of a successful login or refresh.
type Session struct {
	Account *models.Account
	Tokens  models.TokenPair
}

// SessionDeps groups the collaborators of SessionService.
type SessionDeps struct {
	Repo        sessionRepository
	Tokens      *TokenService
	Credentials *CredentialStore
	Janitor     AssetJanitor
	Cache       *CacheService
	Events      eventPublisher
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// SessionService implements login, logout, refresh-token rotation and
// account deletion.
type SessionService struct {
	repo    sessionRepository
	tokens  *TokenService
	creds   *CredentialStore
	janitor AssetJanitor
	cache   *CacheService
	events  eventPublisher
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(deps SessionDeps) *SessionService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}
	return &SessionService{
		repo:    deps.Repo,
		tokens:  deps.Tokens,
		creds:   deps.Credentials,
		janitor: deps.Janitor,
		cache:   deps.Cache,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Login authenticates by username or email and starts a new session. The
// stored refresh token is overwritten, ending any previous session.
func (s *SessionService) Login(ctx context.Context, req dto.LoginRequest) (session *Session, err error) {
	defer func() { s.metrics.RecordAuthEvent("login", err) }()

	username := normalize(req.Username)
	email := normalize(req.Email)
	if username == "" && email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username or email is required")
	}

	account, err := s.repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User does not exist")
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}

	if !s.creds.VerifyPassword(account, req.Password) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid user credentials")
	}

	session, err = s.startSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, models.AccountEvent{Type: models.EventAccountLogin, AccountID: account.ID, Username: account.Username})
	return session, nil
}

// Logout clears the stored refresh token. Calling it repeatedly is safe.
func (s *SessionService) Logout(ctx context.Context, accountID string) (err error) {
	defer func() { s.metrics.RecordAuthEvent("logout", err) }()

	if err := s.creds.SetRefreshToken(ctx, accountID, nil); err != nil {
		return appErrors.Internal(err, "failed to clear refresh token")
	}
	s.events.Publish(ctx, models.AccountEvent{Type: models.EventAccountLogout, AccountID: accountID})
	return nil
}

// RefreshAccessToken rotates the token pair. Only the refresh token that is
// currently stored for the account is accepted; every failure is reported
// as unauthorized.
func (s *SessionService) RefreshAccessToken(ctx context.Context, presented string) (session *Session, err error) {
	defer func() { s.metrics.RecordAuthEvent("refresh", err) }()

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized request")
	}

	claims, err := s.tokens.Verify(presented, models.TokenKindRefresh)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "Invalid refresh token")
	}

	account, err := s.repo.FindByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid refresh token")
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}

	if account.RefreshToken == nil || *account.RefreshToken != presented {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Refresh token is expired or used")
	}

	return s.startSession(ctx, account)
}

// Delete removes the account after re-verifying its password, then hands
// its stored images to the janitor.
func (s *SessionService) Delete(ctx context.Context, accountID string, req dto.DeleteAccountRequest) (err error) {
	defer func() { s.metrics.RecordAuthEvent("delete", err) }()

	if req.Password == "" {
		return appErrors.Validation("Password is required to delete account", []appErrors.FieldError{
			{Field: "password", Message: "password is required"},
		})
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Internal(err, "failed to load account")
	}

	if !s.creds.VerifyPassword(account, req.Password) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "Incorrect password")
	}

	if err := s.repo.Delete(ctx, account.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Internal(err, "failed to delete account")
	}

	if s.janitor != nil {
		s.janitor.Discard(ctx, account.AssetIDs()...)
	}
	s.cache.Invalidate(ctx, channelCachePattern(account.Username))
	s.events.Publish(ctx, models.AccountEvent{Type: models.EventAccountDeleted, AccountID: account.ID, Username: account.Username})
	return nil
}

// startSession issues a pair and stores the refresh token. This is the only
// credential write of a login or refresh.
func (s *SessionService) startSession(ctx context.Context, account *models.Account) (*Session, error) {
	pair, err := s.tokens.IssuePair(account)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to issue tokens")
	}
	if err := s.creds.SetRefreshToken(ctx, account.ID, &pair.Refresh.Value); err != nil {
		return nil, appErrors.Internal(err, "failed to persist refresh token")
	}
	refresh := pair.Refresh.Value
	account.RefreshToken = &refresh
	return &Session{Account: account, Tokens: pair}, nil
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
