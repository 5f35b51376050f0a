package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/channel-account-api/internal/dto"
	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/internal/repository"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
	"github.com/noah-isme/channel-account-api/pkg/validation"
)

type accountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	EmailTakenByOther(ctx context.Context, id, email string) (bool, error)
	Create(ctx context.Context, account *models.Account) error
	UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error)
	UpdateAvatar(ctx context.Context, id string, ref models.ImageRef) (*models.Account, error)
	UpdateCoverImage(ctx context.Context, id string, ref models.ImageRef) (*models.Account, error)
	ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error)
	WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryEntry, error)
}

const emailTakenMessage = "Email already exists. Please try another one."

// AccountDeps groups the collaborators of AccountService.
type AccountDeps struct {
	Repo            accountRepository
	Credentials     *CredentialStore
	Media           MediaStore
	Janitor         AssetJanitor
	Cache           *CacheService
	Events          eventPublisher
	Metrics         *MetricsService
	Validator       *validator.Validate
	Logger          *zap.Logger
	MediaTimeout    time.Duration
	ChannelCacheTTL time.Duration
}

// AccountService implements registration and the profile operations.
type AccountService struct {
	repo         accountRepository
	creds        *CredentialStore
	media        MediaStore
	janitor      AssetJanitor
	cache        *CacheService
	events       eventPublisher
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	mediaTimeout time.Duration
	channelTTL   time.Duration
}

// NewAccountService constructs an AccountService.
func NewAccountService(deps AccountDeps) *AccountService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}
	if deps.MediaTimeout <= 0 {
		deps.MediaTimeout = 30 * time.Second
	}
	return &AccountService{
		repo:         deps.Repo,
		creds:        deps.Credentials,
		media:        deps.Media,
		janitor:      deps.Janitor,
		cache:        deps.Cache,
		events:       deps.Events,
		metrics:      deps.Metrics,
		validator:    deps.Validator,
		logger:       deps.Logger,
		mediaTimeout: deps.MediaTimeout,
		channelTTL:   deps.ChannelCacheTTL,
	}
}

// Register validates the payload, uploads the images and creates the
// account. Uploads are compensated in reverse order when a later step fails.
func (s *AccountService) Register(ctx context.Context, req dto.RegisterRequest, avatar, cover *models.MediaFile) (account *models.Account, err error) {
	defer func() { s.metrics.RecordAuthEvent("register", err) }()

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = normalize(req.Email)
	req.Username = normalize(req.Username)
	if err := validation.Struct(s.validator, req, "Validation Error"); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check account uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User with email or username already exists")
	}

	if avatar == nil {
		return nil, appErrors.Validation("Avatar file is required", []appErrors.FieldError{
			{Field: "avatar", Message: "avatar is required"},
		})
	}

	account = &models.Account{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	}

	flow := newSaga(s.logger).add(sagaStep{
		name: "upload_avatar",
		run: func(ctx context.Context) error {
			ref, err := s.upload(ctx, *avatar)
			account.Avatar = ref
			return err
		},
		compensate: func(ctx context.Context) error {
			return s.remove(ctx, account.Avatar.PublicID)
		},
	})
	if cover != nil {
		flow.add(sagaStep{
			name: "upload_cover_image",
			run: func(ctx context.Context) error {
				ref, err := s.upload(ctx, *cover)
				if err == nil {
					account.CoverImage = &ref
				}
				return err
			},
			compensate: func(ctx context.Context) error {
				return s.remove(ctx, account.CoverImage.PublicID)
			},
		})
	}
	flow.add(sagaStep{
		name: "create_account",
		run: func(ctx context.Context) error {
			hash, err := s.creds.HashPassword(req.Password)
			if err != nil {
				return appErrors.Internal(err, "failed to hash password")
			}
			account.PasswordHash = hash
			if err := s.repo.Create(ctx, account); err != nil {
				var dup *repository.DuplicateError
				if errors.As(err, &dup) {
					return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "User with email or username already exists")
				}
				return appErrors.Internal(err, "Failed to create user in database")
			}
			return nil
		},
	})

	if err := flow.execute(ctx); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, models.AccountEvent{Type: models.EventAccountRegistered, AccountID: account.ID, Username: account.Username})
	return account, nil
}

// CurrentAccount loads the authenticated account.
func (s *AccountService) CurrentAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}
	return account, nil
}

// UpdateDetails changes full name and email.
func (s *AccountService) UpdateDetails(ctx context.Context, id string, req dto.UpdateAccountRequest) (*models.Account, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = normalize(req.Email)
	if err := validation.Struct(s.validator, req, "All fields are required"); err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailTakenByOther(ctx, id, req.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check email uniqueness")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, emailTakenMessage)
	}

	account, err := s.repo.UpdateDetails(ctx, id, req.FullName, req.Email)
	if err != nil {
		return nil, s.mapUpdateError(err, "Something went wrong while updating account")
	}
	s.cache.Invalidate(ctx, channelCachePattern(account.Username))
	return account, nil
}

// UpdateAvatar replaces the avatar and discards the previous one.
func (s *AccountService) UpdateAvatar(ctx context.Context, id string, file *models.MediaFile) (*models.Account, error) {
	if file == nil {
		return nil, appErrors.Validation("Avatar file is missing", []appErrors.FieldError{
			{Field: "avatar", Message: "avatar is required"},
		})
	}
	return s.replaceImage(ctx, id, *file, func(a *models.Account) string {
		return a.Avatar.PublicID
	}, s.repo.UpdateAvatar)
}

// UpdateCoverImage replaces the cover image and discards the previous one.
func (s *AccountService) UpdateCoverImage(ctx context.Context, id string, file *models.MediaFile) (*models.Account, error) {
	if file == nil {
		return nil, appErrors.Validation("Cover image file is missing", []appErrors.FieldError{
			{Field: "coverImage", Message: "coverImage is required"},
		})
	}
	return s.replaceImage(ctx, id, *file, func(a *models.Account) string {
		if a.CoverImage == nil {
			return ""
		}
		return a.CoverImage.PublicID
	}, s.repo.UpdateCoverImage)
}

func (s *AccountService) replaceImage(
	ctx context.Context,
	id string,
	file models.MediaFile,
	previous func(*models.Account) string,
	persist func(ctx context.Context, id string, ref models.ImageRef) (*models.Account, error),
) (*models.Account, error) {
	current, err := s.CurrentAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	oldID := previous(current)

	ref, err := s.upload(ctx, file)
	if err != nil {
		return nil, err
	}

	updated, err := persist(ctx, id, ref)
	if err != nil {
		if rmErr := s.remove(context.WithoutCancel(ctx), ref.PublicID); rmErr != nil {
			s.logger.Error("failed to remove unreferenced upload", zap.String("public_id", ref.PublicID), zap.Error(rmErr))
		}
		return nil, s.mapUpdateError(err, fmt.Sprintf("failed to update %s", file.Field))
	}

	if oldID != "" && oldID != ref.PublicID && s.janitor != nil {
		s.janitor.Discard(ctx, oldID)
	}
	s.cache.Invalidate(ctx, channelCachePattern(updated.Username))
	return updated, nil
}

// ChangePassword verifies the old password and stores the new one. The
// stored refresh token is cleared, so other sessions have to log in again.
func (s *AccountService) ChangePassword(ctx context.Context, id string, req dto.ChangePasswordRequest) error {
	if err := validation.Struct(s.validator, req, "invalid change password payload"); err != nil {
		return err
	}

	account, err := s.CurrentAccount(ctx, id)
	if err != nil {
		return err
	}
	if !s.creds.VerifyPassword(account, req.OldPassword) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "Invalid old password")
	}

	if err := s.creds.SetPassword(ctx, id, req.NewPassword); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Internal(err, "failed to update password")
	}

	s.events.Publish(ctx, models.AccountEvent{Type: models.EventPasswordChanged, AccountID: id, Username: account.Username})
	return nil
}

// ChannelProfile returns the public channel view of username as seen by viewerID.
func (s *AccountService) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	username = normalize(username)
	if username == "" {
		return nil, appErrors.Validation("username is missing", []appErrors.FieldError{
			{Field: "username", Message: "username is required"},
		})
	}

	key := channelCacheKey(username, viewerID)
	var cached models.ChannelProfile
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	profile, err := s.repo.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "channel does not exist")
		}
		return nil, appErrors.Internal(err, "failed to load channel")
	}

	s.cache.Set(ctx, key, profile, s.channelTTL)
	return profile, nil
}

// WatchHistory lists the videos the account watched, most recent first.
func (s *AccountService) WatchHistory(ctx context.Context, id string) ([]models.WatchHistoryEntry, error) {
	entries, err := s.repo.WatchHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load watch history")
	}
	return entries, nil
}

func (s *AccountService) upload(ctx context.Context, file models.MediaFile) (models.ImageRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.mediaTimeout)
	defer cancel()

	start := time.Now()
	ref, err := s.media.Upload(ctx, file)
	s.metrics.ObserveMedia("upload", err, time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.ImageRef{}, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, fmt.Sprintf("%s upload timed out", fieldName(file)))
		}
		return models.ImageRef{}, appErrors.Internal(err, fmt.Sprintf("Error while uploading %s", fieldName(file)))
	}
	return ref, nil
}

func (s *AccountService) remove(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.mediaTimeout)
	defer cancel()

	start := time.Now()
	err := s.media.Remove(ctx, publicID)
	s.metrics.ObserveMedia("remove", err, time.Since(start))
	return err
}

func (s *AccountService) mapUpdateError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		if dup.Field == "email" {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, emailTakenMessage)
		}
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "account already exists")
	}
	return appErrors.Internal(err, message)
}

func fieldName(file models.MediaFile) string {
	if file.Field == "" {
		return "image"
	}
	return file.Field
}

func channelCacheKey(username, viewerID string) string {
	return username + ":" + viewerID
}

func channelCachePattern(username string) string {
	return username + ":*"
}
