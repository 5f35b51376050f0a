package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/channel-account-api/internal/models"
)

const uniqueViolation = "23505"

// DuplicateError reports a unique constraint hit on insert or update.
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

const accountColumns = `id, username, email, full_name, password_hash, refresh_token, avatar_url, avatar_public_id, cover_image_url, cover_image_public_id, created_at, updated_at`

type accountRow struct {
	ID                 string         `db:"id"`
	Username           string         `db:"username"`
	Email              string         `db:"email"`
	FullName           string         `db:"full_name"`
	PasswordHash       string         `db:"password_hash"`
	RefreshToken       sql.NullString `db:"refresh_token"`
	AvatarURL          string         `db:"avatar_url"`
	AvatarPublicID     string         `db:"avatar_public_id"`
	CoverImageURL      sql.NullString `db:"cover_image_url"`
	CoverImagePublicID sql.NullString `db:"cover_image_public_id"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r accountRow) toModel() *models.Account {
	account := &models.Account{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		Avatar:       models.ImageRef{URL: r.AvatarURL, PublicID: r.AvatarPublicID},
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.RefreshToken.Valid {
		token := r.RefreshToken.String
		account.RefreshToken = &token
	}
	if r.CoverImageURL.Valid && r.CoverImageURL.String != "" {
		account.CoverImage = &models.ImageRef{URL: r.CoverImageURL.String, PublicID: r.CoverImagePublicID.String}
	}
	return account
}

func fromModel(a *models.Account) accountRow {
	row := accountRow{
		ID:             a.ID,
		Username:       a.Username,
		Email:          a.Email,
		FullName:       a.FullName,
		PasswordHash:   a.PasswordHash,
		AvatarURL:      a.Avatar.URL,
		AvatarPublicID: a.Avatar.PublicID,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.RefreshToken != nil {
		row.RefreshToken = sql.NullString{String: *a.RefreshToken, Valid: true}
	}
	if a.CoverImage != nil {
		row.CoverImageURL = sql.NullString{String: a.CoverImage.URL, Valid: true}
		row.CoverImagePublicID = sql.NullString{String: a.CoverImage.PublicID, Valid: true}
	}
	return row
}

// AccountRepository provides database access for accounts and the
// channel/history views built on top of them.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	var row accountRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return row.toModel(), nil
}

// FindByUsernameOrEmail matches either identifier. When both are supplied the
// oldest matching account wins.
func (r *AccountRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2) ORDER BY created_at ASC LIMIT 1`
	var row accountRow
	if err := r.db.GetContext(ctx, &row, query, username, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by username or email: %w", err)
	}
	return row.toModel(), nil
}

// ExistsByUsernameOrEmail reports whether any account holds either value.
func (r *AccountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username, email); err != nil {
		return false, fmt.Errorf("check account uniqueness: %w", err)
	}
	return exists, nil
}

// EmailTakenByOther reports whether another account already uses email.
func (r *AccountRepository) EmailTakenByOther(ctx context.Context, id, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 AND id <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, id); err != nil {
		return false, fmt.Errorf("check email uniqueness: %w", err)
	}
	return exists, nil
}

// Create inserts a new account, assigning id and timestamps when unset.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	const query = `INSERT INTO accounts (` + accountColumns + `) VALUES (:id, :username, :email, :full_name, :password_hash, :refresh_token, :avatar_url, :avatar_public_id, :cover_image_url, :cover_image_public_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fromModel(account)); err != nil {
		return mapWriteError("create account", err)
	}
	return nil
}

// UpdateDetails changes the full name and email.
func (r *AccountRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error) {
	query := `UPDATE accounts SET full_name = $2, email = $3, updated_at = $4 WHERE id = $1 RETURNING ` + accountColumns
	return r.updateReturning(ctx, "update account details", query, id, fullName, email, time.Now().UTC())
}

// UpdateAvatar replaces the avatar reference.
func (r *AccountRepository) UpdateAvatar(ctx context.Context, id string, ref models.ImageRef) (*models.Account, error) {
	query := `UPDATE accounts SET avatar_url = $2, avatar_public_id = $3, updated_at = $4 WHERE id = $1 RETURNING ` + accountColumns
	return r.updateReturning(ctx, "update avatar", query, id, ref.URL, ref.PublicID, time.Now().UTC())
}

// UpdateCoverImage replaces the cover image reference.
func (r *AccountRepository) UpdateCoverImage(ctx context.Context, id string, ref models.ImageRef) (*models.Account, error) {
	query := `UPDATE accounts SET cover_image_url = $2, cover_image_public_id = $3, updated_at = $4 WHERE id = $1 RETURNING ` + accountColumns
	return r.updateReturning(ctx, "update cover image", query, id, ref.URL, ref.PublicID, time.Now().UTC())
}

func (r *AccountRepository) updateReturning(ctx context.Context, op, query string, args ...interface{}) (*models.Account, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, mapWriteError(op, err)
	}
	return row.toModel(), nil
}

// SetRefreshToken overwrites the stored refresh token. A nil token clears it.
// No other column is touched.
func (r *AccountRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	const query = `UPDATE accounts SET refresh_token = $2 WHERE id = $1`
	var value sql.NullString
	if token != nil {
		value = sql.NullString{String: *token, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, query, id, value); err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return nil
}

// UpdatePassword stores a new password hash and clears the refresh token.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE accounts SET password_hash = $2, refresh_token = NULL, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(res)
}

// Delete removes the account. Subscriptions and history cascade.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM accounts WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectAffected(res)
}

const channelQuery = `SELECT a.id, a.username, a.full_name, a.email, a.avatar_url, a.avatar_public_id, a.cover_image_url, a.cover_image_public_id,
	(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = a.id) AS subscriber_count,
	(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = a.id) AS subscribed_to_count,
	EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = a.id AND s.subscriber_id::text = $2) AS is_subscribed
	FROM accounts a WHERE a.username = $1 LIMIT 1`

type channelRow struct {
	ID                 string         `db:"id"`
	Username           string         `db:"username"`
	FullName           string         `db:"full_name"`
	Email              string         `db:"email"`
	AvatarURL          string         `db:"avatar_url"`
	AvatarPublicID     string         `db:"avatar_public_id"`
	CoverImageURL      sql.NullString `db:"cover_image_url"`
	CoverImagePublicID sql.NullString `db:"cover_image_public_id"`
	SubscriberCount    int64          `db:"subscriber_count"`
	SubscribedToCount  int64          `db:"subscribed_to_count"`
	IsSubscribed       bool           `db:"is_subscribed"`
}

// ChannelProfile aggregates the public view of username as seen by viewerID.
func (r *AccountRepository) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	var row channelRow
	if err := r.db.GetContext(ctx, &row, channelQuery, username, viewerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load channel profile: %w", err)
	}
	profile := &models.ChannelProfile{
		ID:                        row.ID,
		Username:                  row.Username,
		FullName:                  row.FullName,
		Email:                     row.Email,
		Avatar:                    models.ImageRef{URL: row.AvatarURL, PublicID: row.AvatarPublicID},
		SubscriberCount:           row.SubscriberCount,
		ChannelsSubscribedToCount: row.SubscribedToCount,
		IsSubscribed:              row.IsSubscribed,
	}
	if row.CoverImageURL.Valid && row.CoverImageURL.String != "" {
		profile.CoverImage = &models.ImageRef{URL: row.CoverImageURL.String, PublicID: row.CoverImagePublicID.String}
	}
	return profile, nil
}

const historyQuery = `SELECT v.id AS video_id, v.title, v.description, v.video_url, v.thumbnail_url, v.duration, v.views,
	o.id AS owner_id, o.username AS owner_username, o.full_name AS owner_full_name, o.avatar_url AS owner_avatar_url, o.avatar_public_id AS owner_avatar_public_id,
	h.watched_at
	FROM watch_history h
	JOIN videos v ON v.id = h.video_id
	JOIN accounts o ON o.id = v.owner_id
	WHERE h.account_id = $1
	ORDER BY h.watched_at DESC`

type historyRow struct {
	VideoID             string    `db:"video_id"`
	Title               string    `db:"title"`
	Description         string    `db:"description"`
	VideoURL            string    `db:"video_url"`
	ThumbnailURL        string    `db:"thumbnail_url"`
	Duration            float64   `db:"duration"`
	Views               int64     `db:"views"`
	OwnerID             string    `db:"owner_id"`
	OwnerUsername       string    `db:"owner_username"`
	OwnerFullName       string    `db:"owner_full_name"`
	OwnerAvatarURL      string    `db:"owner_avatar_url"`
	OwnerAvatarPublicID string    `db:"owner_avatar_public_id"`
	WatchedAt           time.Time `db:"watched_at"`
}

// WatchHistory lists the videos the account watched, most recent first.
func (r *AccountRepository) WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryEntry, error) {
	var rows []historyRow
	if err := r.db.SelectContext(ctx, &rows, historyQuery, accountID); err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}
	entries := make([]models.WatchHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.WatchHistoryEntry{
			VideoID:      row.VideoID,
			Title:        row.Title,
			Description:  row.Description,
			VideoURL:     row.VideoURL,
			ThumbnailURL: row.ThumbnailURL,
			Duration:     row.Duration,
			Views:        row.Views,
			Owner: models.VideoOwner{
				ID:       row.OwnerID,
				Username: row.OwnerUsername,
				FullName: row.OwnerFullName,
				Avatar:   models.ImageRef{URL: row.OwnerAvatarURL, PublicID: row.OwnerAvatarPublicID},
			},
			WatchedAt: row.WatchedAt,
		})
	}
	return entries, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		field := "account"
		switch pqErr.Constraint {
		case "accounts_email_key":
			field = "email"
		case "accounts_username_key":
			field = "username"
		}
		return &DuplicateError{Field: field, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
