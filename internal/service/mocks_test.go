package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/channel-account-api/internal/models"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

// mockAccountRepo is an in-memory account table.
type mockAccountRepo struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	channels  map[string]*models.ChannelProfile
	history   map[string][]models.WatchHistoryEntry
	createErr error
	updateErr error

	createCalls       int
	tokenWrites       int
	channelQueryCalls int
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{
		accounts: map[string]*models.Account{},
		channels: map[string]*models.ChannelProfile{},
		history:  map[string][]models.WatchHistoryEntry{},
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.RefreshToken != nil {
		token := *a.RefreshToken
		c.RefreshToken = &token
	}
	if a.CoverImage != nil {
		cover := *a.CoverImage
		c.CoverImage = &cover
	}
	return &c
}

func (m *mockAccountRepo) FindByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccountRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*models.Account
	for _, a := range m.accounts {
		if (username != "" && a.Username == username) || (email != "" && a.Email == email) {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return cloneAccount(matches[0]), nil
}

func (m *mockAccountRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == username || a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountRepo) EmailTakenByOther(_ context.Context, id, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email && a.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountRepo) Create(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	m.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (m *mockAccountRepo) update(id string, apply func(*models.Account)) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	apply(a)
	a.UpdatedAt = time.Now().UTC()
	return cloneAccount(a), nil
}

func (m *mockAccountRepo) UpdateDetails(_ context.Context, id, fullName, email string) (*models.Account, error) {
	return m.update(id, func(a *models.Account) {
		a.FullName = fullName
		a.Email = email
	})
}

func (m *mockAccountRepo) UpdateAvatar(_ context.Context, id string, ref models.ImageRef) (*models.Account, error) {
	return m.update(id, func(a *models.Account) { a.Avatar = ref })
}

func (m *mockAccountRepo) UpdateCoverImage(_ context.Context, id string, ref models.ImageRef) (*models.Account, error) {
	return m.update(id, func(a *models.Account) { a.CoverImage = &ref })
}

func (m *mockAccountRepo) SetRefreshToken(_ context.Context, id string, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenWrites++
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	if token == nil {
		a.RefreshToken = nil
		return nil
	}
	value := *token
	a.RefreshToken = &value
	return nil
}

func (m *mockAccountRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.PasswordHash = passwordHash
	a.RefreshToken = nil
	return nil
}

func (m *mockAccountRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.accounts, id)
	return nil
}

func (m *mockAccountRepo) ChannelProfile(_ context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelQueryCalls++
	if p, ok := m.channels[username]; ok {
		c := *p
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccountRepo) WatchHistory(_ context.Context, accountID string) ([]models.WatchHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[accountID], nil
}

func (m *mockAccountRepo) stored(id string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		return cloneAccount(a)
	}
	return nil
}

// seed inserts an account with the given plaintext password.
func (m *mockAccountRepo) seed(t *testing.T, username, password string) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	account := &models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: string(hash),
		Avatar:       models.ImageRef{URL: "http://media/" + username + "-avatar.png", PublicID: username + "-avatar.png"},
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	m.mu.Lock()
	m.accounts[account.ID] = cloneAccount(account)
	m.mu.Unlock()
	return account
}

// mockMedia records uploads and removals.
type mockMedia struct {
	mu        sync.Mutex
	uploads   []string
	removed   []string
	uploadErr error
	removeErr error
	block     bool
	seq       int
}

func (m *mockMedia) Upload(ctx context.Context, file models.MediaFile) (models.ImageRef, error) {
	if m.block {
		<-ctx.Done()
		return models.ImageRef{}, ctx.Err()
	}
	if file.Content != nil {
		_, _ = io.Copy(io.Discard, file.Content)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, file.Field)
	if m.uploadErr != nil {
		return models.ImageRef{}, m.uploadErr
	}
	m.seq++
	id := fmt.Sprintf("%s-%d.png", file.Field, m.seq)
	return models.ImageRef{URL: "http://media/" + id, PublicID: id}, nil
}

func (m *mockMedia) Remove(_ context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, publicID)
	return m.removeErr
}

func (m *mockMedia) uploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

func (m *mockMedia) removedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

// recordingJanitor captures discarded ids without removing anything.
type recordingJanitor struct {
	mu  sync.Mutex
	ids []string
}

func (j *recordingJanitor) Discard(_ context.Context, ids ...string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			j.ids = append(j.ids, id)
		}
	}
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AccountEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.AccountEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// memoryCache is an in-memory CacheRepository.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]interface{}{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return errCacheMiss
	}
	p, ok := v.(*models.ChannelProfile)
	if !ok {
		return errCacheMiss
	}
	*(dest.(*models.ChannelProfile)) = *p
	return nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, pattern)
	prefix := pattern[:len(pattern)-1]
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}

func testTokenService() *TokenService {
	return NewTokenService(TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		AccessExpiry:  time.Minute,
		RefreshSecret: "refresh-secret-for-tests",
		RefreshExpiry: time.Hour,
		Issuer:        "test",
	})
}

var errCacheMiss = appErrors.ErrCacheMiss
