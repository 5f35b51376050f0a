package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "channel")
	var dest map[string]string

	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "alice:*"))
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	assert.Equal(t, "channel:alice:v1", NewCacheRepository(nil, "channel").key("alice:v1"))
	assert.Equal(t, "alice:v1", NewCacheRepository(nil, "").key("alice:v1"))
}
