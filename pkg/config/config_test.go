package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1/users", cfg.APIPrefix)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiration)
	assert.Equal(t, 240*time.Hour, cfg.JWT.RefreshExpiration)
	assert.Equal(t, MediaDriverLocal, cfg.Media.Driver)
	assert.Equal(t, int64(5*1024*1024), cfg.Media.MaxFileSizeBytes)
	assert.Contains(t, cfg.Media.AllowedMIMEs, "image/png")
	assert.True(t, cfg.Cookie.Secure)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsSharedSecrets(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.JWT.RefreshSecret = cfg.JWT.AccessSecret

	assert.Error(t, cfg.Validate())
}

func TestValidateProductionGuards(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Env = EnvProduction
	require.Error(t, cfg.Validate(), "dev secrets must be refused")

	cfg.JWT.AccessSecret = "a-very-long-access-secret"
	cfg.JWT.RefreshSecret = "a-very-long-refresh-secret"
	require.NoError(t, cfg.Validate())

	cfg.Cookie.Secure = false
	assert.Error(t, cfg.Validate())
}

func TestValidateMediaDriver(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Media.Driver = MediaDriverS3
	require.Error(t, cfg.Validate())

	cfg.Media.S3.Bucket = "avatars"
	require.NoError(t, cfg.Validate())

	cfg.Media.Driver = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitAndTrim(" a:9092 , ,b:9092"))
}
