package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	MediaDriverS3    = "s3"
	MediaDriverLocal = "local"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	CORS     CORSConfig
	Log      LogConfig
	Media    MediaConfig
	Janitor  JanitorConfig
	Events   EventsConfig
	Channel  ChannelConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the signing material for both token kinds. Access and
// refresh tokens never share a secret.
type JWTConfig struct {
	AccessSecret      string
	AccessExpiration  time.Duration
	RefreshSecret     string
	RefreshExpiration time.Duration
	Issuer            string
}

// CookieConfig controls the attributes of the accessToken/refreshToken cookies.
type CookieConfig struct {
	Secure   bool
	Domain   string
	Path     string
	SameSite string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MediaConfig selects and configures the image store.
type MediaConfig struct {
	Driver           string
	LocalDir         string
	PublicBaseURL    string
	Timeout          time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	S3               S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// JanitorConfig sizes the background asset removal pool.
type JanitorConfig struct {
	Workers    int
	BufferSize int
}

// EventsConfig toggles Kafka publication of account lifecycle events.
type EventsConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// ChannelConfig governs caching of channel profiles.
type ChannelConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		AccessSecret:      v.GetString("ACCESS_TOKEN_SECRET"),
		AccessExpiration:  parseDuration(v.GetString("ACCESS_TOKEN_EXPIRATION"), 15*time.Minute),
		RefreshSecret:     v.GetString("REFRESH_TOKEN_SECRET"),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 10*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.Cookie = CookieConfig{
		Secure:   v.GetBool("COOKIE_SECURE"),
		Domain:   v.GetString("COOKIE_DOMAIN"),
		Path:     v.GetString("COOKIE_PATH"),
		SameSite: strings.ToLower(v.GetString("COOKIE_SAMESITE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("MEDIA_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		Driver:           strings.ToLower(v.GetString("MEDIA_DRIVER")),
		LocalDir:         v.GetString("MEDIA_LOCAL_DIR"),
		PublicBaseURL:    strings.TrimRight(v.GetString("MEDIA_PUBLIC_BASE_URL"), "/"),
		Timeout:          parseDuration(v.GetString("MEDIA_TIMEOUT"), 15*time.Second),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("MEDIA_ALLOWED_MIME_TYPES")),
		S3: S3Config{
			Bucket:    v.GetString("S3_BUCKET"),
			Region:    v.GetString("S3_REGION"),
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Prefix:    strings.Trim(v.GetString("S3_PREFIX"), "/"),
		},
	}

	cfg.Janitor = JanitorConfig{
		Workers:    v.GetInt("JANITOR_WORKERS"),
		BufferSize: v.GetInt("JANITOR_BUFFER_SIZE"),
	}

	cfg.Events = EventsConfig{
		Enabled:      v.GetBool("EVENTS_ENABLED"),
		Brokers:      splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:        v.GetString("KAFKA_TOPIC"),
		WriteTimeout: parseDuration(v.GetString("KAFKA_WRITE_TIMEOUT"), 5*time.Second),
	}

	cfg.Channel = ChannelConfig{
		CacheEnabled: v.GetBool("CHANNEL_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("CHANNEL_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

// Validate rejects configurations that must never reach production.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("access and refresh token secrets are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	switch c.Media.Driver {
	case MediaDriverLocal:
	case MediaDriverS3:
		if c.Media.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 media driver")
		}
	default:
		return fmt.Errorf("unsupported media driver %q", c.Media.Driver)
	}
	if c.Events.Enabled && (len(c.Events.Brokers) == 0 || c.Events.Topic == "") {
		return errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required when events are enabled")
	}
	if c.Env == EnvProduction {
		if strings.HasPrefix(c.JWT.AccessSecret, "dev_") || strings.HasPrefix(c.JWT.RefreshSecret, "dev_") {
			return errors.New("development token secrets are not allowed in production")
		}
		if !c.Cookie.Secure {
			return errors.New("COOKIE_SECURE must be enabled in production")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("API_PREFIX", "/api/v1/users")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "channel_accounts")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ACCESS_TOKEN_SECRET", "dev_access_secret")
	v.SetDefault("ACCESS_TOKEN_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_SECRET", "dev_refresh_secret")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "240h")
	v.SetDefault("JWT_ISSUER", "channel-account-api")

	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_PATH", "/")
	v.SetDefault("COOKIE_SAMESITE", "lax")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MEDIA_DRIVER", MediaDriverLocal)
	v.SetDefault("MEDIA_LOCAL_DIR", "./public/media")
	v.SetDefault("MEDIA_PUBLIC_BASE_URL", "http://localhost:8000/media")
	v.SetDefault("MEDIA_TIMEOUT", "15s")
	v.SetDefault("MEDIA_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("MEDIA_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp,image/gif")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_PREFIX", "avatars")

	v.SetDefault("JANITOR_WORKERS", 2)
	v.SetDefault("JANITOR_BUFFER_SIZE", 64)

	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "account_events")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "5s")

	v.SetDefault("CHANNEL_CACHE_ENABLED", false)
	v.SetDefault("CHANNEL_CACHE_TTL", "2m")

	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
