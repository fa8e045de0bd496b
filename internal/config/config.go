package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Guest      GuestConfig      `mapstructure:"guest"`
	Thumbnail  ThumbnailConfig  `mapstructure:"thumbnail"`
	Translator TranslatorConfig `mapstructure:"translator"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
	// InternalSecret guards maintenance endpoints called by operators/cron.
	InternalSecret string `mapstructure:"internal_secret"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port 形式的连接地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// AuthConfig 包含 JWT 签名密钥与令牌有效期。
type AuthConfig struct {
	PrivateKeyPath         string `mapstructure:"private_key_path"`
	PublicKeyPath          string `mapstructure:"public_key_path"`
	AccessTokenTTLMinutes  int    `mapstructure:"access_token_ttl_minutes"`
	RefreshTokenTTLHours   int    `mapstructure:"refresh_token_ttl_hours"`
}

// AccessTokenTTL 返回访问令牌有效期。
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL 返回刷新令牌有效期。
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// GuestConfig 描述访客会话的配额与频率限制。
type GuestConfig struct {
	// SessionExpiryDays 访客会话有效天数。
	SessionExpiryDays int `mapstructure:"session_expiry_days"`
	// MaxResumePerSession 单个会话可创建的简历上限。
	MaxResumePerSession int `mapstructure:"max_resume_per_session"`
	// MaxSessionsPerIPPerDay 单个 IP 24 小时内可创建的会话上限。
	MaxSessionsPerIPPerDay int `mapstructure:"max_sessions_per_ip_per_day"`
	// MaxResumesPerIPPerDay 单个 IP 24 小时内（跨会话）可创建的简历上限。
	MaxResumesPerIPPerDay int `mapstructure:"max_resumes_per_ip_per_day"`
	// StrictIPValidation 为 true 时 IP 变化会使会话校验失败；默认只记录日志。
	StrictIPValidation bool `mapstructure:"strict_ip_validation"`
	// EnableRateLimiting 关闭后所有 IP 频率检查直接放行。
	EnableRateLimiting bool `mapstructure:"enable_rate_limiting"`
}

// SessionExpiry 返回会话有效期时长。
func (g GuestConfig) SessionExpiry() time.Duration {
	return time.Duration(g.SessionExpiryDays) * 24 * time.Hour
}

// ThumbnailConfig 描述缩略图渲染选项。
type ThumbnailConfig struct {
	// FontPath 渲染用 TTF 字体路径，留空时退回内置点阵字体。
	FontPath string `mapstructure:"font_path"`
}

// TranslatorConfig selects the translation provider wired at startup.
type TranslatorConfig struct {
	// Provider is one of: microsoft, deepl, libre, ai.
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	// Model is only used by the ai provider.
	Model string `mapstructure:"model"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cvforge")
	v.SetDefault("database.user", "cvforge")
	v.SetDefault("database.password", "cvforge")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "thumbnails")
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.access_token_ttl_minutes", 15)
	v.SetDefault("auth.refresh_token_ttl_hours", 168)
	v.SetDefault("guest.session_expiry_days", 30)
	v.SetDefault("guest.max_resume_per_session", 1)
	v.SetDefault("guest.max_sessions_per_ip_per_day", 5)
	v.SetDefault("guest.max_resumes_per_ip_per_day", 3)
	v.SetDefault("guest.strict_ip_validation", false)
	v.SetDefault("guest.enable_rate_limiting", true)
	v.SetDefault("translator.provider", "libre")
	v.SetDefault("translator.endpoint", "https://libretranslate.com")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                          "API_PORT",
		"api.internal_secret":               "API_INTERNAL_SECRET",
		"database.host":                     "DATABASE_HOST",
		"database.port":                     "DATABASE_PORT",
		"database.name":                     "POSTGRES_DB",
		"database.user":                     "POSTGRES_USER",
		"database.password":                 "POSTGRES_PASSWORD",
		"database.sslmode":                  "DATABASE_SSLMODE",
		"redis.host":                        "REDIS_HOST",
		"redis.port":                        "REDIS_PORT",
		"minio.endpoint":                    "MINIO_ENDPOINT",
		"minio.access_key_id":               "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":           "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                     "MINIO_USE_SSL",
		"minio.bucket":                      "MINIO_BUCKET",
		"auth.private_key_path":             "AUTH_PRIVATE_KEY_PATH",
		"auth.public_key_path":              "AUTH_PUBLIC_KEY_PATH",
		"auth.access_token_ttl_minutes":     "AUTH_ACCESS_TOKEN_TTL_MINUTES",
		"auth.refresh_token_ttl_hours":      "AUTH_REFRESH_TOKEN_TTL_HOURS",
		"guest.session_expiry_days":         "GUEST_SESSION_EXPIRY_DAYS",
		"guest.max_resume_per_session":      "GUEST_MAX_RESUME_PER_SESSION",
		"guest.max_sessions_per_ip_per_day": "GUEST_MAX_SESSIONS_PER_IP_PER_DAY",
		"guest.max_resumes_per_ip_per_day":  "GUEST_MAX_RESUMES_PER_IP_PER_DAY",
		"guest.strict_ip_validation":        "GUEST_STRICT_IP_VALIDATION",
		"guest.enable_rate_limiting":        "GUEST_ENABLE_RATE_LIMITING",
		"thumbnail.font_path":               "THUMBNAIL_FONT_PATH",
		"translator.provider":               "TRANSLATOR_PROVIDER",
		"translator.api_key":                "TRANSLATOR_API_KEY",
		"translator.endpoint":               "TRANSLATOR_ENDPOINT",
		"translator.model":                  "TRANSLATOR_MODEL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.PrivateKeyPath == "" || cfg.Auth.PublicKeyPath == "" {
		return errors.New("auth key paths are required")
	}
	if cfg.Auth.AccessTokenTTLMinutes <= 0 || cfg.Auth.RefreshTokenTTLHours <= 0 {
		return errors.New("auth token ttls must be positive")
	}
	if cfg.Guest.SessionExpiryDays <= 0 {
		return errors.New("guest session expiry days must be positive")
	}
	if cfg.Guest.MaxResumePerSession <= 0 {
		return errors.New("guest max resume per session must be positive")
	}
	if cfg.Guest.MaxSessionsPerIPPerDay <= 0 {
		return errors.New("guest max sessions per ip per day must be positive")
	}
	if cfg.Guest.MaxResumesPerIPPerDay <= 0 {
		return errors.New("guest max resumes per ip per day must be positive")
	}
	switch cfg.Translator.Provider {
	case "microsoft", "deepl", "libre", "ai":
	default:
		return fmt.Errorf("unknown translator provider %q", cfg.Translator.Provider)
	}
	return nil
}
