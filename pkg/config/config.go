package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageDriverLocal      = "local"
	StorageDriverCloudinary = "cloudinary"
	StorageDriverOSS        = "oss"
)

// Mail drivers accepted by MAIL_DRIVER.
const (
	MailDriverLog      = "log"
	MailDriverSendGrid = "sendgrid"
)

const defaultJWTSecret = "dev_secret"

// Config aggregates every runtime setting.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	Cookie   CookieConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Mail     MailConfig
	School   SchoolConfig
	Stats    StatsConfig

	Bootstrap BootstrapConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// SecurityConfig groups password hashing and brute-force protection knobs.
type SecurityConfig struct {
	BcryptCost       int
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	LoginRateLimit   int
	LoginRateWindow  time.Duration
}

// CookieConfig controls auth cookie attributes.
type CookieConfig struct {
	Domain string
	Secure bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects and configures the object storage backend for uploads.
type StorageConfig struct {
	Driver    string
	LocalDir  string
	PublicURL string
	Folder    string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	OSSEndpoint        string
	OSSAccessKeyID     string
	OSSAccessKeySecret string
	OSSBucket          string
	OSSPublicBaseURL   string
}

// MailConfig configures outbound email delivery.
type MailConfig struct {
	Driver         string
	SendGridAPIKey string
	FromName       string
	FromAddress    string
	FrontendURL    string
	Workers        int
	Retries        int
}

// SchoolConfig holds institution data printed on receipts and certificates.
type SchoolConfig struct {
	Name     string
	City     string
	LogoPath string
}

// BootstrapConfig seeds the first super admin on an empty database.
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

// StatsConfig tunes caching for statistics endpoints.
type StatsConfig struct {
	CacheTTL time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.Security = SecurityConfig{
		BcryptCost:       v.GetInt("BCRYPT_COST"),
		MaxLoginAttempts: v.GetInt("MAX_LOGIN_ATTEMPTS"),
		LockoutDuration:  parseDuration(v.GetString("LOCKOUT_DURATION"), 15*time.Minute),
		LoginRateLimit:   v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow:  parseDuration(v.GetString("LOGIN_RATE_WINDOW"), time.Minute),
	}

	cfg.Cookie = CookieConfig{
		Domain: v.GetString("COOKIE_DOMAIN"),
		Secure: cfg.Env == EnvProduction,
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Driver:              strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:            v.GetString("STORAGE_LOCAL_DIR"),
		PublicURL:           v.GetString("STORAGE_PUBLIC_URL"),
		Folder:              v.GetString("STORAGE_FOLDER"),
		CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    v.GetString("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: v.GetString("CLOUDINARY_API_SECRET"),
		OSSEndpoint:         v.GetString("OSS_ENDPOINT"),
		OSSAccessKeyID:      v.GetString("OSS_ACCESS_KEY_ID"),
		OSSAccessKeySecret:  v.GetString("OSS_ACCESS_KEY_SECRET"),
		OSSBucket:           v.GetString("OSS_BUCKET"),
		OSSPublicBaseURL:    v.GetString("OSS_PUBLIC_BASE_URL"),
	}

	cfg.Mail = MailConfig{
		Driver:         strings.ToLower(v.GetString("MAIL_DRIVER")),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		FrontendURL:    v.GetString("FRONTEND_URL"),
		Workers:        v.GetInt("MAIL_WORKERS"),
		Retries:        v.GetInt("MAIL_RETRIES"),
	}

	cfg.School = SchoolConfig{
		Name:     v.GetString("SCHOOL_NAME"),
		City:     v.GetString("SCHOOL_CITY"),
		LogoPath: v.GetString("SCHOOL_LOGO_PATH"),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Bootstrap = BootstrapConfig{
		AdminUsername: v.GetString("BOOTSTRAP_ADMIN_USERNAME"),
		AdminPassword: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		AdminEmail:    v.GetString("BOOTSTRAP_ADMIN_EMAIL"),
	}

	if cfg.Env == EnvProduction && cfg.JWT.Secret == defaultJWTSecret {
		return nil, errors.New("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "school-admin-api")
	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("LOCKOUT_DURATION", "15m")
	v.SetDefault("LOGIN_RATE_LIMIT", 20)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
	v.SetDefault("COOKIE_DOMAIN", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_URL", "/uploads")
	v.SetDefault("STORAGE_FOLDER", "colegio")

	v.SetDefault("MAIL_DRIVER", MailDriverLog)
	v.SetDefault("MAIL_FROM_NAME", "Unidad Educativa")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@colegio.local")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_RETRIES", 3)

	v.SetDefault("SCHOOL_NAME", "Unidad Educativa")
	v.SetDefault("SCHOOL_CITY", "La Paz")
	v.SetDefault("SCHOOL_LOGO_PATH", "")

	v.SetDefault("STATS_CACHE_TTL", "5m")

	v.SetDefault("BOOTSTRAP_ADMIN_USERNAME", "")
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "")
	v.SetDefault("BOOTSTRAP_ADMIN_EMAIL", "")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
