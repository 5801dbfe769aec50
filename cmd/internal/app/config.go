package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/api"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/reset"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/session"
)

// Config contains all runtime configuration. It is loaded once at startup and
// handed to components by value.
type Config struct {
	Env       string `mapstructure:"APP_ENV"`
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	ReadHeaderTimeout time.Duration `mapstructure:"HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `mapstructure:"HTTP_SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"HTTP_MAX_HEADER_BYTES"`

	// DatabaseURL selects Postgres; empty runs on in-memory stores.
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool `mapstructure:"READINESS_REQUIRE_DB"`
	MetricsEnabled     bool `mapstructure:"METRICS_ENABLED"`

	SecretKey                string `mapstructure:"SECRET_KEY"`
	Algorithm                string `mapstructure:"ALGORITHM"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	RefreshTokenExpireDays   int    `mapstructure:"REFRESH_TOKEN_EXPIRE_DAYS"`
	MaxActiveSessions        int    `mapstructure:"MAX_ACTIVE_SESSIONS"`

	ResetRevokesSessions bool          `mapstructure:"RESET_REVOKES_SESSIONS"`
	ResetURLBase         string        `mapstructure:"RESET_URL_BASE"`
	EmailCodeTTL         time.Duration `mapstructure:"EMAIL_CODE_TTL"`

	AuthMaxBodyBytes  int64 `mapstructure:"AUTH_MAX_BODY_BYTES"`
	AuthTrustProxy    bool  `mapstructure:"AUTH_TRUST_PROXY"`
	AuthRatePerMinute int   `mapstructure:"AUTH_RATE_PER_MINUTE"`
	AuthRateBurst     int   `mapstructure:"AUTH_RATE_BURST"`

	CORSOrigins          string   `mapstructure:"CORS_ALLOWED_ORIGINS"`
	CORSAllowedOrigins   []string `mapstructure:"-"`
	CORSAllowCredentials bool     `mapstructure:"CORS_ALLOW_CREDENTIALS"`
	CORSMaxAgeSeconds    int      `mapstructure:"CORS_MAX_AGE_SECONDS"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("HTTP_READ_HEADER_TIMEOUT", "5s")
	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "15s")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "60s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("HTTP_MAX_HEADER_BYTES", 1<<20)

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("READINESS_REQUIRE_DB", false)
	v.SetDefault("METRICS_ENABLED", true)

	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	v.SetDefault("MAX_ACTIVE_SESSIONS", 5)

	v.SetDefault("RESET_REVOKES_SESSIONS", false)
	v.SetDefault("RESET_URL_BASE", "http://localhost:3000/reset-password")
	v.SetDefault("EMAIL_CODE_TTL", "10m")

	v.SetDefault("AUTH_MAX_BODY_BYTES", 1<<20)
	v.SetDefault("AUTH_TRUST_PROXY", false)
	v.SetDefault("AUTH_RATE_PER_MINUTE", 20)
	v.SetDefault("AUTH_RATE_BURST", 5)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", false)
	v.SetDefault("CORS_MAX_AGE_SECONDS", 600)
}

// LoadConfig reads .env (if present), then the environment, then defaults.
// Env vars override .env. It does not require SECRET_KEY so that tooling such
// as cmd/migrate can share it; the server checks secrets in New.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !missingConfigFile(err) {
		return Config{}, fmt.Errorf("config: read .env: %w", err)
	}

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSOrigins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func missingConfigFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or pretty, got %q", c.LogFormat)
	}
	if c.DBMinConns > c.DBMaxConns {
		return errors.New("config: DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if c.EmailCodeTTL <= 0 {
		return errors.New("config: EMAIL_CODE_TTL must be positive")
	}
	return nil
}

// Production reports whether APP_ENV names a production deployment.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// SessionConfig builds the credential configuration. It is validated by the
// session package constructors.
func (c Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.Secret = c.SecretKey
	if c.Algorithm != "" {
		sc.Algorithm = strings.ToUpper(strings.TrimSpace(c.Algorithm))
	}
	sc.AccessTTL = time.Duration(c.AccessTokenExpireMinutes) * time.Minute
	sc.RefreshTTL = time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
	sc.MaxActiveSessions = c.MaxActiveSessions
	sc.ResetRevokesSessions = c.ResetRevokesSessions
	return sc
}

func (c Config) ResetConfig() reset.Config {
	return reset.Config{URLBase: c.ResetURLBase, RevokeSessions: c.ResetRevokesSessions}
}

func (c Config) APIConfig() api.Config {
	return api.Config{
		TrustProxy:    c.AuthTrustProxy,
		MaxBodyBytes:  c.AuthMaxBodyBytes,
		RatePerMinute: c.AuthRatePerMinute,
		RateBurst:     c.AuthRateBurst,
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
