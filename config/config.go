package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StartNumberScopeGlobal = "global"
	StartNumberScopeEvent  = "event"
)

type Config struct {
	Port     string
	Debug    bool
	LogLevel string

	// Database
	DBDriver       string
	DatabaseURL    string
	DatabaseURLSSM string
	DBMaxPool      int

	// Admin auth
	JWTSecret          string
	AdminLogin         string
	AdminPassword      string
	AdminLoginSSM      string
	AdminPasswordSSM   string
	SecretsCacheTTL    time.Duration
	AllowedOrigins     []string
	TrustedProxies     []string // IPs or CIDRs allowed to set X-Forwarded-For
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxUploadBytes     int64
	StartNumberScope   string

	// Route file storage
	RoutesBucket     string
	AWSRegion        string
	S3Endpoint       string
	S3PublicBaseURL  string
	S3ForcePathStyle bool
	RouteSweepEvery  time.Duration
	RouteSweepMinAge time.Duration

	// Email Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string

	SentryDSN string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading environment variables directly")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:     v.GetString("PORT"),
		Debug:    v.GetBool("DEBUG"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DatabaseURLSSM: v.GetString("SSM_DB_URL_PARAM"),
		DBMaxPool:      v.GetInt("DB_MAX_POOL"),

		JWTSecret:          v.GetString("JWT_SECRET"),
		AdminLogin:         v.GetString("ADMIN_LOGIN"),
		AdminPassword:      v.GetString("ADMIN_PASSWORD"),
		AdminLoginSSM:      v.GetString("SSM_ADMIN_LOGIN_PARAM"),
		AdminPasswordSSM:   v.GetString("SSM_ADMIN_PASSWORD_PARAM"),
		SecretsCacheTTL:    v.GetDuration("SECRETS_CACHE_TTL"),
		AllowedOrigins:     splitList(v.GetString("ALLOWED_ORIGINS")),
		TrustedProxies:     splitList(v.GetString("TRUSTED_PROXIES")),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_BYTES"),
		StartNumberScope:   strings.ToLower(v.GetString("START_NUMBER_SCOPE")),

		RoutesBucket:     v.GetString("ROUTES_BUCKET"),
		AWSRegion:        firstNonEmpty(v.GetString("AWS_REGION"), v.GetString("AWS_DEFAULT_REGION"), "eu-central-1"),
		S3Endpoint:       v.GetString("S3_ENDPOINT"),
		S3PublicBaseURL:  strings.TrimRight(v.GetString("S3_PUBLIC_BASE_URL"), "/"),
		S3ForcePathStyle: v.GetBool("S3_FORCE_PATH_STYLE"),
		RouteSweepEvery:  v.GetDuration("ROUTE_SWEEP_INTERVAL"),
		RouteSweepMinAge: v.GetDuration("ROUTE_SWEEP_MIN_AGE"),

		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		FromEmail:    v.GetString("FROM_EMAIL"),
		FromName:     v.GetString("FROM_NAME"),

		SentryDSN: v.GetString("SENTRY_DSN"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_MAX_POOL", 10)
	v.SetDefault("SECRETS_CACHE_TTL", 5*time.Minute)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("MAX_UPLOAD_BYTES", 20<<20)
	v.SetDefault("START_NUMBER_SCOPE", StartNumberScopeGlobal)
	v.SetDefault("ROUTE_SWEEP_INTERVAL", time.Duration(0))
	v.SetDefault("ROUTE_SWEEP_MIN_AGE", time.Hour)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("FROM_NAME", "Raceday")
}

// Validate checks the values that have a closed set of options.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.StartNumberScope {
	case StartNumberScopeGlobal, StartNumberScopeEvent:
	default:
		return fmt.Errorf("config: START_NUMBER_SCOPE must be %q or %q, got %q",
			StartNumberScopeGlobal, StartNumberScopeEvent, c.StartNumberScope)
	}

	if c.DBMaxPool <= 0 {
		return fmt.Errorf("config: DB_MAX_POOL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: rate limit values must be positive")
	}
	for _, p := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			return fmt.Errorf("config: TRUSTED_PROXIES entry %q is not an IP or CIDR", p)
		}
	}
	return nil
}

// EmailEnabled reports whether registration confirmations can be sent.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.FromEmail != ""
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
