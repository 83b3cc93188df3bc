package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Env string

	APIBaseURL        string
	HTTPClientTimeout time.Duration
	RealtimeURL       string

	SessionStore       string
	SQLitePath         string
	PostgresDSN        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisKeyPrefix     string
	StorageEncryptKey  string
	SessionIdleTimeout time.Duration
	IdleCheckInterval  time.Duration
	VerifyInterval     time.Duration

	LandingRoute string
	HomeRoute    string
	PublicRoutes []string
	ViewHTTPAddr string

	SessionRateLimitRPM int
	ShutdownTimeout     time.Duration

	LogLevel  string
	LogFormat string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELHTTPEnabled           bool
}

var (
	// ErrParse marks an environment value that could not be parsed.
	ErrParse = errors.New("parse")
	// ErrInvalid marks a configuration that parsed but failed Validate.
	ErrInvalid = errors.New("validate config")
)

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	return load(getEnv("APP_ENV", "development"))
}

// ErrorClass names the kind of a Load error for logs and metrics:
// none, parse, validation or load.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalid):
		return "validation"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "load"
	}
}

func load(profile string) (*Config, error) {
	cfg := &Config{
		Env:               profile,
		APIBaseURL:        getEnv("CHAT_API_URL", "http://localhost:5000"),
		RealtimeURL:       os.Getenv("REALTIME_URL"),
		SessionStore:      strings.ToLower(getEnv("SESSION_STORE", StoreSQLite)),
		SQLitePath:        getEnv("SESSION_SQLITE_PATH", "./data/session.db"),
		PostgresDSN:       os.Getenv("SESSION_POSTGRES_DSN"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisKeyPrefix:    getEnv("SESSION_REDIS_PREFIX", "chat_session"),
		StorageEncryptKey: os.Getenv("SESSION_ENCRYPTION_KEY"),
		LandingRoute:      getEnv("LANDING_ROUTE", "/"),
		HomeRoute:         getEnv("HOME_ROUTE", "/chat"),
		PublicRoutes:      splitCSV(getEnv("PUBLIC_ROUTES", "/,/register,/login")),
		ViewHTTPAddr:      getEnv("VIEW_HTTP_ADDR", ":3000"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "chat-session-client"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", profile),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.HTTPClientTimeout, err = durationEnv("HTTP_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = durationEnv("SESSION_IDLE_TIMEOUT", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.IdleCheckInterval, err = durationEnv("SESSION_IDLE_CHECK_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.VerifyInterval, err = durationEnv("TOKEN_VERIFY_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionRateLimitRPM, err = intEnv("SESSION_RATE_LIMIT_RPM", 60); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = durationEnv("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = boolEnv("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = boolEnv("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracingEnabled, err = boolEnv("OTEL_TRACING_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = boolEnv("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELHTTPEnabled, err = boolEnv("OTEL_HTTP_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTraceSamplingRatio, err = floatEnv("OTEL_TRACES_SAMPLER_RATIO", 1.0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants. Errors wrap ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("CHAT_API_URL must be an absolute URL"))
	}
	if c.RealtimeURL != "" {
		if u, err := url.Parse(c.RealtimeURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("REALTIME_URL must use ws or wss"))
		}
	}
	switch c.SessionStore {
	case StoreMemory, StoreSQLite, StoreRedis:
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("SESSION_POSTGRES_DSN is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE %q is not supported", c.SessionStore))
	}
	if c.SessionStore == StoreSQLite && c.SQLitePath == "" {
		errs = append(errs, fmt.Errorf("SESSION_SQLITE_PATH is required for the sqlite store"))
	}
	if c.SessionIdleTimeout <= 0 || c.IdleCheckInterval <= 0 || c.VerifyInterval <= 0 {
		errs = append(errs, fmt.Errorf("session durations must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.SessionRateLimitRPM <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_RATE_LIMIT_RPM must be positive"))
	}
	if c.HTTPClientTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_CLIENT_TIMEOUT must be positive"))
	}
	if !strings.HasPrefix(c.LandingRoute, "/") || !strings.HasPrefix(c.HomeRoute, "/") {
		errs = append(errs, fmt.Errorf("LANDING_ROUTE and HOME_ROUTE must be absolute paths"))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_RATIO must be within [0,1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %w", ErrParse, key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %w", ErrParse, key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrParse, key, err)
	}
	return b, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %w", ErrParse, key, err)
	}
	return f, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
