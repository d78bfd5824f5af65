package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultAssetsBackend      = BackendSession
	defaultAssetsBaseURL      = "https://raw.githubusercontent.com/Amrut-Prajapati/ReUpyog/main/images"
	defaultFetchTimeout       = 10 * time.Second
	defaultMaxUploadBytes     = int64(20 * 1024 * 1024)
	defaultSessionIdleTimeout = 30 * time.Minute
	defaultUploadsPerMinute   = 30
)

// Asset backends selectable through SHOWCASE_ASSETS_BACKEND.
const (
	BackendSession = "session"
	BackendRemote  = "remote"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Assets     AssetsConfig
	Session    SessionConfig
	RateLimits RateLimitConfig
	Trace      TraceConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AssetsConfig selects and tunes the image slot backend.
type AssetsConfig struct {
	Backend        string
	BaseURL        string
	FetchTimeout   time.Duration
	MaxUploadBytes int64
	// FailureTTL bounds how long a cached fetch failure is served. Zero keeps it until invalidated.
	FailureTTL time.Duration
	Manifest   string
}

// SessionConfig controls the presentation session cookie.
type SessionConfig struct {
	HashKey      string
	BlockKey     string
	IdleTimeout  time.Duration
	SecureCookie bool
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	UploadsPerMinute int
}

// TraceConfig carries tracing metadata.
type TraceConfig struct {
	ProjectID string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SHOWCASE_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SHOWCASE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SHOWCASE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SHOWCASE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Assets: AssetsConfig{
			Backend:        strings.ToLower(stringWithDefault(lookup, "SHOWCASE_ASSETS_BACKEND", defaultAssetsBackend)),
			BaseURL:        strings.TrimRight(stringWithDefault(lookup, "SHOWCASE_ASSETS_BASE_URL", defaultAssetsBaseURL), "/"),
			FetchTimeout:   durationWithDefault(lookup, "SHOWCASE_ASSETS_FETCH_TIMEOUT", defaultFetchTimeout),
			MaxUploadBytes: int64WithDefault(lookup, "SHOWCASE_ASSETS_MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
			FailureTTL:     durationWithDefault(lookup, "SHOWCASE_ASSETS_FAILURE_TTL", 0),
			Manifest:       stringWithDefault(lookup, "SHOWCASE_ASSETS_MANIFEST", ""),
		},
		Session: SessionConfig{
			HashKey:      stringWithDefault(lookup, "SHOWCASE_SESSION_HASH_KEY", ""),
			BlockKey:     stringWithDefault(lookup, "SHOWCASE_SESSION_BLOCK_KEY", ""),
			IdleTimeout:  durationWithDefault(lookup, "SHOWCASE_SESSION_IDLE_TIMEOUT", defaultSessionIdleTimeout),
			SecureCookie: boolWithDefault(lookup, "SHOWCASE_SESSION_SECURE_COOKIE", false),
		},
		RateLimits: RateLimitConfig{
			UploadsPerMinute: intWithDefault(lookup, "SHOWCASE_RATELIMIT_UPLOADS_PER_MIN", defaultUploadsPerMinute),
		},
		Trace: TraceConfig{
			ProjectID: stringWithDefault(lookup, "SHOWCASE_TRACE_PROJECT_ID", ""),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Assets.Backend {
	case BackendSession:
	case BackendRemote:
		if !validBaseURL(cfg.Assets.BaseURL) {
			missing = append(missing, "Assets.BaseURL")
		}
	default:
		missing = append(missing, "Assets.Backend")
	}
	if cfg.Assets.FetchTimeout <= 0 {
		missing = append(missing, "Assets.FetchTimeout")
	}
	if cfg.Assets.MaxUploadBytes <= 0 {
		missing = append(missing, "Assets.MaxUploadBytes")
	}
	if cfg.Assets.FailureTTL < 0 {
		missing = append(missing, "Assets.FailureTTL")
	}
	if cfg.Session.IdleTimeout <= 0 {
		missing = append(missing, "Session.IdleTimeout")
	}
	if n := len(cfg.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		missing = append(missing, "Session.BlockKey")
	}
	if cfg.RateLimits.UploadsPerMinute <= 0 {
		missing = append(missing, "RateLimits.UploadsPerMinute")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func validBaseURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "gs":
		return true
	}
	return false
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
