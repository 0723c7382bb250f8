// Package config loads runtime configuration for the web front-end from
// defaults, an optional .env file, the process environment and explicit maps.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultEnvironment  = "local"
	defaultTemplatesDir = "templates"
	defaultPublicDir    = "public"
	defaultLocalesDir   = "locales"
	defaultContentDir   = "content"
	defaultFallbackLang = "fr"
	defaultReadTimeout  = 15 * time.Second
	// Event streams stay open for the life of a page, so writes carry no deadline by default.
	defaultWriteTimeout = 0
	defaultIdleTimeout  = 60 * time.Second
	defaultLoadDelay    = time.Second
	defaultViewIdleTTL  = 10 * time.Minute
	defaultViewPending  = time.Minute
	defaultMaxViews     = 10000

	SourceStatic    = "static"
	SourceFirestore = "firestore"
	SourcePostgres  = "postgres"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Site      SiteConfig
	Catalog   CatalogConfig
	Views     ViewConfig
	Session   SessionConfig
	Analytics AnalyticsConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	Environment  string
	DevMode      bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SiteConfig locates templates and static content on disk.
type SiteConfig struct {
	TemplatesDir string
	PublicDir    string
	LocalesDir   string
	ContentDir   string
	FallbackLang string
	BaseURL      string
}

// CatalogConfig selects the product data source.
type CatalogConfig struct {
	Source             string
	File               string
	FirestoreProjectID string
	FirestoreEmulator  string
	Collection         string
	PostgresDSN        string
}

// ViewConfig tunes mounted catalog views.
type ViewConfig struct {
	LoadDelay time.Duration
	IdleTTL   time.Duration
	// PendingTTL expires views whose page never opened an event stream.
	PendingTTL time.Duration
	MaxViews   int
}

// SessionConfig holds cookie signing settings.
type SessionConfig struct {
	SigningKey string
	Secure     bool
}

// AnalyticsConfig carries client-side measurement ids surfaced to templates.
type AnalyticsConfig struct {
	GA4MeasurementID string
	Debug            bool
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string { return ":" + c.Port }

// IsProd reports whether the server runs in production.
func (c ServerConfig) IsProd() bool { return c.Environment == "prod" }

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

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration. Precedence: defaults < .env < OS env < explicit map.
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
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	// Cloud Run injects PORT; the prefixed key wins when both are set.
	port := stringWithDefault(lookup, "PORT", defaultPort)
	env := strings.ToLower(stringWithDefault(lookup, "SARO_WEB_ENV", defaultEnvironment))

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SARO_WEB_PORT", port),
			Environment:  env,
			DevMode:      boolWithDefault(lookup, "SARO_WEB_DEV", false),
			ReadTimeout:  durationWithDefault(lookup, "SARO_WEB_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SARO_WEB_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SARO_WEB_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Site: SiteConfig{
			TemplatesDir: stringWithDefault(lookup, "SARO_WEB_TEMPLATES_DIR", defaultTemplatesDir),
			PublicDir:    stringWithDefault(lookup, "SARO_WEB_PUBLIC_DIR", defaultPublicDir),
			LocalesDir:   stringWithDefault(lookup, "SARO_WEB_LOCALES_DIR", defaultLocalesDir),
			ContentDir:   stringWithDefault(lookup, "SARO_WEB_CONTENT_DIR", defaultContentDir),
			FallbackLang: strings.ToLower(stringWithDefault(lookup, "SARO_WEB_FALLBACK_LANG", defaultFallbackLang)),
			BaseURL:      strings.TrimRight(stringWithDefault(lookup, "SARO_WEB_BASE_URL", ""), "/"),
		},
		Catalog: CatalogConfig{
			Source:             strings.ToLower(stringWithDefault(lookup, "SARO_WEB_CATALOG_SOURCE", SourceStatic)),
			File:               stringWithDefault(lookup, "SARO_WEB_CATALOG_FILE", ""),
			FirestoreProjectID: stringWithDefault(lookup, "SARO_WEB_FIRESTORE_PROJECT_ID", stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")),
			FirestoreEmulator:  stringWithDefault(lookup, "SARO_WEB_FIRESTORE_EMULATOR_HOST", ""),
			Collection:         stringWithDefault(lookup, "SARO_WEB_FIRESTORE_COLLECTION", ""),
			PostgresDSN:        stringWithDefault(lookup, "SARO_WEB_POSTGRES_DSN", ""),
		},
		Views: ViewConfig{
			LoadDelay:  durationWithDefault(lookup, "SARO_WEB_LOAD_DELAY", defaultLoadDelay),
			IdleTTL:    durationWithDefault(lookup, "SARO_WEB_VIEW_IDLE_TTL", defaultViewIdleTTL),
			PendingTTL: durationWithDefault(lookup, "SARO_WEB_VIEW_PENDING_TTL", defaultViewPending),
			MaxViews:   intWithDefault(lookup, "SARO_WEB_VIEW_MAX", defaultMaxViews),
		},
		Session: SessionConfig{
			SigningKey: stringWithDefault(lookup, "SARO_WEB_SESSION_SIGNING_KEY", ""),
			Secure:     env == "prod",
		},
		Analytics: AnalyticsConfig{
			GA4MeasurementID: stringWithDefault(lookup, "SARO_WEB_GA_MEASUREMENT_ID", ""),
			Debug:            boolWithDefault(lookup, "SARO_WEB_ANALYTICS_DEBUG", false),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var fields []string
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		fields = append(fields, "Server.Port")
	}
	switch cfg.Catalog.Source {
	case SourceStatic:
	case SourceFirestore:
		if cfg.Catalog.FirestoreProjectID == "" {
			fields = append(fields, "Catalog.FirestoreProjectID")
		}
	case SourcePostgres:
		if cfg.Catalog.PostgresDSN == "" {
			fields = append(fields, "Catalog.PostgresDSN")
		}
	default:
		fields = append(fields, "Catalog.Source")
	}
	if cfg.Views.LoadDelay <= 0 {
		fields = append(fields, "Views.LoadDelay")
	}
	if cfg.Views.IdleTTL <= 0 {
		fields = append(fields, "Views.IdleTTL")
	}
	if cfg.Views.PendingTTL <= 0 {
		fields = append(fields, "Views.PendingTTL")
	}
	if cfg.Views.MaxViews <= 0 {
		fields = append(fields, "Views.MaxViews")
	}
	if cfg.Server.IsProd() && cfg.Session.SigningKey == "" {
		fields = append(fields, "Session.SigningKey")
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
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
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
