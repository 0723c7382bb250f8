package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, ":8080", cfg.Server.Addr())
	require.Equal(t, "local", cfg.Server.Environment)
	require.False(t, cfg.Server.DevMode)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Zero(t, cfg.Server.WriteTimeout)
	require.Equal(t, "templates", cfg.Site.TemplatesDir)
	require.Equal(t, "fr", cfg.Site.FallbackLang)
	require.Equal(t, SourceStatic, cfg.Catalog.Source)
	require.Equal(t, time.Second, cfg.Views.LoadDelay)
	require.Equal(t, 10*time.Minute, cfg.Views.IdleTTL)
	require.Equal(t, time.Minute, cfg.Views.PendingTTL)
	require.Equal(t, 10000, cfg.Views.MaxViews)
	require.False(t, cfg.Session.Secure)
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"PORT":                          "9000",
		"SARO_WEB_PORT":                 "9090",
		"SARO_WEB_DEV":                  "yes",
		"SARO_WEB_CATALOG_SOURCE":       "Firestore",
		"SARO_WEB_FIRESTORE_PROJECT_ID": "saro-prod",
		"SARO_WEB_LOAD_DELAY":           "250ms",
		"SARO_WEB_BASE_URL":             "https://saro.example/",
		"SARO_WEB_READ_TIMEOUT":         "not-a-duration",
		"SARO_WEB_VIEW_PENDING_TTL":     "20s",
		"SARO_WEB_VIEW_MAX":             "500",
	}
	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.True(t, cfg.Server.DevMode)
	require.Equal(t, SourceFirestore, cfg.Catalog.Source)
	require.Equal(t, "saro-prod", cfg.Catalog.FirestoreProjectID)
	require.Equal(t, 250*time.Millisecond, cfg.Views.LoadDelay)
	require.Equal(t, "https://saro.example", cfg.Site.BaseURL)
	require.Equal(t, 20*time.Second, cfg.Views.PendingTTL)
	require.Equal(t, 500, cfg.Views.MaxViews)
	require.Equal(t, defaultReadTimeout, cfg.Server.ReadTimeout, "invalid durations fall back to defaults")
}

func TestLoadFallsBackToCloudRunPort(t *testing.T) {
	cfg, err := Load(WithEnvMap(map[string]string{"PORT": "7070"}), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport SARO_WEB_CATALOG_SOURCE=postgres\nSARO_WEB_POSTGRES_DSN=\"postgres://saro@localhost/saro\"\nSARO_WEB_PORT=8181\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"SARO_WEB_PORT": "8282"}))
	require.NoError(t, err)
	require.Equal(t, SourcePostgres, cfg.Catalog.Source)
	require.Equal(t, "postgres://saro@localhost/saro", cfg.Catalog.PostgresDSN)
	require.Equal(t, "8282", cfg.Server.Port, "explicit map wins over .env")
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(WithEnvFile(filepath.Join(t.TempDir(), "absent.env")), WithoutSystemEnv())
	require.NoError(t, err)
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"SARO_WEB_PORT":           "http",
		"SARO_WEB_ENV":            "prod",
		"SARO_WEB_CATALOG_SOURCE": "postgres",
		"SARO_WEB_LOAD_DELAY":     "-1s",
		"SARO_WEB_VIEW_MAX":       "0",
	}
	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.ElementsMatch(t, []string{
		"Server.Port",
		"Catalog.PostgresDSN",
		"Views.LoadDelay",
		"Views.MaxViews",
		"Session.SigningKey",
	}, vErr.Fields())
}

func TestLoadUnknownSource(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{"SARO_WEB_CATALOG_SOURCE": "redis"}), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, []string{"Catalog.Source"}, vErr.Fields())
}
