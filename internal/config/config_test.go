package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"PORT", "SECRET_KEY", "MAX_UPLOAD_MB", "DEFAULT_DPI", "RESULTS_BACKEND", "TESSERACT_CMD"} {
		t.Setenv(k, "")
	}

	c := Load()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, DevSecretKey, c.SecretKey)
	assert.True(t, c.UsingDevSecret())
	assert.Equal(t, 60, c.MaxUploadMB)
	assert.Equal(t, int64(60<<20), c.MaxUploadBytes())
	assert.Equal(t, "uploads", c.UploadFolder)
	assert.Equal(t, "results", c.ResultsFolder)
	assert.Equal(t, 200, c.DefaultDPI)
	assert.Equal(t, 90, c.DefaultJPEGQuality)
	assert.Equal(t, "eng", c.DefaultOCRLang)
	assert.Equal(t, "fs", c.ResultsBackend)
	assert.Empty(t, c.TesseractCmd)
	assert.NoError(t, c.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("RATE_LIMIT_EVERY", "250ms")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("RESULTS_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	c := Load()
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, 5, c.MaxUploadMB)
	assert.Equal(t, 250*time.Millisecond, c.RateLimitEvery)
	assert.True(t, c.SecureCookies)
	assert.Equal(t, "redis", c.ResultsBackend)
	assert.NoError(t, c.Validate())
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET_KEY=from-file\nPORT=7000\n"), 0o644))
	chdir(t, dir)
	t.Setenv("PORT", "9100")
	t.Setenv("SECRET_KEY", "")
	require.NoError(t, os.Unsetenv("SECRET_KEY"))

	c := Load()
	assert.Equal(t, "9100", c.Port)
	assert.Equal(t, "from-file", c.SecretKey)
	assert.False(t, c.UsingDevSecret())
}

func TestInvalidValuesFallBack(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MAX_UPLOAD_MB", "lots")
	t.Setenv("DEFAULT_DPI", "-3")
	t.Setenv("CLEANUP_INTERVAL", "soon")
	t.Setenv("SECURE_COOKIES", "maybe")

	c := Load()
	assert.Equal(t, 60, c.MaxUploadMB)
	assert.Equal(t, 200, c.DefaultDPI)
	assert.Equal(t, 5*time.Minute, c.CleanupInterval)
	assert.False(t, c.SecureCookies)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	base := Load()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dpi bounds inverted", func(c *Config) { c.MinDPI, c.MaxDPI = 600, 36 }},
		{"default dpi out of range", func(c *Config) { c.DefaultDPI = 1000 }},
		{"quality out of range", func(c *Config) { c.DefaultJPEGQuality = 101 }},
		{"gcs without bucket", func(c *Config) { c.ResultsBackend, c.ResultsBucket = "gcs", "" }},
		{"redis without addr", func(c *Config) { c.ResultsBackend, c.RedisAddr = "redis", "" }},
		{"unknown backend", func(c *Config) { c.ResultsBackend = "s3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
