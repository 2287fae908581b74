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
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.EqualValues(t, 20<<20, cfg.MaxUploadBytes)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Zero(t, cfg.AnalysisTimeout)
	assert.Equal(t, "memory", cfg.Preview.Backend)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
port: "9000"
gemini_model: gemini-2.5-pro
session_ttl: 30m
cors_allowed_origins: ["https://a.example"]
preview:
  backend: minio
  endpoint: minio:9000
  bucket: previews
`), 0o600))

	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("ANALYSIS_TIMEOUT", "90s")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 90*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, []string{"https://a.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "minio", cfg.Preview.Backend)
	assert.Equal(t, "us-east-1", cfg.Preview.Region)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxUploadBytes = 0
	cfg.Preview.Backend = "minio"
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_upload_bytes")
	assert.Contains(t, err.Error(), "minio")
	assert.Contains(t, err.Error(), "log_format")
}

func TestRequireGemini(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.RequireGemini())
	cfg.GeminiAPIKey = "k"
	assert.NoError(t, cfg.RequireGemini())
}

func TestTrustProxyFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy)

	t.Setenv("TRUST_PROXY", "true")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
}
