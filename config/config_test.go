package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/pkg/storage"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0.5, cfg.LLM.Temperature)
	assert.Equal(t, 3000, cfg.LLM.MaxTokens)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxFileSize)
	assert.Equal(t, storage.StorageTypeLocal, cfg.Storage.Type)
	assert.False(t, cfg.Queue.Enabled)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
llm:
  provider: gemini
  model: gemini-1.5-flash
  timeout: 30s
storage:
  type: s3
  s3:
    bucket: from-yaml
export:
  format: json
`), 0o644))

	t.Setenv("AWS_S3_BUCKET_NAME", "from-env")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("QAGEN_LLM_MAX_TOKENS", "1000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "from-env", cfg.Storage.S3.BucketName)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.Equal(t, "json", cfg.Export.Format)
	// untouched sections keep their defaults
	assert.Equal(t, 0.5, cfg.LLM.Temperature)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export:\n  format: csv\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	t.Setenv("QAGEN_LLM_TIMEOUT", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
