package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.Equal(t, 20, cfg.Sessions.MaxMessages)
	assert.Equal(t, 100, cfg.Sessions.EvictionThreshold)
	assert.Equal(t, 24*60, cfg.Sessions.MaxIdleMinutes)
	assert.Equal(t, 30, cfg.Sessions.IdleAfterMinutes)
	assert.Equal(t, "mock", cfg.Generator.Type)
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
knowledge:
  corpus_path: /srv/shop/faq.txt
  chunk_size: 400
generator:
  type: openai
  openai:
    model: llama3
log:
  format: json
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/shop/faq.txt", cfg.Knowledge.CorpusPath)
	assert.Equal(t, 400, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.True(t, cfg.Knowledge.Watch)
	assert.Equal(t, "openai", cfg.Generator.Type)
	assert.InDelta(t, 0.7, cfg.Generator.Temperature, 1e-6)
	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, "llama3", cfg.Generator.OpenAI.Model)
	assert.Equal(t, 3, cfg.Generator.OpenAI.MaxRetries)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Generator.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Generator.OpenAI.APIKeyEnv)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 32, cfg.Sessions.Shards)
}

func TestLoad_ExplicitZerosKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
knowledge:
  chunk_overlap: 0
  watch: false
generator:
  type: openai
  temperature: 0
  openai:
    max_retries: 0
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Knowledge.ChunkOverlap)
	assert.False(t, cfg.Knowledge.Watch)
	assert.Equal(t, float32(0), cfg.Generator.Temperature)
	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, 0, cfg.Generator.OpenAI.MaxRetries)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.OpenAI.Model)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ASSISTANT_ADDR", "127.0.0.1:9999")
	t.Setenv("ASSISTANT_CORPUS", "/tmp/corpus.txt")
	t.Setenv("ASSISTANT_GENERATOR_TIMEOUT_SECS", "7")
	t.Setenv("ASSISTANT_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "/tmp/corpus.txt", cfg.Knowledge.CorpusPath)
	assert.Equal(t, 7, cfg.Generator.TimeoutSecs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "shop-assistant", "config.yaml"), path)
	assert.FileExists(t, path)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  addr: \":7070\"\n"), 0o644))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 30*time.Second, Seconds(30))
	assert.Equal(t, 24*time.Hour, Minutes(24*60))
}
