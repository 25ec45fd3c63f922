package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP and WebSocket listener.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs"`
	WSPingSecs          int    `yaml:"ws_ping_secs"`
	WSReadTimeoutSecs   int    `yaml:"ws_read_timeout_secs"`
	WSWriteTimeoutSecs  int    `yaml:"ws_write_timeout_secs"`
	MaxMessageBytes     int64  `yaml:"max_message_bytes"`
}

// KnowledgeConfig configures corpus loading, chunking and retrieval.
type KnowledgeConfig struct {
	CorpusPath       string `yaml:"corpus_path"`
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	TopK             int    `yaml:"top_k"`
	Watch            bool   `yaml:"watch"`
	SummarySentences int    `yaml:"summary_sentences"`
}

// SessionsConfig configures the in-memory session store.
type SessionsConfig struct {
	Shards            int `yaml:"shards"`
	MaxMessages       int `yaml:"max_messages"`
	EvictionThreshold int `yaml:"eviction_threshold"`
	MaxIdleMinutes    int `yaml:"max_idle_minutes"`
	IdleAfterMinutes  int `yaml:"idle_after_minutes"`
}

// OpenAIGeneratorConfig holds configuration for the OpenAI-compatible generator.
type OpenAIGeneratorConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type        string                 `yaml:"type"`
	MaxTokens   int                    `yaml:"max_tokens"`
	Temperature float32                `yaml:"temperature"`
	TimeoutSecs int                    `yaml:"timeout_secs"`
	OpenAI      *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Generator GeneratorConfig `yaml:"generator"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	// Omitted keys keep their defaults; explicit zeros survive.
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/shop-assistant/config.yaml.
// If neither exists, it writes defaults to ~/.config/shop-assistant/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "shop-assistant", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{
			Addr:                ":8080",
			ShutdownTimeoutSecs: 10,
			WSPingSecs:          30,
			WSReadTimeoutSecs:   60,
			WSWriteTimeoutSecs:  10,
			MaxMessageBytes:     64 * 1024,
		},
		Knowledge: KnowledgeConfig{
			CorpusPath:       "data/knowledge.txt",
			ChunkSize:        1000,
			ChunkOverlap:     200,
			TopK:             3,
			Watch:            true,
			SummarySentences: 3,
		},
		Sessions: SessionsConfig{
			Shards:            32,
			MaxMessages:       20,
			EvictionThreshold: 100,
			MaxIdleMinutes:    24 * 60,
			IdleAfterMinutes:  30,
		},
		Generator: GeneratorConfig{
			Type:        "mock",
			MaxTokens:   500,
			Temperature: 0.7,
			TimeoutSecs: 30,
			OpenAI: &OpenAIGeneratorConfig{
				BaseURL:    "https://api.openai.com/v1",
				APIKeyEnv:  "OPENAI_API_KEY",
				Model:      "gpt-4o-mini",
				MaxRetries: 3,
			},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
	return cfg
}

// applyConfigDefaults replaces blank strings and zero sizes that would
// leave a component unusable.
func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = def.Server.ShutdownTimeoutSecs
	}
	if cfg.Server.WSPingSecs == 0 {
		cfg.Server.WSPingSecs = def.Server.WSPingSecs
	}
	if cfg.Server.WSReadTimeoutSecs == 0 {
		cfg.Server.WSReadTimeoutSecs = def.Server.WSReadTimeoutSecs
	}
	if cfg.Server.WSWriteTimeoutSecs == 0 {
		cfg.Server.WSWriteTimeoutSecs = def.Server.WSWriteTimeoutSecs
	}
	if cfg.Server.MaxMessageBytes == 0 {
		cfg.Server.MaxMessageBytes = def.Server.MaxMessageBytes
	}
	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = def.Knowledge.ChunkSize
	}
	if cfg.Knowledge.TopK == 0 {
		cfg.Knowledge.TopK = def.Knowledge.TopK
	}
	if cfg.Knowledge.SummarySentences == 0 {
		cfg.Knowledge.SummarySentences = def.Knowledge.SummarySentences
	}
	if cfg.Sessions.Shards == 0 {
		cfg.Sessions.Shards = def.Sessions.Shards
	}
	if cfg.Sessions.MaxMessages == 0 {
		cfg.Sessions.MaxMessages = def.Sessions.MaxMessages
	}
	if cfg.Sessions.EvictionThreshold == 0 {
		cfg.Sessions.EvictionThreshold = def.Sessions.EvictionThreshold
	}
	if cfg.Sessions.MaxIdleMinutes == 0 {
		cfg.Sessions.MaxIdleMinutes = def.Sessions.MaxIdleMinutes
	}
	if cfg.Sessions.IdleAfterMinutes == 0 {
		cfg.Sessions.IdleAfterMinutes = def.Sessions.IdleAfterMinutes
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = def.Generator.Type
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = def.Generator.MaxTokens
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = def.Generator.TimeoutSecs
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		if cfg.Generator.OpenAI.BaseURL == "" {
			cfg.Generator.OpenAI.BaseURL = def.Generator.OpenAI.BaseURL
		}
		if cfg.Generator.OpenAI.APIKeyEnv == "" {
			cfg.Generator.OpenAI.APIKeyEnv = def.Generator.OpenAI.APIKeyEnv
		}
		if cfg.Generator.OpenAI.Model == "" {
			cfg.Generator.OpenAI.Model = def.Generator.OpenAI.Model
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// applyEnvOverrides lets deployments adjust a few settings without a file.
func applyEnvOverrides(cfg *AppConfig) {
	cfg.Server.Addr = getEnv("ASSISTANT_ADDR", cfg.Server.Addr)
	cfg.Knowledge.CorpusPath = getEnv("ASSISTANT_CORPUS", cfg.Knowledge.CorpusPath)
	cfg.Generator.Type = getEnv("ASSISTANT_GENERATOR", cfg.Generator.Type)
	cfg.Generator.TimeoutSecs = getEnvInt("ASSISTANT_GENERATOR_TIMEOUT_SECS", cfg.Generator.TimeoutSecs)
	cfg.Log.Level = getEnv("ASSISTANT_LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Seconds converts a *_secs setting into a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Minutes converts a *_minutes setting into a duration.
func Minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
