// Package config loads recipe settings from YAML, .env files and the
// environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure returned from Load.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full set of knobs shared by the CLI, the HTTP server and the recipes.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Model       ModelConfig       `yaml:"model"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vectorstore"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint"`
	Splitter    SplitterConfig    `yaml:"splitter"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Server      ServerConfig      `yaml:"server"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error none off"`
}

// ModelConfig selects the chat model, the equivalent of init_chat_model(name, model_provider).
type ModelConfig struct {
	Provider    string  `yaml:"provider" validate:"required,oneof=googleai openai ollama"`
	Name        string  `yaml:"name" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	APIKey      string  `yaml:"-"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider" validate:"required,oneof=googleai openai openai-compatible huggingface ollama"`
	Model    string `yaml:"model" validate:"required"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	APIKey   string `yaml:"-"`
}

type VectorStoreConfig struct {
	Backend    string `yaml:"backend" validate:"required,oneof=memory pgvector redis weaviate"`
	URL        string `yaml:"url" validate:"required_unless=Backend memory"`
	Collection string `yaml:"collection"`
}

type CheckpointConfig struct {
	Backend string        `yaml:"backend" validate:"required,oneof=memory file sqlite redis postgres"`
	DSN     string        `yaml:"dsn" validate:"required_unless=Backend memory"`
	Table   string        `yaml:"table"`
	TTL     time.Duration `yaml:"ttl"`
}

type SplitterConfig struct {
	ChunkSize     int  `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap  int  `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	AddStartIndex bool `yaml:"add_start_index"`
}

type RetrievalConfig struct {
	K int `yaml:"k" validate:"gt=0"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default mirrors the values the recipes were written against.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Model: ModelConfig{
			Provider: "googleai",
			Name:     "gemini-2.5-flash",
		},
		Embedding: EmbeddingConfig{
			Provider: "googleai",
			Model:    "gemini-embedding-001",
		},
		VectorStore: VectorStoreConfig{Backend: "memory", Collection: "ragagents"},
		Checkpoint:  CheckpointConfig{Backend: "memory", Table: "checkpoints"},
		Splitter: SplitterConfig{
			ChunkSize:     1000,
			ChunkOverlap:  200,
			AddStartIndex: true,
		},
		Retrieval: RetrievalConfig{K: 4},
		Server:    ServerConfig{Addr: ":8080"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, any
// .env file in the working directory, and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and returns an error wrapping ErrInvalid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Log.Level, "RAGAGENTS_LOG_LEVEL")
	setString(&cfg.Model.Provider, "RAGAGENTS_MODEL_PROVIDER")
	setString(&cfg.Model.Name, "RAGAGENTS_MODEL")
	setString(&cfg.Model.BaseURL, "RAGAGENTS_MODEL_BASE_URL")
	setString(&cfg.Embedding.Provider, "RAGAGENTS_EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.Model, "RAGAGENTS_EMBEDDING_MODEL")
	setString(&cfg.Embedding.BaseURL, "RAGAGENTS_EMBEDDING_BASE_URL")
	setString(&cfg.VectorStore.Backend, "RAGAGENTS_VECTORSTORE")
	setString(&cfg.VectorStore.URL, "RAGAGENTS_VECTORSTORE_URL")
	setString(&cfg.VectorStore.Collection, "RAGAGENTS_VECTORSTORE_COLLECTION")
	setString(&cfg.Checkpoint.Backend, "RAGAGENTS_CHECKPOINT")
	setString(&cfg.Checkpoint.DSN, "RAGAGENTS_CHECKPOINT_DSN")
	setString(&cfg.Server.Addr, "RAGAGENTS_ADDR")

	if v := os.Getenv("RAGAGENTS_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: RAGAGENTS_TEMPERATURE: %v", ErrInvalid, err)
		}
		cfg.Model.Temperature = f
	}
	if v := os.Getenv("RAGAGENTS_RETRIEVAL_K"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: RAGAGENTS_RETRIEVAL_K: %v", ErrInvalid, err)
		}
		cfg.Retrieval.K = k
	}
	if v := os.Getenv("RAGAGENTS_METRICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: RAGAGENTS_METRICS: %v", ErrInvalid, err)
		}
		cfg.Metrics.Enabled = b
	}

	cfg.Model.APIKey = providerKey(cfg.Model.Provider)
	cfg.Embedding.APIKey = providerKey(cfg.Embedding.Provider)
	return nil
}

func providerKey(provider string) string {
	switch provider {
	case "googleai":
		return os.Getenv("GOOGLE_API_KEY")
	case "openai", "openai-compatible":
		return os.Getenv("OPENAI_API_KEY")
	case "huggingface":
		return os.Getenv("HUGGINGFACEHUB_API_TOKEN")
	}
	return ""
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
