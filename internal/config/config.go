package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// EmbeddingConfig points at an OpenAI-compatible embeddings endpoint.
// Leave URL empty to run without vector search entirely.
type EmbeddingConfig struct {
	URL       string `json:"url"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// GeneratorConfig points at an OpenAI-compatible chat completion
// endpoint used for free-text support responses. Optional.
type GeneratorConfig struct {
	URL              string  `json:"url"`
	Model            string  `json:"model"`
	TimeoutSeconds   int     `json:"timeout_seconds"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float64 `json:"temperature"`
	FailureThreshold int     `json:"failure_threshold"`
	CooldownSeconds  int     `json:"cooldown_seconds"`
}

// EngineConfig holds retrieval and retention tunables.
type EngineConfig struct {
	ChunkSize            int `json:"chunk_size"`
	ChunkOverlap         int `json:"chunk_overlap"`
	MemoryRetrieveLimit  int `json:"memory_retrieve_limit"`
	KnowledgeMaxResults  int `json:"knowledge_max_results"`
	DefaultRetentionDays int `json:"default_retention_days"`
}

type Config struct {
	Server struct {
		Host    string `json:"host"`
		Port    int    `json:"port"`
		Subpath string `json:"subpath"`
	} `json:"server"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	Redis struct {
		Addr       string `json:"addr"`
		Password   string `json:"password"`
		DB         int    `json:"db"`
		TTLSeconds int    `json:"ttl_seconds"`
	} `json:"redis"`
	Qdrant struct {
		URL              string `json:"url"`
		CollectionPrefix string `json:"collection_prefix"`
		APIKey           string `json:"api_key"`
	} `json:"qdrant"`
	Embedding EmbeddingConfig `json:"embedding"`
	Generator GeneratorConfig `json:"generator"`
	Engine    EngineConfig    `json:"engine"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads config.json from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		if c.Postgres.DSN == "" {
			cfgErr = errors.New("postgres.dsn must be set in config")
			return
		}
		c.applyDefaults()
		cfg = &c
	})
	return cfg, cfgErr
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Qdrant.CollectionPrefix == "" {
		c.Qdrant.CollectionPrefix = "haven"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 384 // all-MiniLM-L6-v2
	}
	if c.Generator.TimeoutSeconds == 0 {
		c.Generator.TimeoutSeconds = 20
	}
	if c.Generator.FailureThreshold == 0 {
		c.Generator.FailureThreshold = 3
	}
	if c.Generator.CooldownSeconds == 0 {
		c.Generator.CooldownSeconds = 60
	}
	if c.Redis.TTLSeconds == 0 {
		c.Redis.TTLSeconds = 300
	}
	if c.Engine.ChunkSize == 0 {
		c.Engine.ChunkSize = 500
	}
	if c.Engine.ChunkOverlap == 0 {
		c.Engine.ChunkOverlap = 50
	}
	if c.Engine.MemoryRetrieveLimit == 0 {
		c.Engine.MemoryRetrieveLimit = 5
	}
	if c.Engine.KnowledgeMaxResults == 0 {
		c.Engine.KnowledgeMaxResults = 3
	}
	if c.Engine.DefaultRetentionDays == 0 {
		c.Engine.DefaultRetentionDays = 90
	}
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}
