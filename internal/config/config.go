// Package config loads service configuration from a YAML file and the
// environment. Environment variables win over file values, which win over
// defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	VaultPath    string `yaml:"vault_path"`
	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"`

	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`
	QdrantVectorSize int    `yaml:"qdrant_vector_size"`

	LLMBaseURL   string `yaml:"llm_base_url"`
	LLMModelName string `yaml:"llm_model"`
	LLMAPIKey    string `yaml:"llm_api_key"`

	EmbeddingBaseURL   string `yaml:"embedding_base_url"`
	EmbeddingModelName string `yaml:"embedding_model"`

	RerankBaseURL   string `yaml:"rerank_base_url"`
	RerankModelName string `yaml:"rerank_model"`
	RerankEnabled   bool   `yaml:"rerank_enabled"`

	APIPort string `yaml:"api_port"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	BM25K          int     `yaml:"bm25_k"`
	RetrievalK     int     `yaml:"retrieval_k"`
	BM25Weight     float64 `yaml:"bm25_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	RerankTopN     int     `yaml:"rerank_top_n"`
	MaxLinkedDocs  int     `yaml:"max_linked_docs"`

	RebuildThreshold float64 `yaml:"rebuild_threshold"`

	WatchEnabled  bool          `yaml:"watch_enabled"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	LogLevel  slog.Level `yaml:"-"`
	LogFormat string     `yaml:"log_format"`
}

// Load reads configuration and validates required fields. A .env file in
// the working directory is loaded first when present; a YAML file named by
// CEREBRO_CONFIG overlays the defaults; explicit environment variables win
// over both.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:             "./data/cerebro.db",
		SnapshotPath:       "./data/snapshot.json",
		QdrantURL:          "http://localhost:6333",
		QdrantCollection:   "notes",
		LLMBaseURL:         "http://localhost:8080",
		LLMModelName:       "Llama-3.1-8B-Instruct",
		LLMAPIKey:          "dummy-key",
		EmbeddingBaseURL:   "http://localhost:8081",
		EmbeddingModelName: "granite-embedding-278m-multilingual",
		RerankModelName:    "jina-reranker-v2-base-multilingual",
		APIPort:            "9000",
		ChunkSize:          1500,
		ChunkOverlap:       300,
		BM25K:              5,
		RetrievalK:         12,
		BM25Weight:         0.4,
		SemanticWeight:     0.6,
		RerankTopN:         6,
		MaxLinkedDocs:      5,
		RebuildThreshold:   0.5,
		WatchDebounce:      2 * time.Second,
		LogLevel:           slog.LevelInfo,
		LogFormat:          "text",
	}

	if path := os.Getenv("CEREBRO_CONFIG"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.VaultPath == "" {
		return nil, fmt.Errorf("VAULT_PATH is required")
	}
	if cfg.QdrantVectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required and must be greater than 0")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}
	if cfg.BM25Weight < 0 || cfg.SemanticWeight < 0 {
		return nil, fmt.Errorf("retrieval weights must not be negative")
	}
	if cfg.BM25Weight == 0 && cfg.SemanticWeight == 0 {
		return nil, fmt.Errorf("at least one retrieval weight must be greater than 0")
	}

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// loadYAML overlays configuration from a YAML file.
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	// Values like ${HOME}/vault are expanded before parsing.
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto the config.
func applyEnv(cfg *Config) {
	setString(&cfg.VaultPath, "VAULT_PATH")
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.SnapshotPath, "SNAPSHOT_PATH")
	setString(&cfg.QdrantURL, "QDRANT_URL")
	setString(&cfg.QdrantCollection, "QDRANT_COLLECTION")
	setInt(&cfg.QdrantVectorSize, "QDRANT_VECTOR_SIZE")
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModelName, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.EmbeddingBaseURL, "EMBEDDING_BASE_URL")
	setString(&cfg.EmbeddingModelName, "EMBEDDING_MODEL_NAME")
	setString(&cfg.RerankBaseURL, "RERANK_BASE_URL")
	setString(&cfg.RerankModelName, "RERANK_MODEL")
	setBool(&cfg.RerankEnabled, "RERANK_ENABLED")
	setString(&cfg.APIPort, "API_PORT")
	setInt(&cfg.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.ChunkOverlap, "CHUNK_OVERLAP")
	setInt(&cfg.BM25K, "BM25_K")
	setInt(&cfg.RetrievalK, "RETRIEVAL_K")
	setFloat(&cfg.BM25Weight, "BM25_WEIGHT")
	setFloat(&cfg.SemanticWeight, "SEMANTIC_WEIGHT")
	setInt(&cfg.RerankTopN, "RERANK_TOP_N")
	setInt(&cfg.MaxLinkedDocs, "MAX_LINKED_DOCS")
	setFloat(&cfg.RebuildThreshold, "REBUILD_THRESHOLD")
	setBool(&cfg.WatchEnabled, "WATCH_ENABLED")
	setDuration(&cfg.WatchDebounce, "WATCH_DEBOUNCE")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
}

// parseLogLevel maps a level name to a slog level. Unknown names fall back
// to info.
func parseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
