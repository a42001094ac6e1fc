// Package config provides configuration loading and structs for the Shiraberu server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Search      SearchConfig      `yaml:"search"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Context     ContextConfig     `yaml:"context"`
	Collections CollectionsConfig `yaml:"collections"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the path for the document/chunk database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LLMConfig holds the injected text-generation capability settings.
// The client speaks the OpenAI-compatible chat completions API.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EmbeddingConfig holds the injected embedding capability settings.
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	CacheSize      int    `yaml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ProvidersConfig holds the search provider chain and per-provider settings.
type ProvidersConfig struct {
	// Chain is the ordered failover chain, e.g. ["brave", "searxng"].
	Chain          []string      `yaml:"chain"`
	Brave          BraveConfig   `yaml:"brave"`
	SearxNG        SearxNGConfig `yaml:"searxng"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	APIKeyEnv  string `yaml:"api_key_env"`
	Country    string `yaml:"country"`
	SearchLang string `yaml:"search_lang"`
}

// SearxNGConfig holds SearxNG instance settings.
type SearxNGConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SearchConfig holds search execution and content loading settings.
type SearchConfig struct {
	ResultsPerQuery  int      `yaml:"results_per_query"`
	MaxQueries       int      `yaml:"max_queries"`
	MaxConcurrency   int      `yaml:"max_concurrency"`
	LoadMode         string   `yaml:"load_mode"` // "snippet_only" or "full_content"
	SSLVerify        *bool    `yaml:"ssl_verify"`
	FetchTimeoutSecs int      `yaml:"fetch_timeout_seconds"`
	FetchConcurrency int      `yaml:"fetch_concurrency"`
	AllowedDomains   []string `yaml:"allowed_domains"`
	BlockedDomains   []string `yaml:"blocked_domains"`
}

// SSLVerifyOrDefault reports whether TLS certificates are verified; defaults to true when unset.
func (s *SearchConfig) SSLVerifyOrDefault() bool {
	if s.SSLVerify != nil {
		return *s.SSLVerify
	}
	return true
}

// ChunkingConfig holds chunk splitting settings (in characters).
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds hybrid retrieval settings.
type RetrievalConfig struct {
	Alpha          *float64 `yaml:"alpha"`
	TopKCandidates int      `yaml:"top_k_candidates"`
	DefaultK       int      `yaml:"default_k"`
}

// AlphaOrDefault returns the semantic/keyword blend weight; defaults to 0.5
// when unset. An explicit 0 means keyword-only retrieval.
func (r *RetrievalConfig) AlphaOrDefault() float64 {
	if r.Alpha != nil {
		return *r.Alpha
	}
	return 0.5
}

// ContextConfig holds context assembly settings.
type ContextConfig struct {
	MaxContextChars      int `yaml:"max_context_chars"`
	MaxPassagesPerSource int `yaml:"max_passages_per_source"`
}

// CollectionsConfig holds collection lifecycle and cache settings.
type CollectionsConfig struct {
	TTLMinutes           int `yaml:"ttl_minutes"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	CacheTTLMinutes      int `yaml:"cache_ttl_minutes"`
	CacheSize            int `yaml:"cache_size"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Backend string       `yaml:"backend"` // "memory" or "qdrant"
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds qdrant gRPC connection settings.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
