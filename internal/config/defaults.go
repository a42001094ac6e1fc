package config

// Load mode values for SearchConfig.LoadMode.
const (
	LoadModeSnippetOnly = "snippet_only"
	LoadModeFullContent = "full_content"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/shiraberu/data/collections.db"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4.1-mini"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 30
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if len(cfg.Providers.Chain) == 0 {
		cfg.Providers.Chain = []string{"brave"}
	}
	if cfg.Providers.Brave.APIKeyEnv == "" {
		cfg.Providers.Brave.APIKeyEnv = "BRAVE_API_KEY"
	}
	if cfg.Providers.Brave.Country == "" {
		cfg.Providers.Brave.Country = "us"
	}
	if cfg.Providers.Brave.SearchLang == "" {
		cfg.Providers.Brave.SearchLang = "en"
	}
	if cfg.Providers.RatePerSecond == 0 {
		cfg.Providers.RatePerSecond = 1.0
	}
	if cfg.Providers.RateBurst == 0 {
		cfg.Providers.RateBurst = 2
	}
	if cfg.Providers.TimeoutSeconds == 0 {
		cfg.Providers.TimeoutSeconds = 10
	}
	if cfg.Search.ResultsPerQuery == 0 {
		cfg.Search.ResultsPerQuery = 5
	}
	if cfg.Search.MaxQueries == 0 {
		cfg.Search.MaxQueries = 3
	}
	if cfg.Search.MaxConcurrency == 0 {
		cfg.Search.MaxConcurrency = 4
	}
	if cfg.Search.LoadMode == "" {
		cfg.Search.LoadMode = LoadModeFullContent
	}
	if cfg.Search.FetchTimeoutSecs == 0 {
		cfg.Search.FetchTimeoutSecs = 15
	}
	if cfg.Search.FetchConcurrency == 0 {
		cfg.Search.FetchConcurrency = 8
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 100
	}
	if cfg.Retrieval.TopKCandidates == 0 {
		cfg.Retrieval.TopKCandidates = 50
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 5
	}
	if cfg.Context.MaxContextChars == 0 {
		cfg.Context.MaxContextChars = 8000
	}
	if cfg.Context.MaxPassagesPerSource == 0 {
		cfg.Context.MaxPassagesPerSource = 2
	}
	if cfg.Collections.TTLMinutes == 0 {
		cfg.Collections.TTLMinutes = 24 * 60
	}
	if cfg.Collections.SweepIntervalMinutes == 0 {
		cfg.Collections.SweepIntervalMinutes = 10
	}
	if cfg.Collections.CacheTTLMinutes == 0 {
		cfg.Collections.CacheTTLMinutes = 15
	}
	if cfg.Collections.CacheSize == 0 {
		cfg.Collections.CacheSize = 128
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "memory"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
}
