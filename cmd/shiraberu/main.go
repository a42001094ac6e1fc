// Package main is the Shiraberu CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/shiraberu/internal/assembler"
	"github.com/hyperjump/shiraberu/internal/chunker"
	"github.com/hyperjump/shiraberu/internal/cli"
	"github.com/hyperjump/shiraberu/internal/collections"
	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/llm"
	"github.com/hyperjump/shiraberu/internal/loader"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/pipeline"
	"github.com/hyperjump/shiraberu/internal/provider"
	"github.com/hyperjump/shiraberu/internal/querygen"
	"github.com/hyperjump/shiraberu/internal/retriever"
	"github.com/hyperjump/shiraberu/internal/server"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vectorstore"
	"github.com/hyperjump/shiraberu/internal/watcher"
	"github.com/hyperjump/shiraberu/internal/websearch"
	"github.com/hyperjump/shiraberu/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiraberu/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "shiraberu server" from the project dir uses the project's config.
// Returns the config and the path that was actually loaded (for hot reload, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ground":
		runGround()
	case "retrieve":
		runRetrieve()
	case "collections":
		runCollections()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shiraberu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (pipeline stages, provider failover, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	components.Registry.Start()
	defer components.Registry.Stop()

	srv := server.NewServer(
		components.Pipeline,
		components.Registry,
		components.Generator,
		components.Filter,
		cfg,
		logger,
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	cfgWatcher := watcher.NewConfigWatcher(resolvedConfigPath, srv.ApplyConfig, logger)
	if err := cfgWatcher.Start(watchCtx); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	} else {
		defer cfgWatcher.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildPrompt joins all positional args with spaces so multi-word prompts
// work the same with or without shell quoting.
func buildPrompt(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front of the slice so that flag.Parse() sees
// them. Go's flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseOutputFormat maps an -output flag value to a cli.OutputFormat,
// exiting on unknown values.
func parseOutputFormat(value string) cli.OutputFormat {
	switch value {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", value)
		os.Exit(1)
		return cli.OutputText
	}
}

func runGround() {
	groundArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ground", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(groundArgs)

	prompt := buildPrompt(fs.Args())
	if prompt == "" {
		fmt.Println("Usage: shiraberu ground [flags] <prompt>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	body, _ := json.Marshal(map[string]string{"prompt": prompt})
	resp, err := http.Post(*serverURL+"/api/v1/ground", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	// 502 still carries a grounding result with any partial context.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadGateway {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Ground failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var result pipeline.GroundResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteGroundResult(os.Stdout, &result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode == http.StatusBadGateway {
		fmt.Fprintln(os.Stderr, "Warning: all search providers exhausted")
		os.Exit(1)
	}
}

func runRetrieve() {
	retrieveArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	collection := fs.String("collection", "", "collection name (required)")
	k := fs.Int("k", 0, "number of passages (0 = server default)")
	alpha := fs.Float64("alpha", -1, "semantic/keyword blend 0..1 (-1 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(retrieveArgs)

	query := buildPrompt(fs.Args())
	if query == "" || *collection == "" {
		fmt.Println("Usage: shiraberu retrieve --collection <name> [flags] <query>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	req := models.RetrieveRequest{
		CollectionName: *collection,
		Query:          query,
		K:              *k,
	}
	if *alpha >= 0 {
		req.Alpha = alpha
	}
	body, _ := json.Marshal(req)
	resp, err := http.Post(*serverURL+"/api/v1/retrieve", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Retrieve failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Passages []cli.Passage `json:"passages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WritePassages(os.Stdout, out.Passages, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runCollections() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: shiraberu collections <list|delete> [name]")
		fmt.Println("  shiraberu collections list           List active collections")
		fmt.Println("  shiraberu collections delete <name>  Delete a collection")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/collections")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Collections []*models.Collection `json:"collections"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		if len(out.Collections) == 0 {
			fmt.Println("No active collections.")
			return
		}
		for _, c := range out.Collections {
			fmt.Printf("%s  documents=%d chunks=%d expires=%s\n",
				c.Name, c.DocumentCount, c.ChunkCount, c.ExpiresAt.Format(time.RFC3339))
		}
	case "delete":
		if fs.NArg() < 1 {
			fmt.Println("Usage: shiraberu collections delete <name>")
			os.Exit(1)
		}
		name := fs.Arg(0)
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/collections/"+name, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Delete failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Deleted: %s\n", name)
	default:
		fmt.Printf("Unknown collections subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for _, key := range []string{"collections", "documents", "chunks", "uptime_seconds", "disk_usage_bytes"} {
			if v, ok := status[key]; ok {
				fmt.Printf("%-18s %v\n", key+":", v)
			}
		}
		if cfg, ok := status["config"].(map[string]any); ok {
			fmt.Println()
			fmt.Println("# configuration")
			for k, v := range cfg {
				fmt.Printf("%-22s %v\n", k+":", v)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Vectors   vectorstore.VectorStore
	Keywords  *vectorstore.KeywordStore
	Embedder  embedding.Embedder
	Registry  *collections.Registry
	Generator *querygen.Generator
	Filter    *websearch.DomainFilter
	Pipeline  *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	vectors, err := vectorstore.New(cfg.VectorStore.Backend, cfg.VectorStore.Qdrant.Host, cfg.VectorStore.Qdrant.Port)
	if err != nil {
		// Fall back to the in-process store when qdrant is unreachable.
		if cfg.VectorStore.Backend != string(vectorstore.BackendMemory) {
			logger.Warn("failed to create vector store, falling back to memory",
				zap.String("requested_backend", cfg.VectorStore.Backend),
				zap.Error(err))
			vectors, err = vectorstore.New(string(vectorstore.BackendMemory), "", 0)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	}
	keywords := vectorstore.NewKeywordStore()

	openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKeyEnv:  cfg.Embedding.APIKeyEnv,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	embedder := embedding.NewCachedEmbedder(openaiEmbedder, cfg.Embedding.CacheSize)

	registry := collections.NewRegistry(store, vectors, keywords, embedder,
		time.Duration(cfg.Collections.TTLMinutes)*time.Minute,
		time.Duration(cfg.Collections.SweepIntervalMinutes)*time.Minute,
		logger)

	llmClient, err := llm.NewOpenAIClient(llm.OpenAIOptions{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  os.Getenv(cfg.LLM.APIKeyEnv),
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	generator := querygen.NewGenerator(llmClient, logger)

	chain, err := buildProviderChain(cfg, logger)
	if err != nil {
		return nil, err
	}

	filter := websearch.NewDomainFilter(cfg.Search.AllowedDomains, cfg.Search.BlockedDomains)
	executor := websearch.NewExecutor(filter,
		time.Duration(cfg.Providers.TimeoutSeconds)*time.Second, logger)

	contentLoader := loader.NewLoader(loader.Options{
		FetchTimeout: time.Duration(cfg.Search.FetchTimeoutSecs) * time.Second,
		Concurrency:  cfg.Search.FetchConcurrency,
		SSLVerify:    cfg.Search.SSLVerifyOrDefault(),
		Logger:       logger,
	})
	splitter := chunker.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)

	hybrid := retriever.NewHybridRetriever(embedder, vectors, keywords, store,
		cfg.Retrieval.TopKCandidates, logger)
	ctxAssembler := assembler.NewAssembler(cfg.Context.MaxContextChars, cfg.Context.MaxPassagesPerSource)

	pipe := pipeline.New(pipeline.Deps{
		Generator: generator,
		Executor:  executor,
		Chain:     chain,
		Loader:    contentLoader,
		Chunker:   splitter,
		Embedder:  embedder,
		Vectors:   vectors,
		Keywords:  keywords,
		Store:     store,
		Registry:  registry,
		Retriever: hybrid,
		Assembler: ctxAssembler,
		Logger:    logger,
	}, pipeline.Options{
		ResultsPerQuery: cfg.Search.ResultsPerQuery,
		MaxQueries:      cfg.Search.MaxQueries,
		MaxConcurrency:  cfg.Search.MaxConcurrency,
		LoadMode:        cfg.Search.LoadMode,
		Alpha:           cfg.Retrieval.AlphaOrDefault(),
		DefaultK:        cfg.Retrieval.DefaultK,
		CacheSize:       cfg.Collections.CacheSize,
		CacheTTL:        time.Duration(cfg.Collections.CacheTTLMinutes) * time.Minute,
	})

	return &Components{
		Storage:   store,
		Vectors:   vectors,
		Keywords:  keywords,
		Embedder:  embedder,
		Registry:  registry,
		Generator: generator,
		Filter:    filter,
		Pipeline:  pipe,
	}, nil
}

// buildProviderChain registers the configured search providers and resolves
// the failover chain. Providers whose credentials are missing are skipped
// with a warning; an empty resulting chain is a startup error.
func buildProviderChain(cfg *config.Config, logger *zap.Logger) ([]provider.SearchProvider, error) {
	registry := provider.NewRegistry()
	limiter := provider.NewRateLimiter(cfg.Providers.RatePerSecond, cfg.Providers.RateBurst)
	timeout := time.Duration(cfg.Providers.TimeoutSeconds) * time.Second

	brave, err := provider.NewBrave(provider.BraveOptions{
		APIKey:     os.Getenv(cfg.Providers.Brave.APIKeyEnv),
		Country:    cfg.Providers.Brave.Country,
		SearchLang: cfg.Providers.Brave.SearchLang,
		Timeout:    timeout,
	})
	if err != nil {
		logger.Warn("brave provider unavailable", zap.Error(err))
	} else {
		registry.Register(provider.WithRateLimit(brave, limiter))
	}

	if cfg.Providers.SearxNG.BaseURL != "" {
		searxng, err := provider.NewSearxNG(cfg.Providers.SearxNG.BaseURL, timeout)
		if err != nil {
			logger.Warn("searxng provider unavailable", zap.Error(err))
		} else {
			registry.Register(provider.WithRateLimit(searxng, limiter))
		}
	}

	chain := registry.Chain(cfg.Providers.Chain)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable search providers in chain %v", cfg.Providers.Chain)
	}
	ids := make([]string, len(chain))
	for i, p := range chain {
		ids[i] = p.ID()
	}
	logger.Info("provider chain ready", zap.Strings("providers", ids))
	return chain, nil
}

func printUsage() {
	fmt.Println(`shiraberu - Web search grounding pipeline for LLM context

Usage:
  shiraberu server [flags]                  Start the HTTP server
  shiraberu ground [flags] <prompt>         Decide, search, and assemble cited context
  shiraberu retrieve [flags] <query>        Retrieve passages from a collection
  shiraberu collections <list|delete>       Manage collections
  shiraberu status [flags]                  Show server/collection status
  shiraberu version                         Show version
  shiraberu help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shiraberu/config.yaml)
  --debug            Enable debug logging (pipeline stages, provider failover, etc.)

Ground Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Retrieve Flags:
  --server string      Server URL (default: http://localhost:8080)
  --collection string  Collection name (required)
  --k int              Number of passages (0 = server default)
  --alpha float        Semantic/keyword blend 0..1 (-1 = server default)
  --output string      Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  shiraberu server
  shiraberu ground "what changed in the latest kernel release"
  shiraberu retrieve --collection 3f9a1c "kernel scheduler changes"
  shiraberu collections list
  shiraberu collections delete 3f9a1c
  shiraberu status --output json`)
}
