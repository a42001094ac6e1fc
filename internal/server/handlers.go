package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/llm"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/pipeline"
	"github.com/hyperjump/shiraberu/internal/storage"
)

type searchRequest struct {
	Queries        []string `json:"queries"`
	CollectionName string   `json:"collection_name,omitempty"`
	SearchType     string   `json:"search_type,omitempty"`
}

type searchResponse struct {
	CollectionName  string `json:"collection_name"`
	DocumentsLoaded int    `json:"documents_loaded"`
	ChunksStored    int    `json:"chunks_stored"`
	CacheHit        bool   `json:"cache_hit"`
	State           string `json:"state"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		s.respondError(w, http.StatusBadRequest, "queries cannot be empty")
		return
	}
	searchType := models.SearchTypeGeneral
	if req.SearchType == string(models.SearchTypeNews) {
		searchType = models.SearchTypeNews
	}
	queries := make([]models.SearchQuery, len(req.Queries))
	for i, q := range req.Queries {
		queries[i] = models.SearchQuery{Text: q}
	}
	s.logger.Debug("search request", zap.Int("queries", len(queries)), zap.String("search_type", string(searchType)))

	build, err := s.pipeline.BuildCollection(r.Context(), queries, searchType, req.CollectionName)
	if err != nil {
		var exhausted *pipeline.ExhaustedError
		if errors.As(err, &exhausted) {
			s.respondError(w, http.StatusBadGateway, exhausted.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := searchResponse{
		DocumentsLoaded: build.DocumentsLoaded,
		ChunksStored:    build.ChunksStored,
		CacheHit:        build.CacheHit,
		State:           string(build.State),
	}
	if build.Collection != nil {
		resp.CollectionName = build.Collection.Name
		if build.CacheHit {
			resp.DocumentsLoaded = build.Collection.DocumentCount
			resp.ChunksStored = build.Collection.ChunkCount
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type passageResponse struct {
	Content   string  `json:"content"`
	SourceURL string  `json:"source_url"`
	Title     string  `json:"title,omitempty"`
	Score     float64 `json:"score"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passages, err := s.pipeline.Retrieve(r.Context(), &req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "collection not found")
			return
		}
		s.logger.Error("retrieve failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]passageResponse, len(passages))
	for i, p := range passages {
		out[i] = passageResponse{
			Content:   p.Chunk.Text,
			SourceURL: p.SourceURL,
			Title:     p.Title,
			Score:     p.Score,
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"passages": out})
}

type generateQueriesRequest struct {
	// Model overrides the server's configured model for this call.
	Model    string        `json:"model,omitempty"`
	Messages []llm.Message `json:"messages,omitempty"`
	Prompt   string        `json:"prompt"`
}

func (s *Server) handleGenerateQueries(w http.ResponseWriter, r *http.Request) {
	var req generateQueriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt cannot be empty")
		return
	}
	s.configMu.RLock()
	maxQueries := s.config.Search.MaxQueries
	s.configMu.RUnlock()

	queries := s.generator.Generate(r.Context(), req.Messages, req.Prompt, maxQueries, req.Model)
	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Text
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"queries": texts})
}

func (s *Server) handleGround(w http.ResponseWriter, r *http.Request) {
	var req generateQueriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt cannot be empty")
		return
	}
	result, err := s.pipeline.Ground(r.Context(), req.Messages, req.Prompt)
	if err != nil {
		var exhausted *pipeline.ExhaustedError
		if errors.As(err, &exhausted) {
			s.respondJSON(w, http.StatusBadGateway, result)
			return
		}
		s.logger.Error("ground failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("list collections failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cols == nil {
		cols = []*models.Collection{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"collections": cols})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("delete collection request", zap.String("collection", name))
	if err := s.pipeline.DeleteCollection(r.Context(), name); err != nil {
		s.logger.Error("delete collection failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"collection": name, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cols, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("status: list collections failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var documents, chunks int
	for _, c := range cols {
		documents += c.DocumentCount
		chunks += c.ChunkCount
	}

	s.configMu.RLock()
	cfg := s.config
	s.configMu.RUnlock()

	resp := map[string]any{
		"collections":    len(cols),
		"documents":      documents,
		"chunks":         chunks,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"config": map[string]any{
			"provider_chain":       cfg.Providers.Chain,
			"load_mode":            cfg.Search.LoadMode,
			"chunk_size":           cfg.Chunking.ChunkSize,
			"chunk_overlap":        cfg.Chunking.ChunkOverlap,
			"alpha":                cfg.Retrieval.AlphaOrDefault(),
			"collection_ttl_min":   cfg.Collections.TTLMinutes,
			"vector_store_backend": cfg.VectorStore.Backend,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
