package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/filingrag/chunking"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/ingestion"
	"github.com/poiesic/filingrag/retrieval"
	"github.com/poiesic/filingrag/storage"
)

// maxBodyBytes bounds JSON request bodies, which may carry whole documents.
const maxBodyBytes = 32 << 20

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	Text       string            `json:"text"`
	Strategy   chunking.Strategy `json:"strategy,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetrieveResponse is the body returned by GET /api/retrieve.
type RetrieveResponse struct {
	Collection string      `json:"collection"`
	Query      string      `json:"query"`
	Results    []*core.Hit `json:"results"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	result, err := s.system.Pipeline().Process(r.Context(), symbol)
	if err != nil {
		s.log.Error("Processing failed", "symbol", symbol, "err", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := req.Collection
	if name == "" {
		name = s.system.Config().Retrieval.Collection
	}
	collection, err := s.system.Index().Collection(name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := collection.IngestText(r.Context(), req.Text, req.Strategy, req.Metadata)
	if err != nil {
		s.log.Error("Ingestion failed", "collection", name, "err", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	cfg := s.system.Config()

	k := cfg.Retrieval.TopK
	if v := params.Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, "k must be an integer", http.StatusBadRequest)
			return
		}
		k = n
	}

	name := params.Get("collection")
	if name == "" {
		name = cfg.Retrieval.Collection
	}
	collection, err := s.system.Index().Collection(name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var filter map[string]string
	if symbol := params.Get("symbol"); symbol != "" {
		normalized, err := core.NormalizeSymbol(symbol)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = map[string]string{core.MetaSymbol: normalized}
	}

	query := params.Get("q")
	hits, err := collection.Search(r.Context(), query, k, filter)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, &RetrieveResponse{Collection: name, Query: query, Results: hits})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req ingestion.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.K == 0 {
		req.K = s.system.Config().Retrieval.AnalysisTopK
	}

	resp, err := s.system.Analyzer().Analyze(r.Context(), req)
	if err != nil {
		s.log.Error("Analysis failed", "symbol", req.Symbol, "err", err)
		if resp == nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.system.Index().Stats(r.Context())
	if err != nil {
		jsonError(w, "failed to read stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.system.Index().DeleteCollection(r.Context(), name); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var fetchErr *core.FetchError
	var embedErr *core.EmbeddingError
	var parseErr *core.ParseError
	switch {
	case errors.Is(err, core.ErrInvalidSymbol),
		errors.Is(err, core.ErrInvalidCollection),
		errors.Is(err, core.ErrEmptyContent),
		errors.Is(err, chunking.ErrUnknownStrategy),
		errors.Is(err, retrieval.ErrInvalidK),
		errors.Is(err, retrieval.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFilingNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingestion.ErrNoContent), errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr), errors.As(err, &embedErr):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrStorageClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
