// Package httpapi exposes the indexing and retrieval services over a
// JSON HTTP API. Handlers are thin: decode, validate, delegate to the
// driving ports, encode.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driving"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server routes API requests to the driving ports.
type Server struct {
	indexer   driving.IndexService
	querier   driving.QueryService
	documents driving.DocumentService
	version   string
}

// NewServer assembles the API server.
func NewServer(indexer driving.IndexService, querier driving.QueryService, documents driving.DocumentService, version string) *Server {
	return &Server{
		indexer:   indexer,
		querier:   querier,
		documents: documents,
		version:   version,
	}
}

// Handler returns the routed HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/index", s.handleIndex)
	mux.HandleFunc("POST /api/remove-index", s.handleRemoveIndex)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/docs", s.handleDocs)
	mux.HandleFunc("GET /api/manager", s.handleManager)
	mux.HandleFunc("POST /api/update-doc", s.handleUpdateDoc)
	mux.HandleFunc("POST /api/add-doc", s.handleAddDoc)
	mux.HandleFunc("POST /api/git-pull", s.handleGitPull)
	mux.HandleFunc("GET /api/get-version", s.handleGetVersion)
	return cors(mux)
}

// ListenAndServe blocks serving the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	logger.Info("listening on %s", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

// cors allows browser clients from any origin, matching the original
// deployment model of a local tool driven by a web UI.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type indexRequest struct {
	DocID      string   `json:"doc_id"`
	Extensions []string `json:"extensions"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The run keeps going if the client disconnects; a dropped request
	// must not cancel in-flight file tasks mid-rebuild.
	summary, err := s.indexer.Index(context.WithoutCancel(r.Context()), req.DocID, req.Extensions)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "indexing complete",
		"details": summary,
	})
}

type docIDRequest struct {
	DocID string `json:"doc_id"`
}

func (s *Server) handleRemoveIndex(w http.ResponseWriter, r *http.Request) {
	var req docIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.documents.Remove(r.Context(), req.DocID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

type queryRequest struct {
	DocID        string   `json:"doc_id"`
	Query        string   `json:"query"`
	K            int      `json:"k"`
	MinScore     float64  `json:"minScore"`
	IgnoreHashes []string `json:"ignoreHashes"`
}

// scoredPair marshals as the wire pair [candidate, score].
type scoredPair domain.ScoredCandidate

func (p scoredPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Candidate, p.Score})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.querier.Query(r.Context(), req.DocID, req.Query, domain.QueryOptions{
		K:            req.K,
		MinScore:     req.MinScore,
		IgnoreHashes: req.IgnoreHashes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pairs := make([]scoredPair, len(res.Data))
	for i, c := range res.Data {
		pairs[i] = scoredPair(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   pairs,
		"tokens": res.Tokens,
	})
}

type docEntry struct {
	DocID      string    `json:"doc_id"`
	Extensions []string  `json:"extensions"`
	IndexAt    time.Time `json:"indexAt"`
	IsIndexed  bool      `json:"isIndexed"`
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	entries := make([]docEntry, len(docs))
	for i, d := range docs {
		exts := d.Extensions
		if exts == nil {
			exts = []string{}
		}
		entries[i] = docEntry{
			DocID:      d.ID,
			Extensions: exts,
			IndexAt:    d.IndexedAt,
			IsIndexed:  d.IsIndexed,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (s *Server) handleManager(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("doc_id")

	files, err := s.documents.Manifest(r.Context(), docID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if files == nil {
		files = []domain.ManagedFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": files})
}

type updateDocRequest struct {
	DocID   string `json:"doc_id"`
	Content string `json:"content"`
}

func (s *Server) handleUpdateDoc(w http.ResponseWriter, r *http.Request) {
	var req updateDocRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.documents.UpdateAlias(r.Context(), req.DocID, req.Content); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": req.Content})
}

func (s *Server) handleAddDoc(w http.ResponseWriter, r *http.Request) {
	var req docIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.documents.Add(r.Context(), req.DocID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleGitPull(w http.ResponseWriter, r *http.Request) {
	var req docIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := s.documents.GitPull(r.Context(), req.DocID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": s.version})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps domain errors to status codes: bad input and
// unknown documents are client errors, everything else is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDocMissing),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	default:
		logger.Warn("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}
