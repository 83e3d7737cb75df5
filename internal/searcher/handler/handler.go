// Package handler exposes the retrieval engine over HTTP: search, index
// rebuild and stats, and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/middleware"
)

// Searcher runs one query.
type Searcher interface {
	Search(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

// Index is the part of indexer.Engine the handler needs.
type Index interface {
	Snapshot() *index.Snapshot
	Rebuild(ctx context.Context, src corpus.Source) (*index.Snapshot, indexer.BuildReport, error)
}

// Handler serves the search API.
type Handler struct {
	searcher   Searcher
	index      Index
	source     corpus.Source
	cache      *cache.QueryCache
	defaultK   int
	rebuilding atomic.Bool
	logger     *slog.Logger
}

// New returns a Handler. source is re-read on every rebuild request; a nil
// source disables the rebuild endpoint.
func New(s Searcher, idx Index, source corpus.Source, qc *cache.QueryCache, defaultK int) *Handler {
	return &Handler{
		searcher: s,
		index:    idx,
		source:   source,
		cache:    qc,
		defaultK: defaultK,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		h.writeError(w, r, apperrors.Invalidf("query parameter 'q' is required"))
		return
	}
	k := h.defaultK
	if raw := q.Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, apperrors.Invalidf("k must be an integer"))
			return
		}
		k = parsed
	}

	result, err := h.searcher.Search(r.Context(), executor.Request{Query: query, K: k, Model: q.Get("model")})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Rebuild re-reads the corpus and publishes a new snapshot. With
// ?async=true it answers 202 at once and builds in the background.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		h.writeError(w, r, apperrors.ErrNoCorpusSource)
		return
	}
	if !h.rebuilding.CompareAndSwap(false, true) {
		h.writeError(w, r, apperrors.ErrRebuildInProgress)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		requestID := middleware.GetRequestID(r)
		go func() {
			defer h.rebuilding.Store(false)
			ctx := logger.WithRequestID(context.Background(), requestID)
			if _, _, err := h.index.Rebuild(ctx, h.source); err != nil {
				logger.FromContext(ctx).Error("background rebuild failed", "error", err)
			}
		}()
		h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "rebuilding"})
		return
	}

	defer h.rebuilding.Store(false)
	snap, report, err := h.index.Rebuild(r.Context(), h.source)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "published",
		"snapshot": snap.Stats(),
		"report":   report,
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap := h.index.Snapshot()
	if snap == nil {
		h.writeError(w, r, apperrors.ErrIndexNotReady)
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	st := h.cache.Stats()
	var hitRate float64
	if total := st.Hits + st.StoreHits + st.Misses + st.Coalesced; total > 0 {
		hitRate = float64(st.Hits+st.StoreHits+st.Coalesced) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":    st,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate drops memory entries and clears the persisted tier.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Purge(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err onto a status code. Server-side failures are logged
// and answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message, "request_id": middleware.GetRequestID(r)})
}

// IndexCheck reports the index as up once a snapshot is live.
func IndexCheck(idx Index) health.Check {
	return func(context.Context) health.ComponentHealth {
		snap := idx.Snapshot()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot published yet"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d serving %d documents", snap.Generation, snap.CorpusSize()),
		}
	}
}
