// Package executor runs queries end to end: normalise the text with the
// index's analyzer, resolve the live snapshot, and rank through the query
// cache. It also runs query batches and writes TREC run files.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/tracing"
)

// Index is the part of indexer.Engine the executor reads.
type Index interface {
	Snapshot() *index.Snapshot
	Analyzer() *tokenizer.Analyzer
}

// Request is one query. An empty Model selects the default model.
type Request struct {
	Query string
	K     int
	Model string
}

// SearchResult is the answer to a Request.
type SearchResult struct {
	Query      string             `json:"query"`
	Model      string             `json:"model"`
	K          int                `json:"k"`
	TotalHits  int                `json:"total_hits"`
	Cache      string             `json:"cache"`
	Generation uint64             `json:"generation"`
	Results    []ranker.ScoredDoc `json:"results"`
}

// Options configures an Executor. Zero values fall back to bm25, no upper
// bound on k, the default BM25 parameters and a batch concurrency of 4.
type Options struct {
	DefaultModel     ranker.Kind
	MaxK             int
	Params           ranker.Params
	BatchConcurrency int
	Metrics          *metrics.Metrics
}

// Executor is safe for concurrent use.
type Executor struct {
	index   Index
	cache   *cache.QueryCache
	scorers map[ranker.Kind]ranker.Scorer
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds the scorers once so each request only picks one.
func New(idx Index, qc *cache.QueryCache, opts Options) (*Executor, error) {
	if opts.DefaultModel == "" {
		opts.DefaultModel = ranker.KindBM25
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 4
	}
	scorers := make(map[ranker.Kind]ranker.Scorer, 2)
	for _, kind := range []ranker.Kind{ranker.KindTFIDF, ranker.KindBM25} {
		s, err := ranker.New(kind, opts.Params)
		if err != nil {
			return nil, fmt.Errorf("creating %s scorer: %w", kind, err)
		}
		scorers[kind] = s
	}
	if _, ok := scorers[opts.DefaultModel]; !ok {
		return nil, apperrors.Invalidf("unknown default model %q", opts.DefaultModel)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Executor{
		index:   idx,
		cache:   qc,
		scorers: scorers,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}, nil
}

// Search ranks req against the live snapshot.
func (e *Executor) Search(ctx context.Context, req Request) (*SearchResult, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Emit(ctx, e.logger)
	}()

	kind := ranker.Kind(strings.ToLower(req.Model))
	if kind == "" {
		kind = e.opts.DefaultModel
	}
	res, err := e.search(ctx, req, kind)
	outcome := "error"
	if err == nil {
		outcome = res.Cache
		if len(res.Results) == 0 {
			outcome = "zero_result"
		}
		e.metrics.SearchResultsCount.Observe(float64(len(res.Results)))
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(string(kind), outcome).Inc()
	e.metrics.SearchLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	span.Set("outcome", outcome)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("query executed",
		"query", req.Query,
		"model", res.Model,
		"k", res.K,
		"total_hits", res.TotalHits,
		"results", len(res.Results),
		"cache", res.Cache,
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Executor) search(ctx context.Context, req Request, kind ranker.Kind) (*SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.Invalidf("query text is empty")
	}
	if req.K <= 0 {
		return nil, apperrors.Invalidf("k must be positive, got %d", req.K)
	}
	if e.opts.MaxK > 0 && req.K > e.opts.MaxK {
		return nil, apperrors.Invalidf("k %d exceeds the maximum of %d", req.K, e.opts.MaxK)
	}
	scorer, ok := e.scorers[kind]
	if !ok {
		return nil, apperrors.Invalidf("unknown model %q", req.Model)
	}

	_, span := tracing.Start(ctx, "analyze", "")
	terms := e.index.Analyzer().Terms(req.Query)
	span.Set("terms", len(terms))
	span.End()

	snap := e.index.Snapshot()
	if snap == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	res := &SearchResult{
		Query:      req.Query,
		Model:      string(kind),
		K:          req.K,
		Generation: snap.Generation,
		Results:    []ranker.ScoredDoc{},
	}
	if snap.QueryVector(terms).Empty() {
		res.Cache = "none"
		return res, nil
	}

	_, span = tracing.Start(ctx, "rank", "")
	defer span.End()
	key := cache.NewKey(terms, scorer.Name(), req.K)
	ranked, outcome, err := e.cache.GetOrComputeOn(ctx, snap, key, func(s *index.Snapshot) (ranker.RankedResult, error) {
		return ranker.Rank(scorer, s, s.QueryVector(terms), req.K)
	})
	span.Set("cache", outcome.String())
	if err != nil {
		return nil, fmt.Errorf("ranking %q: %w", req.Query, err)
	}
	res.Cache = outcome.String()
	res.TotalHits = ranked.TotalHits
	if len(ranked.Docs) > 0 {
		res.Results = ranked.Docs
	}
	return res, nil
}
