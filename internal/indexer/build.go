// Package indexer builds inverted-index snapshots from a corpus and owns the
// live snapshot that searches read. A build partitions documents across
// worker goroutines, indexes each shard independently, then merges the
// partial indexes into one immutable index.Snapshot.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

const cancelCheckInterval = 256

// BuildOptions configures one index build. A zero Workers means
// GOMAXPROCS; a nil Analyzer means the default English analyzer.
type BuildOptions struct {
	Analyzer *tokenizer.Analyzer
	Workers  int
}

// BuildReport summarises a finished build.
type BuildReport struct {
	Documents int           `json:"documents"`
	Skipped   int           `json:"skipped"`
	Terms     int           `json:"terms"`
	Postings  int           `json:"postings"`
	Shards    int           `json:"shards"`
	Duration  time.Duration `json:"duration"`
}

type shardResult struct {
	partial *index.Partial
	skipped int
}

// Build indexes docs into a new Snapshot. Malformed documents (missing id,
// invalid UTF-8, repeated id) are skipped and counted; the first occurrence
// of a repeated id wins. Any worker failure or context cancellation aborts
// the whole build and no Snapshot is returned. The Snapshot's fingerprint,
// generation and build time are left for the caller to set.
func Build(ctx context.Context, docs []corpus.Document, opts BuildOptions) (*index.Snapshot, BuildReport, error) {
	start := time.Now()
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = tokenizer.MustNew(tokenizer.Options{})
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(docs) && len(docs) > 0 {
		workers = len(docs)
	}
	if workers == 0 {
		workers = 1
	}

	router, err := shard.NewRouter(workers)
	if err != nil {
		return nil, BuildReport{}, fmt.Errorf("%w: %v", apperrors.ErrBuildFailure, err)
	}
	shards := shard.Partition(router, docs, func(d corpus.Document) string { return d.ID })

	results := make([]shardResult, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shardDocs := range shards {
		g.Go(func() error {
			res, err := buildShard(gctx, shardDocs, analyzer)
			if err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, BuildReport{}, fmt.Errorf("%w: %w", apperrors.ErrBuildFailure, err)
	}

	partials := make([]*index.Partial, len(results))
	report := BuildReport{Shards: len(results)}
	for i, r := range results {
		partials[i] = r.partial
		report.Skipped += r.skipped
	}
	snap, err := index.Merge(partials)
	if err != nil {
		return nil, BuildReport{}, fmt.Errorf("%w: %v", apperrors.ErrBuildFailure, err)
	}

	report.Documents = snap.CorpusSize()
	report.Terms = snap.NumTerms()
	report.Postings = snap.NumPostings()
	report.Duration = time.Since(start)
	if report.Skipped > 0 {
		slog.Default().With("component", "indexer").Warn("skipped malformed documents",
			"skipped", report.Skipped, "indexed", report.Documents)
	}
	return snap, report, nil
}

func buildShard(ctx context.Context, docs []corpus.Document, analyzer *tokenizer.Analyzer) (res shardResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while indexing: %v", r)
		}
	}()
	res.partial = index.NewPartial()
	for i, d := range docs {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return shardResult{}, err
			}
		}
		if corpus.ValidateDocument(d) != nil {
			res.skipped++
			continue
		}
		if err := res.partial.AddDocument(d.ID, analyzer.Terms(d.Text)); err != nil {
			res.skipped++
		}
	}
	return res, nil
}
