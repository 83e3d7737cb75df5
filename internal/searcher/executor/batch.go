package executor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
)

// BatchResult pairs a query with its outcome. Exactly one of Result and
// Err is set.
type BatchResult struct {
	QueryID string
	Result  *SearchResult
	Err     error
}

// Batch runs queries with at most BatchConcurrency in flight. A failing
// query only fails its own BatchResult; the returned slice is in input
// order. The error is non-nil only when ctx ends first, in which case
// unfinished queries carry ctx's error.
func (e *Executor) Batch(ctx context.Context, queries []corpus.Query, k int, model string) ([]BatchResult, error) {
	results := make([]BatchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.BatchConcurrency)

	for i, q := range queries {
		results[i].QueryID = q.ID
		if err := corpus.ValidateQuery(q); err != nil {
			results[i].Err = err
			continue
		}
		if gctx.Err() != nil {
			results[i].Err = gctx.Err()
			continue
		}
		g.Go(func() error {
			res, err := e.Search(gctx, Request{Query: q.Text, K: k, Model: model})
			if err != nil {
				results[i].Err = fmt.Errorf("query %s: %w", q.ID, err)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("batch finished", "queries", len(queries), "failed", failed)
	return results, nil
}
