package cache

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

// ResultStore is the persisted tier behind the in-memory LRU. Keys already
// include the snapshot fingerprint. Get reports a damaged value with an
// error wrapping ErrCacheCorruption.
type ResultStore interface {
	Get(ctx context.Context, key string) (ranker.RankedResult, bool, error)
	Put(ctx context.Context, key string, v ranker.RankedResult) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
	Close() error
}

// storedResult is the persisted form of a RankedResult.
type storedResult struct {
	DocIDs    []string  `cbor:"1,keyasint"`
	Scores    []float64 `cbor:"2,keyasint"`
	TotalHits int       `cbor:"3,keyasint"`
}

func encodeResult(v ranker.RankedResult) ([]byte, error) {
	s := storedResult{
		DocIDs:    make([]string, len(v.Docs)),
		Scores:    make([]float64, len(v.Docs)),
		TotalHits: v.TotalHits,
	}
	for i, d := range v.Docs {
		s.DocIDs[i], s.Scores[i] = d.DocID, d.Score
	}
	return codec.Seal(s)
}

func decodeResult(data []byte) (ranker.RankedResult, error) {
	var s storedResult
	if err := codec.Open(data, &s); err != nil {
		return ranker.RankedResult{}, fmt.Errorf("%w: %v", apperrors.ErrCacheCorruption, err)
	}
	if len(s.DocIDs) != len(s.Scores) {
		return ranker.RankedResult{}, fmt.Errorf("%w: %d ids for %d scores", apperrors.ErrCacheCorruption, len(s.DocIDs), len(s.Scores))
	}
	docs := make([]ranker.ScoredDoc, len(s.DocIDs))
	for i := range docs {
		docs[i] = ranker.ScoredDoc{DocID: s.DocIDs[i], Score: s.Scores[i]}
	}
	return ranker.RankedResult{Docs: docs, TotalHits: s.TotalHits}, nil
}
