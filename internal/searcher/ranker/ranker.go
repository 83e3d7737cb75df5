// Package ranker scores documents of an index snapshot against a query. It
// offers a closed set of models, TF-IDF cosine and BM25, behind the Scorer
// interface, and bounded top-k selection with deterministic tie-breaking.
package ranker

import (
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

// ScoredDoc is one ranked document.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// RankedResult is the outcome of one query: at most k documents in
// descending score order, ties by ascending DocID. TotalHits counts every
// document that scored, before the cut to k. A RankedResult is shared by
// cache readers and must not be modified.
type RankedResult struct {
	Docs      []ScoredDoc `json:"docs"`
	TotalHits int         `json:"total_hits"`
}

// Scorer ranks the candidate documents of a query. Score returns one entry
// per candidate in ascending document order; it never considers documents
// that contain none of the query terms.
type Scorer interface {
	// Name identifies the model and its parameters; it is part of cache
	// keys, so two scorers that can disagree must not share a name.
	Name() string
	Score(snap *index.Snapshot, q index.QueryVector) []ScoredDoc
}

// Kind selects a ranking model.
type Kind string

const (
	KindTFIDF Kind = "tfidf"
	KindBM25  Kind = "bm25"
)

// Params carries model parameters. Zero values select the defaults.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams are the usual BM25 settings.
var DefaultParams = Params{K1: 1.2, B: 0.75}

// New returns the Scorer for kind.
func New(kind Kind, params Params) (Scorer, error) {
	switch kind {
	case KindTFIDF:
		return TFIDF{}, nil
	case KindBM25:
		if params.K1 == 0 && params.B == 0 {
			params = DefaultParams
		}
		if params.K1 < 0 || params.B < 0 || params.B > 1 {
			return nil, fmt.Errorf("%w: bm25 parameters k1=%v b=%v out of range", apperrors.ErrInvalidInput, params.K1, params.B)
		}
		return BM25{K1: params.K1, B: params.B}, nil
	default:
		return nil, fmt.Errorf("%w: unknown ranking model %q", apperrors.ErrInvalidInput, kind)
	}
}

// Rank scores q against snap and keeps the best k.
func Rank(s Scorer, snap *index.Snapshot, q index.QueryVector, k int) (RankedResult, error) {
	if k <= 0 {
		return RankedResult{}, apperrors.Invalidf("k must be positive, got %d", k)
	}
	scored := s.Score(snap, q)
	return RankedResult{Docs: TopK(scored, k), TotalHits: len(scored)}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
