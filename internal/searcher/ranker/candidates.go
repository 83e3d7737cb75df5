package ranker

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
)

// candidateSet is the union of the query terms' postings.
type candidateSet struct {
	bitmap *roaring.Bitmap
	scores []float64
}

func newCandidateSet(snap *index.Snapshot, q index.QueryVector) *candidateSet {
	bm := roaring.New()
	for _, qt := range q.Terms {
		for _, p := range snap.PostingsFor(qt.ID) {
			bm.Add(p.Doc)
		}
	}
	return &candidateSet{
		bitmap: bm,
		scores: make([]float64, bm.GetCardinality()),
	}
}

// slot returns the accumulator index of doc, which must be a candidate.
func (c *candidateSet) slot(doc uint32) int {
	return int(c.bitmap.Rank(doc)) - 1
}

func (c *candidateSet) add(doc uint32, v float64) {
	c.scores[c.slot(doc)] += v
}

// results emits candidates in ascending ordinal order. When positiveOnly is
// set, candidates that accumulated no score are dropped.
func (c *candidateSet) results(snap *index.Snapshot, positiveOnly bool) []ScoredDoc {
	out := make([]ScoredDoc, 0, len(c.scores))
	it := c.bitmap.Iterator()
	for i := 0; it.HasNext(); i++ {
		doc := it.Next()
		if positiveOnly && c.scores[i] <= 0 {
			continue
		}
		out = append(out, ScoredDoc{DocID: snap.DocIDs[doc], Score: c.scores[i]})
	}
	return out
}
