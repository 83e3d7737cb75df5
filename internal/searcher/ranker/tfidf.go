package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
)

// TFIDF is cosine similarity between tf·idf vectors with idf = ln(N/df).
// Document norms come precomputed with the snapshot. A term present in
// every document has zero weight, so a query made only of such terms
// returns nothing.
type TFIDF struct{}

func (TFIDF) Name() string { return string(KindTFIDF) }

func (TFIDF) Score(snap *index.Snapshot, q index.QueryVector) []ScoredDoc {
	if q.Empty() {
		return nil
	}
	n := snap.CorpusSize()
	weights := make([]float64, len(q.Terms))
	var qnorm float64
	for i, qt := range q.Terms {
		w := float64(qt.Freq) * index.IDF(n, snap.DocFreq(qt.ID))
		weights[i] = w
		qnorm += w * w
	}
	if qnorm == 0 {
		return nil
	}
	qnorm = math.Sqrt(qnorm)

	cands := newCandidateSet(snap, q)
	for i, qt := range q.Terms {
		if weights[i] == 0 {
			continue
		}
		idf := index.IDF(n, snap.DocFreq(qt.ID))
		wq := weights[i] / qnorm
		for _, p := range snap.PostingsFor(qt.ID) {
			wd := float64(p.Freq) * idf / snap.DocNorms[p.Doc]
			cands.add(p.Doc, wq*wd)
		}
	}
	return cands.results(snap, true)
}
