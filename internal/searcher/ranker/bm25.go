package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
)

// BM25 is Okapi BM25 with the smoothed idf ln(1 + (N-df+0.5)/(df+0.5)),
// which stays positive for terms in most documents. A query term repeated
// in the query contributes once per occurrence.
type BM25 struct {
	K1 float64
	B  float64
}

func (s BM25) Name() string {
	return string(KindBM25) + "(k1=" + formatFloat(s.K1) + ",b=" + formatFloat(s.B) + ")"
}

func (s BM25) Score(snap *index.Snapshot, q index.QueryVector) []ScoredDoc {
	if q.Empty() {
		return nil
	}
	n := snap.CorpusSize()
	avgdl := snap.AvgDocLength
	cands := newCandidateSet(snap, q)
	for _, qt := range q.Terms {
		list := snap.PostingsFor(qt.ID)
		idf := bm25IDF(n, len(list)) * float64(qt.Freq)
		for _, p := range list {
			tf := float64(p.Freq)
			norm := 1 - s.B
			if avgdl > 0 {
				norm += s.B * float64(snap.DocLens[p.Doc]) / avgdl
			}
			cands.add(p.Doc, idf*tf*(s.K1+1)/(tf+s.K1*norm))
		}
	}
	return cands.results(snap, false)
}

func bm25IDF(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}
