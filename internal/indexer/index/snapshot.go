package index

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Snapshot is a complete, read-only inverted index over one corpus. Once a
// Snapshot is published it is never modified, so any number of goroutines
// may read it without locking. Document ordinals follow ascending doc id.
type Snapshot struct {
	Vocab    *Vocabulary
	Postings []PostingList
	DocIDs   []string
	DocLens  []uint32
	// DocNorms holds the L2 norm of each document's tf·idf vector.
	DocNorms     []float64
	AvgDocLength float64

	Fingerprint string
	Generation  uint64
	BuiltAt     time.Time
}

// NewSnapshot assembles a Snapshot and derives the corpus statistics.
// postings must be indexed by TermID of vocab and sorted.
func NewSnapshot(vocab *Vocabulary, postings []PostingList, docIDs []string, docLens []uint32) *Snapshot {
	s := &Snapshot{
		Vocab:    vocab,
		Postings: postings,
		DocIDs:   docIDs,
		DocLens:  docLens,
	}
	var total uint64
	for _, l := range docLens {
		total += uint64(l)
	}
	if len(docLens) > 0 {
		s.AvgDocLength = float64(total) / float64(len(docLens))
	}
	s.DocNorms = s.computeNorms()
	return s
}

func (s *Snapshot) computeNorms() []float64 {
	sq := make([]float64, len(s.DocIDs))
	n := s.CorpusSize()
	for _, list := range s.Postings {
		idf := IDF(n, len(list))
		if idf == 0 {
			continue
		}
		for _, p := range list {
			w := float64(p.Freq) * idf
			sq[p.Doc] += w * w
		}
	}
	for i := range sq {
		sq[i] = math.Sqrt(sq[i])
	}
	return sq
}

// IDF is the tf·idf inverse document frequency ln(n/df). It is zero for a
// term absent from the corpus.
func IDF(n, df int) float64 {
	if df <= 0 || n <= 0 {
		return 0
	}
	return math.Log(float64(n) / float64(df))
}

// CorpusSize is the number of indexed documents.
func (s *Snapshot) CorpusSize() int {
	return len(s.DocIDs)
}

// NumTerms is the vocabulary size.
func (s *Snapshot) NumTerms() int {
	return s.Vocab.Len()
}

// PostingsFor returns the postings of id.
func (s *Snapshot) PostingsFor(id TermID) PostingList {
	return s.Postings[id]
}

// DocFreq is the number of documents containing id.
func (s *Snapshot) DocFreq(id TermID) int {
	return len(s.Postings[id])
}

// NumPostings is the total number of (term, document) pairs.
func (s *Snapshot) NumPostings() int {
	n := 0
	for _, l := range s.Postings {
		n += len(l)
	}
	return n
}

// Stats summarises a Snapshot for status endpoints and logs.
type Stats struct {
	Generation   uint64    `json:"generation"`
	Fingerprint  string    `json:"fingerprint"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	Postings     int       `json:"postings"`
	AvgDocLength float64   `json:"avg_doc_length"`
	BuiltAt      time.Time `json:"built_at"`
}

// Stats returns the Snapshot's summary.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Generation:   s.Generation,
		Fingerprint:  s.Fingerprint,
		Documents:    s.CorpusSize(),
		Terms:        s.NumTerms(),
		Postings:     s.NumPostings(),
		AvgDocLength: s.AvgDocLength,
		BuiltAt:      s.BuiltAt,
	}
}

// QueryTerm is one in-vocabulary query term with its query frequency.
type QueryTerm struct {
	ID   TermID
	Term string
	Freq int
}

// QueryVector is a query resolved against one Snapshot's vocabulary. Terms
// are ordered by ID so scoring sums in a fixed order.
type QueryVector struct {
	Terms []QueryTerm
	OOV   []string
}

// Empty reports whether no query term is in the vocabulary.
func (q QueryVector) Empty() bool {
	return len(q.Terms) == 0
}

// QueryVector counts terms and resolves them to TermIDs. Terms missing from
// the vocabulary are recorded in OOV and otherwise ignored.
func (s *Snapshot) QueryVector(terms []string) QueryVector {
	var q QueryVector
	pos := make(map[TermID]int, len(terms))
	oov := make(map[string]struct{})
	for _, t := range terms {
		id, ok := s.Vocab.Lookup(t)
		if !ok {
			if _, seen := oov[t]; !seen {
				oov[t] = struct{}{}
				q.OOV = append(q.OOV, t)
			}
			continue
		}
		if i, ok := pos[id]; ok {
			q.Terms[i].Freq++
			continue
		}
		pos[id] = len(q.Terms)
		q.Terms = append(q.Terms, QueryTerm{ID: id, Term: t, Freq: 1})
	}
	slices.SortFunc(q.Terms, func(a, b QueryTerm) int { return cmp.Compare(a.ID, b.ID) })
	return q
}
