// Package index holds the in-memory inverted index: the term vocabulary,
// postings lists, the per-shard partial indexes produced by build workers
// and the immutable Snapshot that searches run against.
package index

import "fmt"

// TermCount is one distinct term of a document and its frequency there.
type TermCount struct {
	Term uint32
	Freq uint32
}

// Partial is the index one build worker produces for its shard. Term and
// document ids are local to the Partial; the merge step remaps both. A
// Partial is owned by a single goroutine and is not safe for concurrent use.
type Partial struct {
	Vocab    *Vocabulary
	Postings [][]Posting
	DocIDs   []string
	DocLens  []uint32
	// DocTerms lists each document's distinct terms in order of first
	// occurrence, which fixes global term id assignment during the merge.
	DocTerms [][]TermCount

	seen map[string]struct{}
}

// NewPartial returns an empty Partial.
func NewPartial() *Partial {
	return &Partial{
		Vocab: NewVocabulary(1024),
		seen:  make(map[string]struct{}),
	}
}

// AddDocument indexes the normalised terms of document id. It returns an
// error if id was already added to this Partial.
func (p *Partial) AddDocument(id string, terms []string) error {
	if _, dup := p.seen[id]; dup {
		return fmt.Errorf("duplicate document id %q", id)
	}
	p.seen[id] = struct{}{}

	doc := uint32(len(p.DocIDs))
	counts := make(map[TermID]int, len(terms))
	order := make([]TermCount, 0, len(terms))
	for _, term := range terms {
		tid := p.Vocab.Add(term)
		if i, ok := counts[tid]; ok {
			order[i].Freq++
			continue
		}
		counts[tid] = len(order)
		order = append(order, TermCount{Term: uint32(tid), Freq: 1})
	}

	for _, tc := range order {
		for int(tc.Term) >= len(p.Postings) {
			p.Postings = append(p.Postings, nil)
		}
		p.Postings[tc.Term] = append(p.Postings[tc.Term], Posting{Doc: doc, Freq: tc.Freq})
	}
	p.DocIDs = append(p.DocIDs, id)
	p.DocLens = append(p.DocLens, uint32(len(terms)))
	p.DocTerms = append(p.DocTerms, order)
	return nil
}

// Len returns the number of documents added.
func (p *Partial) Len() int {
	return len(p.DocIDs)
}
