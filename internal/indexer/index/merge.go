package index

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrMergeConflict reports a (term, document) pair contributed twice, which
// means the shards were not disjoint.
var ErrMergeConflict = errors.New("duplicate posting in merge")

type docRef struct {
	id    string
	part  int
	local uint32
}

// Merge combines disjoint partial indexes into one Snapshot. Documents get
// ordinals by ascending id; global term ids are assigned in first-seen order
// walking documents by ordinal and each document's terms in text order. The
// result is therefore independent of how documents were partitioned.
func Merge(parts []*Partial) (*Snapshot, error) {
	total := 0
	for _, p := range parts {
		total += p.Len()
	}

	refs := make([]docRef, 0, total)
	for pi, p := range parts {
		for li, id := range p.DocIDs {
			refs = append(refs, docRef{id: id, part: pi, local: uint32(li)})
		}
	}
	slices.SortFunc(refs, func(a, b docRef) int { return cmp.Compare(a.id, b.id) })

	docIDs := make([]string, total)
	docLens := make([]uint32, total)
	ordinals := make([][]uint32, len(parts))
	for pi, p := range parts {
		ordinals[pi] = make([]uint32, p.Len())
	}
	for ord, r := range refs {
		if ord > 0 && refs[ord-1].id == r.id {
			return nil, fmt.Errorf("%w: document %q appears in more than one shard", ErrMergeConflict, r.id)
		}
		docIDs[ord] = r.id
		docLens[ord] = parts[r.part].DocLens[r.local]
		ordinals[r.part][r.local] = uint32(ord)
	}

	termSize := 0
	for _, p := range parts {
		termSize = max(termSize, p.Vocab.Len())
	}
	vocab := NewVocabulary(termSize)
	globalTerm := make([][]TermID, len(parts))
	for pi, p := range parts {
		globalTerm[pi] = make([]TermID, p.Vocab.Len())
	}
	for _, r := range refs {
		p := parts[r.part]
		for _, tc := range p.DocTerms[r.local] {
			globalTerm[r.part][tc.Term] = vocab.Add(p.Vocab.Term(TermID(tc.Term)))
		}
	}

	postings := make([]PostingList, vocab.Len())
	for pi, p := range parts {
		for local, list := range p.Postings {
			gid := globalTerm[pi][local]
			for _, posting := range list {
				postings[gid] = append(postings[gid], Posting{
					Doc:  ordinals[pi][posting.Doc],
					Freq: posting.Freq,
				})
			}
		}
	}
	for gid, list := range postings {
		slices.SortFunc(list, func(a, b Posting) int { return cmp.Compare(a.Doc, b.Doc) })
		for i := 1; i < len(list); i++ {
			if list[i].Doc == list[i-1].Doc {
				return nil, fmt.Errorf("%w: term %q document %q", ErrMergeConflict,
					vocab.Term(TermID(gid)), docIDs[list[i].Doc])
			}
		}
	}

	return NewSnapshot(vocab, postings, docIDs, docLens), nil
}
