package index

// TermID is the dense integer identifier of a term within one Vocabulary.
type TermID uint32

// Vocabulary is a bijection between term strings and dense TermIDs. IDs are
// assigned in insertion order. It is append-only while an index is being
// built and must not be modified once it belongs to a published Snapshot.
type Vocabulary struct {
	terms []string
	ids   map[string]TermID
}

// NewVocabulary returns an empty Vocabulary with room for sizeHint terms.
func NewVocabulary(sizeHint int) *Vocabulary {
	return &Vocabulary{
		terms: make([]string, 0, sizeHint),
		ids:   make(map[string]TermID, sizeHint),
	}
}

// Add returns the id of term, assigning the next id if it is new.
func (v *Vocabulary) Add(term string) TermID {
	if id, ok := v.ids[term]; ok {
		return id
	}
	id := TermID(len(v.terms))
	v.terms = append(v.terms, term)
	v.ids[term] = id
	return id
}

// Lookup returns the id of term and whether it is known.
func (v *Vocabulary) Lookup(term string) (TermID, bool) {
	id, ok := v.ids[term]
	return id, ok
}

// Term returns the string for id. It panics if id is out of range.
func (v *Vocabulary) Term(id TermID) string {
	return v.terms[id]
}

// Len returns the number of distinct terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Terms returns the terms in id order. The slice is shared; callers must not
// modify it.
func (v *Vocabulary) Terms() []string {
	return v.terms
}

// VocabularyFromTerms rebuilds a Vocabulary whose ids are the slice indices.
// It reports false if terms contains a duplicate.
func VocabularyFromTerms(terms []string) (*Vocabulary, bool) {
	v := NewVocabulary(len(terms))
	for _, t := range terms {
		if _, dup := v.ids[t]; dup {
			return nil, false
		}
		v.Add(t)
	}
	return v, true
}
