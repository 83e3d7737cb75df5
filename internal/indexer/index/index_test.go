package index

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func partialOf(t *testing.T, docs map[string]string, order []string) *Partial {
	t.Helper()
	p := NewPartial()
	for _, id := range order {
		if err := p.AddDocument(id, strings.Fields(docs[id])); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

var sample = map[string]string{
	"d1": "cat sat",
	"d2": "dog sat",
	"d3": "cats dogs dog",
}

func TestVocabulary(t *testing.T) {
	v := NewVocabulary(0)
	a := v.Add("alpha")
	b := v.Add("beta")
	if again := v.Add("alpha"); again != a {
		t.Errorf("Add is not idempotent: %d != %d", again, a)
	}
	if a != 0 || b != 1 || v.Len() != 2 {
		t.Fatalf("ids %d %d len %d", a, b, v.Len())
	}
	if id, ok := v.Lookup("beta"); !ok || id != b || v.Term(b) != "beta" {
		t.Errorf("Lookup(beta) = %d %v", id, ok)
	}
	if _, ok := v.Lookup("gamma"); ok {
		t.Error("Lookup found unknown term")
	}
	if _, ok := VocabularyFromTerms([]string{"x", "x"}); ok {
		t.Error("duplicate terms accepted")
	}
}

func TestPartialRejectsDuplicateDocument(t *testing.T) {
	p := NewPartial()
	if err := p.AddDocument("d1", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddDocument("d1", []string{"b"}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if p.Len() != 1 {
		t.Errorf("Len = %d", p.Len())
	}
}

func TestMergeIsPartitionIndependent(t *testing.T) {
	single, err := Merge([]*Partial{partialOf(t, sample, []string{"d3", "d1", "d2"})})
	if err != nil {
		t.Fatal(err)
	}
	split, err := Merge([]*Partial{
		partialOf(t, sample, []string{"d2"}),
		partialOf(t, sample, []string{"d3", "d1"}),
	})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(single.Vocab.Terms(), split.Vocab.Terms()) {
		t.Errorf("vocab differs: %q vs %q", single.Vocab.Terms(), split.Vocab.Terms())
	}
	if !reflect.DeepEqual(single.Postings, split.Postings) {
		t.Errorf("postings differ")
	}
	if !reflect.DeepEqual(single.DocIDs, []string{"d1", "d2", "d3"}) {
		t.Errorf("doc ids = %q", single.DocIDs)
	}
	wantTerms := []string{"cat", "sat", "dog", "cats", "dogs"}
	if !reflect.DeepEqual(single.Vocab.Terms(), wantTerms) {
		t.Errorf("terms = %q, want %q", single.Vocab.Terms(), wantTerms)
	}
}

func TestMergeStatistics(t *testing.T) {
	s, err := Merge([]*Partial{partialOf(t, sample, []string{"d1", "d2", "d3"})})
	if err != nil {
		t.Fatal(err)
	}
	if s.CorpusSize() != 3 {
		t.Errorf("CorpusSize = %d", s.CorpusSize())
	}
	if want := 7.0 / 3.0; math.Abs(s.AvgDocLength-want) > 1e-12 {
		t.Errorf("AvgDocLength = %v, want %v", s.AvgDocLength, want)
	}
	dog, _ := s.Vocab.Lookup("dog")
	want := PostingList{{Doc: 1, Freq: 1}, {Doc: 2, Freq: 1}}
	if got := s.PostingsFor(dog); !reflect.DeepEqual(got, want) {
		t.Errorf("postings(dog) = %v", got)
	}
	if s.DocFreq(dog) != 2 {
		t.Errorf("DocFreq(dog) = %d", s.DocFreq(dog))
	}
	for id, list := range s.Postings {
		if !list.Sorted() {
			t.Errorf("postings for %q not sorted", s.Vocab.Term(TermID(id)))
		}
	}

	// d1 = cat sat: cat idf ln(3), sat idf ln(3/2).
	wantNorm := math.Sqrt(math.Pow(math.Log(3), 2) + math.Pow(math.Log(1.5), 2))
	if math.Abs(s.DocNorms[0]-wantNorm) > 1e-12 {
		t.Errorf("DocNorms[0] = %v, want %v", s.DocNorms[0], wantNorm)
	}
}

func TestMergeDetectsOverlappingShards(t *testing.T) {
	_, err := Merge([]*Partial{
		partialOf(t, sample, []string{"d1"}),
		partialOf(t, sample, []string{"d1"}),
	})
	if !errors.Is(err, ErrMergeConflict) {
		t.Fatalf("err = %v, want ErrMergeConflict", err)
	}
}

func TestMergeEmpty(t *testing.T) {
	s, err := Merge(nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.CorpusSize() != 0 || s.AvgDocLength != 0 || s.NumTerms() != 0 {
		t.Errorf("stats = %+v", s.Stats())
	}
}

func TestQueryVector(t *testing.T) {
	s, _ := Merge([]*Partial{partialOf(t, sample, []string{"d1", "d2", "d3"})})
	q := s.QueryVector([]string{"dog", "unicorn", "cat", "dog", "unicorn"})
	if len(q.Terms) != 2 {
		t.Fatalf("terms = %+v", q.Terms)
	}
	if q.Terms[0].Term != "cat" || q.Terms[1].Term != "dog" || q.Terms[1].Freq != 2 {
		t.Errorf("terms = %+v", q.Terms)
	}
	if !reflect.DeepEqual(q.OOV, []string{"unicorn"}) {
		t.Errorf("OOV = %q", q.OOV)
	}
	if !s.QueryVector([]string{"zebra"}).Empty() {
		t.Error("OOV-only vector should be empty")
	}
}
