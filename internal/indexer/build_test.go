package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

func syntheticCorpus(n int) []corpus.Document {
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota", "kappa"}
	r := rand.New(rand.NewPCG(1, 2))
	docs := make([]corpus.Document, n)
	for i := range docs {
		text := ""
		for j := 0; j < 5+r.IntN(20); j++ {
			text += words[r.IntN(len(words))] + " "
		}
		docs[i] = corpus.Document{ID: fmt.Sprintf("doc-%04d", i), Text: text}
	}
	return docs
}

func TestBuildOrderAndWorkerIndependent(t *testing.T) {
	docs := syntheticCorpus(500)
	base, _, err := Build(context.Background(), docs, BuildOptions{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}

	shuffled := append([]corpus.Document(nil), docs...)
	rand.New(rand.NewPCG(3, 4)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for _, workers := range []int{2, 7, 16} {
		got, report, err := Build(context.Background(), shuffled, BuildOptions{Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		if report.Shards != workers {
			t.Errorf("shards = %d, want %d", report.Shards, workers)
		}
		if !reflect.DeepEqual(got.Vocab.Terms(), base.Vocab.Terms()) {
			t.Errorf("workers=%d: vocabulary differs", workers)
		}
		if !reflect.DeepEqual(got.Postings, base.Postings) {
			t.Errorf("workers=%d: postings differ", workers)
		}
		if !reflect.DeepEqual(got.DocIDs, base.DocIDs) || !reflect.DeepEqual(got.DocNorms, base.DocNorms) {
			t.Errorf("workers=%d: document tables differ", workers)
		}
	}
}

func TestBuildSkipsMalformedDocuments(t *testing.T) {
	docs := []corpus.Document{
		{ID: "d1", Text: "the cat sat"},
		{ID: "", Text: "no id"},
		{ID: "d2", Text: "bad \xff utf8"},
		{ID: "d1", Text: "duplicate id loses"},
		{ID: "d3", Text: ""},
	}
	snap, report, err := Build(context.Background(), docs, BuildOptions{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 3 || report.Documents != 2 {
		t.Fatalf("report = %+v", report)
	}
	if !reflect.DeepEqual(snap.DocIDs, []string{"d1", "d3"}) {
		t.Errorf("doc ids = %q", snap.DocIDs)
	}
	if _, ok := snap.Vocab.Lookup("duplicate"); ok {
		t.Error("later duplicate document was indexed")
	}
	if snap.DocLens[1] != 0 {
		t.Errorf("empty document length = %d", snap.DocLens[1])
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Build(ctx, syntheticCorpus(10), BuildOptions{Workers: 2})
	if !errors.Is(err, apperrors.ErrBuildFailure) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	snap, report, err := Build(context.Background(), nil, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if snap.CorpusSize() != 0 || snap.AvgDocLength != 0 || report.Documents != 0 {
		t.Errorf("snap=%+v report=%+v", snap.Stats(), report)
	}
}

func TestFingerprint(t *testing.T) {
	a := tokenizer.MustNew(tokenizer.Options{})
	docs := []corpus.Document{{ID: "d1", Text: "x"}, {ID: "d2", Text: "y"}}
	reversed := []corpus.Document{docs[1], docs[0]}

	fp := Fingerprint(docs, a)
	if len(fp) != 2*fingerprintBytes {
		t.Fatalf("fingerprint %q has wrong length", fp)
	}
	if Fingerprint(reversed, a) != fp {
		t.Error("fingerprint depends on input order")
	}
	changed := []corpus.Document{{ID: "d1", Text: "x"}, {ID: "d2", Text: "z"}}
	if Fingerprint(changed, a) == fp {
		t.Error("fingerprint ignores text changes")
	}
	if Fingerprint(docs[:1], a) == fp {
		t.Error("fingerprint ignores document count")
	}
	if Fingerprint(docs, tokenizer.MustNew(tokenizer.Options{Stemmer: "snowball"})) == fp {
		t.Error("fingerprint ignores analyzer settings")
	}
}
