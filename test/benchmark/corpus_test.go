// Package benchmark contains Go benchmarks for the tokenizer, the parallel
// index build, scoring and the cached search pipeline.
package benchmark

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
)

var vocabulary = []string{
	"distributed", "search", "analytics", "platform", "indexing", "query",
	"engine", "ranking", "retrieval", "posting", "vocabulary", "shard",
	"snapshot", "cache", "scoring", "document", "corpus", "frequency",
	"inverse", "length", "normalisation", "token", "stemming", "merge",
}

// syntheticCorpus returns n documents of 20 to 60 words drawn from a skewed
// distribution over vocabulary, seeded so runs are comparable.
func syntheticCorpus(n int) []corpus.Document {
	rng := rand.New(rand.NewPCG(42, uint64(n)))
	docs := make([]corpus.Document, n)
	var sb strings.Builder
	for i := range docs {
		sb.Reset()
		words := 20 + rng.IntN(41)
		for w := 0; w < words; w++ {
			idx := rng.IntN(len(vocabulary))
			idx = idx * idx / len(vocabulary)
			sb.WriteString(vocabulary[idx])
			sb.WriteByte(' ')
		}
		docs[i] = corpus.Document{ID: fmt.Sprintf("doc-%06d", i), Text: sb.String()}
	}
	return docs
}

var defaultAnalyzer = tokenizer.MustNew(tokenizer.Options{})
