package indexer

import (
	"cmp"
	"encoding/binary"
	"encoding/hex"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/codec"
)

const fingerprintBytes = 16

// Fingerprint identifies a corpus together with the analyzer that indexes
// it. It covers the document count, every (doc id, text hash) pair in doc
// id order and the analyzer signature, so it does not depend on input order
// and changes whenever any input to the index changes.
func Fingerprint(docs []corpus.Document, analyzer *tokenizer.Analyzer) string {
	type entry struct {
		id  string
		sum codec.Checksum
		pos int
	}
	entries := make([]entry, len(docs))
	for i, d := range docs {
		entries[i] = entry{id: d.ID, sum: codec.Sum([]byte(d.Text)), pos: i}
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.id, b.id); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	h := codec.NewHasher()
	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	writeString(analyzer.Signature())
	binary.LittleEndian.PutUint64(buf[:], uint64(len(docs)))
	h.Write(buf[:])
	for _, e := range entries {
		writeString(e.id)
		h.Write(e.sum[:])
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:fingerprintBytes])
}
