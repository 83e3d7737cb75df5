package segment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

// Exists reports whether a snapshot file for fingerprint is present.
func (s *Store) Exists(fingerprint string) bool {
	if validFingerprint(fingerprint) != nil {
		return false
	}
	_, err := os.Stat(s.Path(fingerprint))
	return err == nil
}

// Load reads the snapshot stored for fingerprint. A missing file yields an
// error wrapping os.ErrNotExist; a damaged file wraps ErrCorrupt; a file
// whose payload names another corpus wraps ErrSnapshotMismatch. The
// returned Snapshot has generation zero.
func (s *Store) Load(fingerprint string) (*index.Snapshot, error) {
	if err := validFingerprint(fingerprint); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(fingerprint))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	hb := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, hb); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorrupt, err)
	}
	header, err := decodeHeader(hb)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if uint64(info.Size()-int64(HeaderSize)) != header.PayloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d",
			ErrCorrupt, info.Size()-int64(HeaderSize), header.PayloadSize)
	}

	compressed := make([]byte, header.PayloadSize)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrCorrupt, err)
	}
	if header.UncompressedSize == 0 || header.UncompressedSize > maxUncompressedSize {
		return nil, fmt.Errorf("%w: implausible uncompressed size %d", ErrCorrupt, header.UncompressedSize)
	}
	if codec.Sum(compressed) != header.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	raw, err := codec.Decompress(compressed, int(header.UncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var p payload
	if err := codec.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrCorrupt, err)
	}
	if p.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: file holds %s, wanted %s", apperrors.ErrSnapshotMismatch, p.Fingerprint, fingerprint)
	}

	snap, err := fromPayload(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	s.logger.Info("snapshot loaded",
		"fingerprint", fingerprint,
		"docs", snap.CorpusSize(),
		"terms", snap.NumTerms(),
	)
	return snap, nil
}

func fromPayload(p payload) (*index.Snapshot, error) {
	vocab, ok := index.VocabularyFromTerms(p.Terms)
	if !ok {
		return nil, errors.New("duplicate term in vocabulary")
	}
	if len(p.Postings) != len(p.Terms) {
		return nil, fmt.Errorf("%d postings lists for %d terms", len(p.Postings), len(p.Terms))
	}
	if len(p.DocLens) != len(p.DocIDs) {
		return nil, fmt.Errorf("%d lengths for %d documents", len(p.DocLens), len(p.DocIDs))
	}
	n := uint64(len(p.DocIDs))
	postings := make([]index.PostingList, len(p.Postings))
	for tid, flat := range p.Postings {
		if len(flat)%2 != 0 {
			return nil, fmt.Errorf("term %d: odd postings length", tid)
		}
		list := make(index.PostingList, 0, len(flat)/2)
		var doc uint64
		for i := 0; i < len(flat); i += 2 {
			if i > 0 && flat[i] == 0 {
				return nil, fmt.Errorf("term %d: repeated document", tid)
			}
			doc += uint64(flat[i])
			if doc >= n {
				return nil, fmt.Errorf("term %d: document ordinal %d out of range", tid, doc)
			}
			list = append(list, index.Posting{Doc: uint32(doc), Freq: flat[i+1]})
		}
		postings[tid] = list
	}
	snap := index.NewSnapshot(vocab, postings, p.DocIDs, p.DocLens)
	snap.Fingerprint = p.Fingerprint
	snap.BuiltAt = time.Unix(0, p.BuiltAt).UTC()
	return snap, nil
}
