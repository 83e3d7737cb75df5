package segment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/codec"
)

// Store reads and writes snapshot files in one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore returns a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "snapshot-store", "dir", dir),
	}, nil
}

// Dir returns the directory the Store manages.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for fingerprint.
func (s *Store) Path(fingerprint string) string {
	return filepath.Join(s.dir, FileName(fingerprint))
}

// Save writes snap under its fingerprint. The file is written to a
// temporary name, synced and renamed so readers never observe a partial
// file.
func (s *Store) Save(snap *index.Snapshot) (string, error) {
	if err := validFingerprint(snap.Fingerprint); err != nil {
		return "", err
	}
	start := time.Now()
	raw, err := codec.Marshal(toPayload(snap))
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	compressed := codec.Compress(raw)
	header := Header{
		Magic:            MagicBytes,
		Version:          FormatVersion,
		CreatedAt:        time.Now().UnixNano(),
		PayloadSize:      uint64(len(compressed)),
		UncompressedSize: uint64(len(raw)),
		Checksum:         codec.Sum(compressed),
	}

	finalPath := s.Path(snap.Fingerprint)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	if _, err := f.Write(header.encode()); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed); err != nil {
		return "", fmt.Errorf("writing payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming snapshot file: %w", err)
	}

	s.logger.Info("snapshot saved",
		"fingerprint", snap.Fingerprint,
		"docs", snap.CorpusSize(),
		"terms", snap.NumTerms(),
		"bytes", HeaderSize+len(compressed),
		"raw_bytes", len(raw),
		"duration", time.Since(start),
	)
	return finalPath, nil
}

// Prune removes all but the keep most recently written snapshot files and
// returns how many were deleted.
func (s *Store) Prune(keep int) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading snapshot directory: %w", err)
	}
	type file struct {
		name string
		mod  time.Time
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{name: e.Name(), mod: info.ModTime()})
	}
	if len(files) <= keep {
		return 0, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })
	removed := 0
	for _, f := range files[keep:] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			s.logger.Warn("failed to prune snapshot", "file", f.name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func toPayload(snap *index.Snapshot) payload {
	postings := make([][]uint32, len(snap.Postings))
	for tid, list := range snap.Postings {
		flat := make([]uint32, 0, 2*len(list))
		var prev uint32
		for _, p := range list {
			flat = append(flat, p.Doc-prev, p.Freq)
			prev = p.Doc
		}
		postings[tid] = flat
	}
	return payload{
		Fingerprint: snap.Fingerprint,
		BuiltAt:     snap.BuiltAt.UnixNano(),
		Terms:       snap.Vocab.Terms(),
		Postings:    postings,
		DocIDs:      snap.DocIDs,
		DocLens:     snap.DocLens,
	}
}
