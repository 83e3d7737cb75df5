package segment

import (
	"encoding/binary"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

const testFingerprint = "0123456789abcdef0123456789abcdef"

func testSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()
	p := index.NewPartial()
	docs := map[string]string{
		"d1": "cat sat",
		"d2": "dog sat",
		"d3": "cats dogs dog dog",
	}
	for _, id := range []string{"d1", "d2", "d3"} {
		if err := p.AddDocument(id, strings.Fields(docs[id])); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := index.Merge([]*index.Partial{p})
	if err != nil {
		t.Fatal(err)
	}
	snap.Fingerprint = testFingerprint
	snap.BuiltAt = time.Unix(1700000000, 42)
	return snap
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	orig := testSnapshot(t)
	if _, err := store.Save(orig); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Exists(testFingerprint) {
		t.Fatal("Exists = false after Save")
	}

	loaded, err := store.Load(testFingerprint)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Vocab.Terms(), orig.Vocab.Terms()) {
		t.Errorf("terms differ")
	}
	if !reflect.DeepEqual(loaded.Postings, orig.Postings) {
		t.Errorf("postings differ:\n%v\n%v", loaded.Postings, orig.Postings)
	}
	if !reflect.DeepEqual(loaded.DocIDs, orig.DocIDs) || !reflect.DeepEqual(loaded.DocLens, orig.DocLens) {
		t.Errorf("documents differ")
	}
	if !reflect.DeepEqual(loaded.DocNorms, orig.DocNorms) || loaded.AvgDocLength != orig.AvgDocLength {
		t.Errorf("derived statistics differ")
	}
	if !loaded.BuiltAt.Equal(orig.BuiltAt) {
		t.Errorf("BuiltAt = %v, want %v", loaded.BuiltAt, orig.BuiltAt)
	}
}

func TestLoadMissing(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	if _, err := store.Load(testFingerprint); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
	if _, err := store.Load("../../etc/passwd"); err == nil {
		t.Fatal("path-like fingerprint accepted")
	}
}

func TestLoadDetectsCorruption(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	path, err := store.Save(testSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"flipped payload byte", func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"truncated", func(b []byte) []byte { return b[:len(b)-3] }},
		{"header only", func(b []byte) []byte { return b[:HeaderSize/2] }},
		{"huge uncompressed size", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[24:32], 1<<50)
			return b
		}},
		{"overstated uncompressed size", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[24:32], binary.LittleEndian.Uint64(b[24:32])*3)
			return b
		}},
		{"zero uncompressed size", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[24:32], 0)
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := tt.mutate(append([]byte(nil), data...))
			if err := os.WriteFile(path, mutated, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Load(testFingerprint); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestLoadDetectsFingerprintMismatch(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	path, err := store.Save(testSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	other := "fedcba9876543210fedcba9876543210"
	if err := os.Rename(path, store.Path(other)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(other); !errors.Is(err, apperrors.ErrSnapshotMismatch) {
		t.Fatalf("err = %v, want ErrSnapshotMismatch", err)
	}
}

func TestPrune(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	fps := []string{
		"00000000000000000000000000000001",
		"00000000000000000000000000000002",
		"00000000000000000000000000000003",
	}
	for i, fp := range fps {
		snap := testSnapshot(t)
		snap.Fingerprint = fp
		path, err := store.Save(snap)
		if err != nil {
			t.Fatal(err)
		}
		mod := time.Now().Add(time.Duration(i-10) * time.Minute)
		os.Chtimes(path, mod, mod)
	}
	removed, err := store.Prune(1)
	if err != nil || removed != 2 {
		t.Fatalf("Prune = %d, %v", removed, err)
	}
	if !store.Exists(fps[2]) || store.Exists(fps[0]) {
		t.Error("Prune kept the wrong snapshot")
	}
}
