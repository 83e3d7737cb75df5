package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const maxLineBytes = 16 << 20

// JSONLFile reads documents from a file with one {"doc_id","text"} object
// per line. Lines that are not valid JSON are skipped and counted; field
// validation is left to the index build.
type JSONLFile struct {
	Path string
}

// Documents reads the whole file.
func (f JSONLFile) Documents(ctx context.Context) ([]Document, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", f.Path, err)
	}
	defer file.Close()

	docs, skipped, err := ReadDocuments(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", f.Path, err)
	}
	if skipped > 0 {
		slog.Default().With("component", "corpus").Warn("skipped malformed corpus lines",
			"path", f.Path, "skipped", skipped)
	}
	return docs, nil
}

// ReadDocuments decodes JSONL documents from r, returning the decoded
// records and the number of undecodable lines.
func ReadDocuments(ctx context.Context, r io.Reader) ([]Document, int, error) {
	var docs []Document
	skipped := 0
	err := scanLines(r, func(n int, line []byte) error {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var d Document
		if err := json.Unmarshal(line, &d); err != nil {
			skipped++
			return nil
		}
		docs = append(docs, d)
		return nil
	})
	return docs, skipped, err
}

// ReadQueries decodes JSONL {"query_id","text"} records. Malformed records
// are rejected individually: the valid queries are returned together with
// an error joining one ValidationError per rejected line.
func ReadQueries(r io.Reader) ([]Query, error) {
	var (
		queries []Query
		errs    []error
	)
	err := scanLines(r, func(n int, line []byte) error {
		var q Query
		if err := json.Unmarshal(line, &q); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", n, &ValidationError{
				Fields: map[string]string{"line": err.Error()},
			}))
			return nil
		}
		if err := ValidateQuery(q); err != nil {
			errs = append(errs, fmt.Errorf("line %d (query %q): %w", n, q.ID, err))
			return nil
		}
		queries = append(queries, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queries, errors.Join(errs...)
}

// scanLines calls fn for every non-blank line with its 1-based number.
func scanLines(r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}
