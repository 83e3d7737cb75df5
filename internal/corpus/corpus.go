// Package corpus defines the document and query records fed to the engine
// and the sources that produce them: in-memory slices, JSONL files and SQL
// tables.
package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

const maxIDLength = 512

// Document is one indexable record.
type Document struct {
	ID   string `json:"doc_id"`
	Text string `json:"text"`
}

// Query is one search request in a batch run. ID may be empty for ad-hoc
// queries.
type Query struct {
	ID   string `json:"query_id"`
	Text string `json:"text"`
}

// Source yields the full document set for one build.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// Slice is a Source over documents already in memory.
type Slice []Document

// Documents returns the slice itself.
func (s Slice) Documents(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidationError lists the fields that made a record unusable. It wraps
// ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateDocument checks the fields a build depends on. Empty text is
// allowed; such a document simply has length zero.
func ValidateDocument(d Document) error {
	errs := make(map[string]string)
	switch {
	case strings.TrimSpace(d.ID) == "":
		errs["doc_id"] = "doc_id is required"
	case len(d.ID) > maxIDLength:
		errs["doc_id"] = fmt.Sprintf("doc_id must be at most %d bytes", maxIDLength)
	case !utf8.ValidString(d.ID):
		errs["doc_id"] = "doc_id is not valid UTF-8"
	}
	if !utf8.ValidString(d.Text) {
		errs["text"] = "text is not valid UTF-8"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateQuery rejects queries with no usable text.
func ValidateQuery(q Query) error {
	errs := make(map[string]string)
	if strings.TrimSpace(q.Text) == "" {
		errs["text"] = "text is required"
	} else if !utf8.ValidString(q.Text) {
		errs["text"] = "text is not valid UTF-8"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
