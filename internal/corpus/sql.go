package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/postgres"
	_ "github.com/glebarez/go-sqlite"
)

const defaultSQLQuery = "SELECT id, body FROM documents ORDER BY id"

// SQL reads documents from a database table. Query must return exactly two
// columns: the document id and its text. NULL text reads as empty.
type SQL struct {
	DB    *sql.DB
	Query string
}

// Documents runs the query and collects every row.
func (s SQL) Documents(ctx context.Context) ([]Document, error) {
	query := s.Query
	if query == "" {
		query = defaultSQLQuery
	}
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id   string
			text sql.NullString
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		docs = append(docs, Document{ID: id, Text: text.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	slog.Default().With("component", "corpus").Debug("corpus loaded from database", "docs", len(docs))
	return docs, nil
}

// OpenSQLite opens a SQLite database file through the pure-Go driver.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	return db, nil
}

// OpenSource builds the Source selected by cfg. The returned close function
// releases any database handle and is never nil.
func OpenSource(ctx context.Context, cfg *config.Config) (Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Corpus.Kind {
	case "jsonl":
		return JSONLFile{Path: cfg.Corpus.Path}, noop, nil
	case "sqlite":
		db, err := OpenSQLite(ctx, cfg.Corpus.Path)
		if err != nil {
			return nil, noop, err
		}
		return SQL{DB: db, Query: cfg.Corpus.Query}, db.Close, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		return SQL{DB: db, Query: cfg.Corpus.Query}, db.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown corpus kind %q", cfg.Corpus.Kind)
	}
}
