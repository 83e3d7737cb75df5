package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/logger"
)

type options struct {
	configPath  string
	queriesPath string
	outputPath  string
	runTag      string
	model       string
	k           int
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configPath, "config", "c", "configs/development.yaml", "path to config file")
	pflag.StringVarP(&opts.queriesPath, "queries", "q", "", "queries JSONL file ({\"query_id\",\"text\"} per line)")
	pflag.StringVarP(&opts.outputPath, "output", "o", "-", "TREC run output file, - for stdout")
	pflag.StringVar(&opts.runTag, "tag", "", "run tag written in the last column (default: the model name)")
	pflag.StringVarP(&opts.model, "model", "m", "", "ranking model, tfidf or bm25 (default: search.defaultModel)")
	pflag.IntVarP(&opts.k, "k", "k", 0, "results per query (default: search.defaultK)")
	pflag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout may carry the run, so logs always go to stderr.
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		slog.Error("batch search failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	if opts.queriesPath == "" {
		return errors.New("--queries is required")
	}
	if opts.model == "" {
		opts.model = cfg.Search.DefaultModel
	}
	if opts.k == 0 {
		opts.k = cfg.Search.DefaultK
	}
	if opts.runTag == "" {
		opts.runTag = opts.model
	}

	f, err := os.Open(opts.queriesPath)
	if err != nil {
		return fmt.Errorf("opening queries: %w", err)
	}
	queries, err := corpus.ReadQueries(f)
	f.Close()
	if err != nil {
		if len(queries) == 0 {
			return fmt.Errorf("reading queries: %w", err)
		}
		slog.Warn("some query records were rejected", "error", err)
	}

	analyzer, err := tokenizer.FromConfig(cfg.Analyzer)
	if err != nil {
		return err
	}
	engineOpts := indexer.EngineOptions{Analyzer: analyzer, Workers: cfg.Indexer.Workers, Origin: "batchsearch"}
	if cfg.Indexer.Persist {
		if engineOpts.Store, err = segment.NewStore(cfg.Indexer.DataDir); err != nil {
			return err
		}
	}
	engine := indexer.NewEngine(engineOpts)
	source, closeSource, err := corpus.OpenSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()
	if _, _, err := engine.Rebuild(ctx, source); err != nil {
		return err
	}

	qc := cache.New(engine, cache.Options{MaxEntries: cfg.Cache.MaxEntries, MaxBytes: cfg.Cache.MaxBytes})
	exec, err := executor.New(engine, qc, executor.Options{
		DefaultModel:     ranker.Kind(cfg.Search.DefaultModel),
		MaxK:             cfg.Search.MaxK,
		Params:           ranker.Params{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B},
		BatchConcurrency: cfg.Search.BatchConcurrency,
	})
	if err != nil {
		return err
	}
	results, err := exec.Batch(ctx, queries, opts.k, opts.model)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			slog.Warn("query failed", "query_id", r.QueryID, "error", r.Err)
		}
	}

	var out io.Writer = os.Stdout
	if opts.outputPath != "-" {
		file, err := os.Create(opts.outputPath)
		if err != nil {
			return fmt.Errorf("creating run file: %w", err)
		}
		defer file.Close()
		out = file
	}
	if err := executor.WriteRun(out, opts.runTag, results); err != nil {
		return err
	}
	st := qc.Stats()
	slog.Info("batch search finished", "queries", len(queries), "cache_hits", st.Hits, "cache_misses", st.Misses)
	return nil
}
