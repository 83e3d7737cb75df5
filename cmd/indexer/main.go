package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/metrics"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/development.yaml", "path to config file")
	corpusPath := pflag.String("corpus", "", "override corpus.path")
	workers := pflag.IntP("workers", "w", -1, "override indexer.workers (0 = GOMAXPROCS)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath != "" {
		cfg.Corpus.Path = *corpusPath
	}
	if *workers >= 0 {
		cfg.Indexer.Workers = *workers
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	analyzer, err := tokenizer.FromConfig(cfg.Analyzer)
	if err != nil {
		return err
	}
	store, err := segment.NewStore(cfg.Indexer.DataDir)
	if err != nil {
		return err
	}
	opts := indexer.EngineOptions{
		Analyzer: analyzer,
		Workers:  cfg.Indexer.Workers,
		Store:    store,
		Metrics:  metrics.NewNop(),
		Origin:   "indexer",
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublished)
		defer producer.Close()
		opts.Publisher = producer
	}
	engine := indexer.NewEngine(opts)

	source, closeSource, err := corpus.OpenSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	slog.Info("indexing corpus", "kind", cfg.Corpus.Kind, "path", cfg.Corpus.Path, "data_dir", store.Dir())
	snap, report, err := engine.Rebuild(ctx, source)
	if err != nil {
		return err
	}
	slog.Info("snapshot ready",
		"fingerprint", snap.Fingerprint,
		"file", store.Path(snap.Fingerprint),
		"docs", report.Documents,
		"skipped", report.Skipped,
		"terms", report.Terms,
		"postings", report.Postings,
		"duration", report.Duration,
	)
	return nil
}
