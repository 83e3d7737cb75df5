package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/redis"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/development.yaml", "path to config file")
	buildOnStart := pflag.Bool("build-on-start", true, "index the configured corpus before serving")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus", cfg.Corpus.Kind, "model", cfg.Search.DefaultModel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	analyzer, err := tokenizer.FromConfig(cfg.Analyzer)
	if err != nil {
		slog.Error("invalid analyzer settings", "error", err)
		os.Exit(1)
	}
	origin := processOrigin()
	engineOpts := indexer.EngineOptions{
		Analyzer: analyzer,
		Workers:  cfg.Indexer.Workers,
		Metrics:  m,
		Origin:   origin,
	}
	if cfg.Indexer.Persist {
		store, err := segment.NewStore(cfg.Indexer.DataDir)
		if err != nil {
			slog.Error("failed to open snapshot store", "error", err)
			os.Exit(1)
		}
		engineOpts.Store = store
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublished)
		defer producer.Close()
		engineOpts.Publisher = producer
	}
	engine := indexer.NewEngine(engineOpts)

	checker := health.NewChecker(0)
	checker.Register("index", handler.IndexCheck(engine))

	resultStore, redisClient := openResultStore(ctx, cfg)
	if resultStore != nil {
		defer resultStore.Close()
	}
	if redisClient != nil {
		checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	queryCache := cache.New(engine, cache.Options{
		MaxEntries:  cfg.Cache.MaxEntries,
		MaxBytes:    cfg.Cache.MaxBytes,
		WaitTimeout: cfg.Cache.WaitTimeout,
		Store:       resultStore,
		Metrics:     m,
	})
	engine.OnPublish(func(*index.Snapshot) { queryCache.Invalidate() })

	source, closeSource, err := corpus.OpenSource(ctx, cfg)
	if err != nil {
		slog.Error("failed to open corpus source", "error", err)
		os.Exit(1)
	}
	defer closeSource()
	if *buildOnStart {
		if _, report, err := engine.Rebuild(ctx, source); err != nil {
			slog.Error("initial index build failed, serving not-ready until a rebuild succeeds", "error", err)
		} else {
			slog.Info("initial index ready", "docs", report.Documents, "terms", report.Terms)
		}
	}

	if cfg.Kafka.Enabled && engineOpts.Store != nil {
		group := cfg.Kafka.ConsumerGroup + "-" + origin
		kc := kafka.NewConsumer(cfg.Kafka, group, cfg.Kafka.Topics.SnapshotPublished, consumer.HandleSnapshotEvent(engine, origin))
		snapshotConsumer := consumer.New(kc)
		go func() {
			if err := snapshotConsumer.Start(ctx); err != nil {
				slog.Error("snapshot consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for snapshot announcements", "topic", cfg.Kafka.Topics.SnapshotPublished, "group", group)
	}

	exec, err := executor.New(engine, queryCache, executor.Options{
		DefaultModel:     ranker.Kind(cfg.Search.DefaultModel),
		MaxK:             cfg.Search.MaxK,
		Params:           ranker.Params{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B},
		BatchConcurrency: cfg.Search.BatchConcurrency,
		Metrics:          m,
	})
	if err != nil {
		slog.Error("failed to create executor", "error", err)
		os.Exit(1)
	}
	h := handler.New(exec, engine, source, queryCache, cfg.Search.DefaultK)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// openResultStore opens the persisted cache tier. An unreachable Redis
// leaves the cache memory-only rather than failing startup.
func openResultStore(ctx context.Context, cfg *config.Config) (cache.ResultStore, *pkgredis.Client) {
	switch cfg.Cache.Store {
	case "bolt":
		store, err := cache.OpenBoltStore(cfg.Cache.BoltPath)
		if err != nil {
			slog.Warn("bolt result store unavailable, caching in memory only", "error", err)
			return nil, nil
		}
		slog.Info("persisted result cache enabled", "store", "bolt", "path", cfg.Cache.BoltPath)
		return store, nil
	case "redis":
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, caching in memory only", "error", err)
			return nil, nil
		}
		slog.Info("persisted result cache enabled", "store", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		return cache.NewRedisStore(client, cfg.Redis.CacheTTL), client
	default:
		return nil, nil
	}
}

func processOrigin() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
