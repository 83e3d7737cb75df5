// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Analyzer, Indexer, Search, Cache, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Postgres PostgresConfig `yaml:"postgres"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// CorpusConfig selects where documents come from. Kind is one of
// "jsonl", "postgres" or "sqlite".
type CorpusConfig struct {
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path"`
	Query string `yaml:"query"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// AnalyzerConfig controls text normalisation. StopWords replaces the
// built-in list when non-empty; StopWordsFile is read on top of it.
// DisableStopWords keeps every token.
type AnalyzerConfig struct {
	StopWords        []string `yaml:"stopWords"`
	StopWordsFile    string   `yaml:"stopWordsFile"`
	DisableStopWords bool     `yaml:"disableStopWords"`
	Stemmer          string   `yaml:"stemmer"`
	MinTokenLength   int      `yaml:"minTokenLength"`
}

// IndexerConfig controls index construction and snapshot persistence.
type IndexerConfig struct {
	DataDir string `yaml:"dataDir"`
	Workers int    `yaml:"workers"`
	Persist bool   `yaml:"persist"`
}

// SearchConfig controls ranking defaults and result limits.
type SearchConfig struct {
	DefaultModel     string  `yaml:"defaultModel"`
	DefaultK         int     `yaml:"defaultK"`
	MaxK             int     `yaml:"maxK"`
	BM25K1           float64 `yaml:"bm25K1"`
	BM25B            float64 `yaml:"bm25B"`
	BatchConcurrency int     `yaml:"batchConcurrency"`
}

// CacheConfig controls the query-result cache. Store selects the
// optional persisted tier: "none", "bolt" or "redis".
type CacheConfig struct {
	MaxEntries  int           `yaml:"maxEntries"`
	MaxBytes    int64         `yaml:"maxBytes"`
	WaitTimeout time.Duration `yaml:"waitTimeout"`
	Store       string        `yaml:"store"`
	BoltPath    string        `yaml:"boltPath"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SnapshotPublished string `yaml:"snapshotPublished"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Kind:  "jsonl",
			Path:  "data/corpus.jsonl",
			Query: "SELECT id, body FROM documents ORDER BY id",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "retrieval",
			User:            "retrieval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analyzer: AnalyzerConfig{
			Stemmer:        "none",
			MinTokenLength: 1,
		},
		Indexer: IndexerConfig{
			DataDir: "data/index",
			Workers: 0,
			Persist: true,
		},
		Search: SearchConfig{
			DefaultModel:     "bm25",
			DefaultK:         10,
			MaxK:             1000,
			BM25K1:           1.2,
			BM25B:            0.75,
			BatchConcurrency: 8,
		},
		Cache: CacheConfig{
			MaxEntries:  10000,
			MaxBytes:    64 << 20,
			WaitTimeout: 0,
			Store:       "none",
			BoltPath:    "data/index/results.db",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "retrieval-searchers",
			Topics: KafkaTopics{
				SnapshotPublished: "index.snapshot-published",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Corpus.Kind {
	case "jsonl", "postgres", "sqlite":
	default:
		return fmt.Errorf("corpus.kind %q: must be jsonl, postgres or sqlite", c.Corpus.Kind)
	}
	switch c.Analyzer.Stemmer {
	case "none", "snowball", "light":
	default:
		return fmt.Errorf("analyzer.stemmer %q: must be none, snowball or light", c.Analyzer.Stemmer)
	}
	if c.Analyzer.MinTokenLength < 0 {
		return fmt.Errorf("analyzer.minTokenLength must not be negative")
	}
	if c.Indexer.Workers < 0 {
		return fmt.Errorf("indexer.workers must not be negative")
	}
	switch c.Search.DefaultModel {
	case "tfidf", "bm25":
	default:
		return fmt.Errorf("search.defaultModel %q: must be tfidf or bm25", c.Search.DefaultModel)
	}
	if c.Search.DefaultK <= 0 || c.Search.MaxK <= 0 {
		return fmt.Errorf("search.defaultK and search.maxK must be positive")
	}
	if c.Search.BM25K1 < 0 {
		return fmt.Errorf("search.bm25K1 must not be negative")
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return fmt.Errorf("search.bm25B must be within [0, 1]")
	}
	switch c.Cache.Store {
	case "none", "bolt", "redis":
	default:
		return fmt.Errorf("cache.store %q: must be none, bolt or redis", c.Cache.Store)
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxBytes < 0 {
		return fmt.Errorf("cache ceilings must not be negative")
	}
	return nil
}

// applyEnvOverrides reads RE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RE_CORPUS_KIND"); v != "" {
		cfg.Corpus.Kind = v
	}
	if v := os.Getenv("RE_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("RE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RE_ANALYZER_STEMMER"); v != "" {
		cfg.Analyzer.Stemmer = v
	}
	if v := os.Getenv("RE_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("RE_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("RE_SEARCH_MODEL"); v != "" {
		cfg.Search.DefaultModel = v
	}
	if v := os.Getenv("RE_CACHE_STORE"); v != "" {
		cfg.Cache.Store = v
	}
	if v := os.Getenv("RE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("RE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
