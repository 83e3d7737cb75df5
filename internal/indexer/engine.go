package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/metrics"
)

// keptSnapshots is how many snapshot files survive a prune.
const keptSnapshots = 3

// Publisher announces newly persisted snapshots to other processes.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// SnapshotEvent is the announcement sent after a snapshot is persisted.
type SnapshotEvent struct {
	Fingerprint string    `json:"fingerprint"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	BuiltAt     time.Time `json:"built_at"`
	Origin      string    `json:"origin"`
}

// Listener is called synchronously after a snapshot becomes live.
type Listener func(snap *index.Snapshot)

// EngineOptions configures an Engine. Store and Publisher are optional.
type EngineOptions struct {
	Analyzer  *tokenizer.Analyzer
	Workers   int
	Store     *segment.Store
	Publisher Publisher
	Metrics   *metrics.Metrics
	// Origin names this process in snapshot announcements.
	Origin string
}

// Engine owns the live snapshot. Readers call Snapshot and never block;
// rebuilds are serialised and publish by swapping an atomic pointer, so a
// half-built index is never visible and a failed build leaves the previous
// snapshot serving.
type Engine struct {
	current    atomic.Pointer[index.Snapshot]
	generation atomic.Uint64

	buildMu sync.Mutex

	listenerMu sync.RWMutex
	listeners  []Listener

	opts    EngineOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine returns an Engine with no live snapshot.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Analyzer == nil {
		opts.Analyzer = tokenizer.MustNew(tokenizer.Options{})
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Engine{
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Snapshot returns the live snapshot, or nil before the first build.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.current.Load()
}

// Analyzer returns the analyzer used for documents, which queries must
// share.
func (e *Engine) Analyzer() *tokenizer.Analyzer {
	return e.opts.Analyzer
}

// OnPublish registers fn to run after every snapshot swap.
func (e *Engine) OnPublish(fn Listener) {
	e.listenerMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenerMu.Unlock()
}

// Rebuild reads src and publishes a snapshot for it. A persisted snapshot
// with the same fingerprint is reused instead of building; otherwise the
// corpus is built, persisted and announced.
func (e *Engine) Rebuild(ctx context.Context, src corpus.Source) (*index.Snapshot, BuildReport, error) {
	docs, err := src.Documents(ctx)
	if err != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("failed").Inc()
		return nil, BuildReport{}, fmt.Errorf("%w: reading corpus: %w", apperrors.ErrBuildFailure, err)
	}
	return e.RebuildFrom(ctx, docs)
}

// RebuildFrom is Rebuild over documents already in memory.
func (e *Engine) RebuildFrom(ctx context.Context, docs []corpus.Document) (*index.Snapshot, BuildReport, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	fingerprint := Fingerprint(docs, e.opts.Analyzer)
	if snap := e.loadPersisted(fingerprint); snap != nil {
		e.publish(snap)
		e.metrics.IndexBuildsTotal.WithLabelValues("loaded").Inc()
		return snap, BuildReport{Documents: snap.CorpusSize(), Terms: snap.NumTerms(), Postings: snap.NumPostings()}, nil
	}

	snap, report, err := Build(ctx, docs, BuildOptions{Analyzer: e.opts.Analyzer, Workers: e.opts.Workers})
	if err != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("failed").Inc()
		e.logger.Error("index build failed, keeping previous snapshot", "error", err)
		return nil, report, err
	}
	snap.Fingerprint = fingerprint
	snap.BuiltAt = time.Now().UTC()

	e.metrics.IndexBuildsTotal.WithLabelValues("built").Inc()
	e.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
	e.metrics.DocsIndexedTotal.Add(float64(report.Documents))
	e.metrics.DocsSkippedTotal.Add(float64(report.Skipped))

	e.publish(snap)
	e.logger.Info("index built",
		"fingerprint", fingerprint,
		"generation", snap.Generation,
		"docs", report.Documents,
		"skipped", report.Skipped,
		"terms", report.Terms,
		"shards", report.Shards,
		"duration", report.Duration,
	)

	if e.opts.Store != nil {
		if _, err := e.opts.Store.Save(snap); err != nil {
			e.logger.Error("persisting snapshot failed", "fingerprint", fingerprint, "error", err)
			return snap, report, nil
		}
		if _, err := e.opts.Store.Prune(keptSnapshots); err != nil {
			e.logger.Warn("pruning old snapshots failed", "error", err)
		}
		e.announce(ctx, snap)
	}
	return snap, report, nil
}

// Adopt publishes the persisted snapshot for fingerprint, typically after
// another process announced it. It is a no-op when that snapshot is already
// live.
func (e *Engine) Adopt(ctx context.Context, fingerprint string) error {
	if e.opts.Store == nil {
		return fmt.Errorf("adopting snapshot %s: no snapshot store configured", fingerprint)
	}
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	if cur := e.Snapshot(); cur != nil && cur.Fingerprint == fingerprint {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := e.opts.Store.Load(fingerprint)
	if err != nil {
		return fmt.Errorf("adopting snapshot %s: %w", fingerprint, err)
	}
	e.publish(snap)
	e.metrics.IndexBuildsTotal.WithLabelValues("adopted").Inc()
	e.logger.Info("adopted announced snapshot", "fingerprint", fingerprint, "generation", snap.Generation)
	return nil
}

func (e *Engine) loadPersisted(fingerprint string) *index.Snapshot {
	if e.opts.Store == nil || !e.opts.Store.Exists(fingerprint) {
		return nil
	}
	snap, err := e.opts.Store.Load(fingerprint)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("persisted snapshot unusable, rebuilding", "fingerprint", fingerprint, "error", err)
		}
		return nil
	}
	return snap
}

// publish stamps snap with the next generation, swaps it in and notifies
// listeners. Callers hold buildMu.
func (e *Engine) publish(snap *index.Snapshot) {
	snap.Generation = e.generation.Add(1)
	e.current.Store(snap)
	e.metrics.SnapshotGeneration.Set(float64(snap.Generation))
	e.metrics.SnapshotTerms.Set(float64(snap.NumTerms()))

	e.listenerMu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (e *Engine) announce(ctx context.Context, snap *index.Snapshot) {
	if e.opts.Publisher == nil {
		return
	}
	event := SnapshotEvent{
		Fingerprint: snap.Fingerprint,
		Documents:   snap.CorpusSize(),
		Terms:       snap.NumTerms(),
		BuiltAt:     snap.BuiltAt,
		Origin:      e.opts.Origin,
	}
	if err := e.opts.Publisher.Publish(ctx, snap.Fingerprint, event); err != nil {
		e.logger.Warn("snapshot announcement failed", "fingerprint", snap.Fingerprint, "error", err)
	}
}
