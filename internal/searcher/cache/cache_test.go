package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/redis"
)

type fakeSource struct {
	snap atomic.Pointer[index.Snapshot]
}

func newSource(gen uint64) *fakeSource {
	s := &fakeSource{}
	s.set(gen)
	return s
}

func (f *fakeSource) set(gen uint64) {
	f.snap.Store(&index.Snapshot{Generation: gen, Fingerprint: "0123456789abcdef"})
}

func (f *fakeSource) Snapshot() *index.Snapshot { return f.snap.Load() }

// computeCounter counts computations and returns a result naming the key.
type computeCounter struct {
	calls   atomic.Int32
	release chan struct{}
}

func (p *computeCounter) compute(id string) ComputeFunc {
	return func(*index.Snapshot) (ranker.RankedResult, error) {
		p.calls.Add(1)
		if p.release != nil {
			<-p.release
		}
		return ranker.RankedResult{Docs: []ranker.ScoredDoc{{DocID: id, Score: 1}}, TotalHits: 1}, nil
	}
}

func TestGetOrComputeHitAfterMiss(t *testing.T) {
	c := New(newSource(1), Options{})
	p := &computeCounter{}
	key := NewKey([]string{"fox", "brown"}, "bm25", 10)

	v, out, err := c.GetOrCompute(context.Background(), key, p.compute("d1"))
	if err != nil || out != OutcomeMiss {
		t.Fatalf("first call: out=%v err=%v", out, err)
	}
	if v.Docs[0].DocID != "d1" {
		t.Fatalf("unexpected result %+v", v)
	}
	_, out, err = c.GetOrCompute(context.Background(), NewKey([]string{"brown", "fox"}, "bm25", 10), p.compute("d1"))
	if err != nil || out != OutcomeHit {
		t.Fatalf("second call: out=%v err=%v", out, err)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("compute ran %d times, want 1", p.calls.Load())
	}
}

func TestKeysSeparateScorerAndK(t *testing.T) {
	c := New(newSource(1), Options{})
	p := &computeCounter{}
	ctx := context.Background()
	c.GetOrCompute(ctx, NewKey([]string{"a"}, "bm25", 10), p.compute("x"))
	c.GetOrCompute(ctx, NewKey([]string{"a"}, "tfidf", 10), p.compute("x"))
	c.GetOrCompute(ctx, NewKey([]string{"a"}, "bm25", 5), p.compute("x"))
	c.GetOrCompute(ctx, NewKey([]string{"a", "a"}, "bm25", 10), p.compute("x"))
	if got := p.calls.Load(); got != 4 {
		t.Fatalf("compute ran %d times, want 4", got)
	}
}

func TestConcurrentCallersShareOneComputation(t *testing.T) {
	c := New(newSource(1), Options{})
	p := &computeCounter{release: make(chan struct{})}
	key := NewKey([]string{"quick"}, "tfidf", 3)

	const n = 16
	var wg sync.WaitGroup
	results := make([]ranker.RankedResult, n)
	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], outcomes[i], errs[i] = c.GetOrCompute(context.Background(), key, p.compute("d7"))
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(p.release)
	wg.Wait()

	if got := p.calls.Load(); got != 1 {
		t.Fatalf("compute ran %d times, want 1", got)
	}
	misses := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Docs[0].DocID != "d7" {
			t.Fatalf("caller %d got %+v", i, results[i])
		}
		if outcomes[i] == OutcomeMiss {
			misses++
		}
	}
	if misses != 1 {
		t.Fatalf("%d callers report a miss, want 1", misses)
	}
}

func TestInvalidateOnNewGeneration(t *testing.T) {
	src := newSource(1)
	c := New(src, Options{})
	p := &computeCounter{}
	key := NewKey([]string{"q"}, "bm25", 10)
	ctx := context.Background()

	c.GetOrCompute(ctx, key, p.compute("old"))
	src.set(2)
	c.Invalidate()
	if c.Stats().Entries != 0 {
		t.Fatalf("entries survived invalidation")
	}
	v, out, err := c.GetOrCompute(ctx, key, p.compute("new"))
	if err != nil || out != OutcomeMiss || v.Docs[0].DocID != "new" {
		t.Fatalf("after publish: v=%+v out=%v err=%v", v, out, err)
	}
	if got := c.Stats().Generation; got != 2 {
		t.Fatalf("generation = %d, want 2", got)
	}
}

func TestStaleFlightIsNotCached(t *testing.T) {
	src := newSource(1)
	c := New(src, Options{})
	p := &computeCounter{release: make(chan struct{})}
	key := NewKey([]string{"q"}, "bm25", 10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, _, err := c.GetOrCompute(context.Background(), key, p.compute("stale")); err != nil {
			t.Errorf("stale flight: %v", err)
		}
	}()
	time.Sleep(20 * time.Millisecond)
	src.set(2)
	c.Invalidate()
	close(p.release)
	<-done

	if n := c.Stats().Entries; n != 0 {
		t.Fatalf("stale result cached (%d entries)", n)
	}
}

func TestEvictionByEntries(t *testing.T) {
	c := New(newSource(1), Options{MaxEntries: 2})
	p := &computeCounter{}
	ctx := context.Background()
	for _, term := range []string{"a", "b", "c"} {
		c.GetOrCompute(ctx, NewKey([]string{term}, "bm25", 1), p.compute(term))
	}
	st := c.Stats()
	if st.Entries != 2 || st.Evictions != 1 {
		t.Fatalf("stats = %+v", st)
	}
	_, out, _ := c.GetOrCompute(ctx, NewKey([]string{"a"}, "bm25", 1), p.compute("a"))
	if out != OutcomeMiss {
		t.Fatalf("least recently used entry was kept (outcome %v)", out)
	}
}

func TestLRUEvictionByBytes(t *testing.T) {
	v := ranker.RankedResult{Docs: []ranker.ScoredDoc{{DocID: "doc"}}}
	one := estimateSize(Key{Terms: "a", Scorer: "s"}, v)
	l := newLRU(0, one*2)
	for i, term := range []string{"a", "b", "c"} {
		evicted := l.add(entryKey{generation: 1, key: Key{Terms: term, Scorer: "s"}}, v, time.Now())
		if want := max(0, i-1); evicted != want {
			t.Fatalf("add %q evicted %d, want %d", term, evicted, want)
		}
	}
	if l.len() != 2 || l.bytes > one*2 {
		t.Fatalf("len=%d bytes=%d", l.len(), l.bytes)
	}
	if _, ok := l.get(entryKey{generation: 1, key: Key{Terms: "a", Scorer: "s"}}); ok {
		t.Fatal("oldest entry survived the byte ceiling")
	}
}

func TestWaitTimeoutLeavesFlightRunning(t *testing.T) {
	c := New(newSource(1), Options{WaitTimeout: 20 * time.Millisecond})
	p := &computeCounter{release: make(chan struct{})}
	key := NewKey([]string{"slow"}, "bm25", 10)

	_, _, err := c.GetOrCompute(context.Background(), key, p.compute("d1"))
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	close(p.release)
	deadline := time.Now().Add(2 * time.Second)
	for c.Stats().Entries == 0 {
		if time.Now().After(deadline) {
			t.Fatal("abandoned flight never populated the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, out, err := c.GetOrCompute(context.Background(), key, p.compute("d1"))
	if err != nil || out != OutcomeHit {
		t.Fatalf("out=%v err=%v", out, err)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("compute ran %d times", p.calls.Load())
	}
}

func TestWaiterCancellation(t *testing.T) {
	c := New(newSource(1), Options{})
	p := &computeCounter{release: make(chan struct{})}
	key := NewKey([]string{"q"}, "bm25", 10)

	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(context.Background(), key, p.compute("d1"))
		leaderDone <- err
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := c.GetOrCompute(ctx, key, p.compute("d1")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waiter err = %v", err)
	}
	close(p.release)
	if err := <-leaderDone; err != nil {
		t.Fatalf("leader affected by waiter cancellation: %v", err)
	}
}

func TestErrors(t *testing.T) {
	c := New(&fakeSource{}, Options{})
	p := &computeCounter{}
	if _, _, err := c.GetOrCompute(context.Background(), NewKey([]string{"q"}, "bm25", 1), p.compute("x")); !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Fatalf("err = %v, want ErrIndexNotReady", err)
	}
	c = New(newSource(1), Options{})
	if _, _, err := c.GetOrCompute(context.Background(), NewKey([]string{"q"}, "bm25", 0), p.compute("x")); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	boom := errors.New("boom")
	failing := func(*index.Snapshot) (ranker.RankedResult, error) { return ranker.RankedResult{}, boom }
	if _, _, err := c.GetOrCompute(context.Background(), NewKey([]string{"q"}, "bm25", 1), failing); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Stats().Entries != 0 {
		t.Fatal("failed computation was cached")
	}

	panicking := func(*index.Snapshot) (ranker.RankedResult, error) { panic("scorer bug") }
	if _, _, err := c.GetOrCompute(context.Background(), NewKey([]string{"p"}, "bm25", 1), panicking); !errors.Is(err, apperrors.ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
}

func TestBoltStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	store, err := OpenBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	key := NewKey([]string{"persist"}, "bm25", 10)
	p := &computeCounter{}
	c := New(newSource(1), Options{Store: store})
	if _, out, err := c.GetOrCompute(context.Background(), key, p.compute("d9")); err != nil || out != OutcomeMiss {
		t.Fatalf("out=%v err=%v", out, err)
	}
	store.Close()

	store, err = OpenBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	c = New(newSource(1), Options{Store: store})
	v, out, err := c.GetOrCompute(context.Background(), key, p.compute("d9"))
	if err != nil || out != OutcomeStoreHit {
		t.Fatalf("out=%v err=%v", out, err)
	}
	if v.Docs[0].DocID != "d9" || v.TotalHits != 1 {
		t.Fatalf("restored %+v", v)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("compute ran %d times", p.calls.Load())
	}

	if err := c.Purge(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(context.Background(), storeKey(c.snapshots.Snapshot(), key)); ok {
		t.Fatal("purge left the persisted entry")
	}
}

func TestGetOrComputeOnPinsSnapshot(t *testing.T) {
	src := newSource(1)
	c := New(src, Options{})
	pinned := src.Snapshot()
	src.set(2)
	c.Invalidate()

	key := NewKey([]string{"pin"}, "bm25", 3)
	var seen uint64
	_, out, err := c.GetOrComputeOn(context.Background(), pinned, key, func(s *index.Snapshot) (ranker.RankedResult, error) {
		seen = s.Generation
		return ranker.RankedResult{TotalHits: 1}, nil
	})
	if err != nil || out != OutcomeMiss {
		t.Fatalf("out=%v err=%v", out, err)
	}
	if seen != 1 {
		t.Fatalf("computed on generation %d, want the pinned 1", seen)
	}

	p := &computeCounter{}
	if _, out, _ := c.GetOrCompute(context.Background(), key, p.compute("d1")); out != OutcomeMiss || p.calls.Load() != 1 {
		t.Fatalf("stale pinned result served on the live snapshot: out=%v", out)
	}
	if _, _, err := c.GetOrComputeOn(context.Background(), nil, key, p.compute("d1")); !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Fatalf("nil snapshot: err = %v", err)
	}
}

func TestBoltStoreConcurrentAccess(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Go(func() {
			for i := 0; i < 50; i++ {
				key := NewKey([]string{"t", string(rune('a' + w))}, "bm25", i+1).String()
				want := ranker.RankedResult{Docs: []ranker.ScoredDoc{{DocID: key, Score: float64(i)}}, TotalHits: i + 1}
				if err := store.Put(ctx, key, want); err != nil {
					t.Error(err)
					return
				}
				got, ok, err := store.Get(ctx, key)
				if err != nil || !ok || got.Docs[0].DocID != key || got.TotalHits != i+1 {
					t.Errorf("Get(%s) = %+v, %v, %v", key, got, ok, err)
					return
				}
				if i%10 == 0 {
					if err := store.Delete(ctx, key); err != nil {
						t.Error(err)
						return
					}
				}
			}
		})
	}
	wg.Wait()
}

func TestCorruptPersistedEntryIsRecomputed(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	src := newSource(1)
	key := NewKey([]string{"bad"}, "tfidf", 5)
	sk := storeKey(src.Snapshot(), key)
	if err := store.put(sk, []byte("definitely not a sealed result")); err != nil {
		t.Fatal(err)
	}

	c := New(src, Options{Store: store})
	p := &computeCounter{}
	_, out, err := c.GetOrCompute(context.Background(), key, p.compute("fresh"))
	if err != nil || out != OutcomeMiss {
		t.Fatalf("out=%v err=%v", out, err)
	}
	if c.Stats().Corrupt != 1 {
		t.Fatalf("corrupt = %d, want 1", c.Stats().Corrupt)
	}
	v, ok, err := store.Get(context.Background(), sk)
	if err != nil || !ok || v.Docs[0].DocID != "fresh" {
		t.Fatalf("store not repaired: v=%+v ok=%v err=%v", v, ok, err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("RE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := pkgredis.NewClient(ctx, config.RedisConfig{Addr: addr, PoolSize: 4})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	store := NewRedisStore(client, time.Minute)
	defer store.Close()
	if err := store.Purge(ctx); err != nil {
		t.Fatal(err)
	}

	want := ranker.RankedResult{Docs: []ranker.ScoredDoc{{DocID: "d1", Score: 0.5}}, TotalHits: 3}
	if err := store.Put(ctx, "fp/k", want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.Get(ctx, "fp/k")
	if err != nil || !ok || got.TotalHits != 3 || got.Docs[0] != want.Docs[0] {
		t.Fatalf("got=%+v ok=%v err=%v", got, ok, err)
	}
	if err := store.Delete(ctx, "fp/k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(ctx, "fp/k"); ok {
		t.Fatal("deleted key still present")
	}
}
