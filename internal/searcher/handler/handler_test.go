package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/middleware"
)

var docs = corpus.Slice{
	{ID: "d1", Text: "red apples and green pears"},
	{ID: "d2", Text: "green tea"},
	{ID: "d3", Text: "apple pie recipe"},
}

func newServer(t *testing.T, build bool) (*httptest.Server, *indexer.Engine) {
	t.Helper()
	engine := indexer.NewEngine(indexer.EngineOptions{Workers: 2})
	qc := cache.New(engine, cache.Options{MaxEntries: 16})
	engine.OnPublish(func(*index.Snapshot) { qc.Invalidate() })
	if build {
		if _, _, err := engine.Rebuild(context.Background(), docs); err != nil {
			t.Fatal(err)
		}
	}
	ex, err := executor.New(engine, qc, executor.Options{MaxK: 100})
	if err != nil {
		t.Fatal(err)
	}
	h := New(ex, engine, docs, qc, 10)
	checker := health.NewChecker(0)
	checker.Register("index", IndexCheck(engine))

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	srv := httptest.NewServer(middleware.Chain(mux, middleware.RequestID))
	t.Cleanup(srv.Close)
	return srv, engine
}

func getJSON(t *testing.T, method, url string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newServer(t, true)

	var res executor.SearchResult
	if code := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=green&k=5&model=tfidf", &res); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if res.Model != "tfidf" || res.K != 5 || res.Cache != "miss" || len(res.Results) != 2 {
		t.Fatalf("result %+v", res)
	}
	if res.Results[0].DocID != "d2" {
		t.Fatalf("top = %s, want the shorter document d2", res.Results[0].DocID)
	}

	getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=green&k=5&model=tfidf", &res)
	if res.Cache != "hit" {
		t.Fatalf("repeat query cache = %s", res.Cache)
	}
}

func TestSearchEndpointErrors(t *testing.T) {
	srv, _ := newServer(t, true)
	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing q", "/api/v1/search", http.StatusBadRequest},
		{"zero k", "/api/v1/search?q=tea&k=0", http.StatusBadRequest},
		{"bad k", "/api/v1/search?q=tea&k=ten", http.StatusBadRequest},
		{"unknown model", "/api/v1/search?q=tea&model=dfr", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			if code := getJSON(t, http.MethodGet, srv.URL+tt.path, &body); code != tt.want {
				t.Fatalf("status %d, want %d", code, tt.want)
			}
			if body["error"] == "" || body["request_id"] == "" {
				t.Fatalf("error body %v", body)
			}
		})
	}
}

func TestNotReady(t *testing.T) {
	srv, _ := newServer(t, false)
	if code := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=tea", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("search status %d", code)
	}
	if code := getJSON(t, http.MethodGet, srv.URL+"/api/v1/index/stats", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("stats status %d", code)
	}
	if code := getJSON(t, http.MethodGet, srv.URL+"/health/ready", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("ready status %d", code)
	}
}

func TestRebuildAndStats(t *testing.T) {
	srv, engine := newServer(t, false)

	var body map[string]any
	if code := getJSON(t, http.MethodPost, srv.URL+"/api/v1/index/rebuild", &body); code != http.StatusOK {
		t.Fatalf("rebuild status %d: %v", code, body)
	}
	if engine.Snapshot() == nil {
		t.Fatal("rebuild did not publish")
	}

	var stats index.Stats
	if code := getJSON(t, http.MethodGet, srv.URL+"/api/v1/index/stats", &stats); code != http.StatusOK {
		t.Fatalf("stats status %d", code)
	}
	if stats.Documents != 3 || stats.Generation != 1 || stats.Fingerprint == "" {
		t.Fatalf("stats %+v", stats)
	}
	if code := getJSON(t, http.MethodGet, srv.URL+"/health/ready", nil); code != http.StatusOK {
		t.Fatalf("ready status %d", code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv, _ := newServer(t, true)
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=apple", nil)
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=apple", nil)

	var stats struct {
		Stats   cache.Stats `json:"stats"`
		HitRate float64     `json:"hit_rate"`
	}
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/cache/stats", &stats)
	if stats.Stats.Hits != 1 || stats.Stats.Misses != 1 || stats.Stats.Entries != 1 || stats.HitRate != 0.5 {
		t.Fatalf("stats %+v", stats)
	}

	if code := getJSON(t, http.MethodPost, srv.URL+"/api/v1/cache/invalidate", nil); code != http.StatusOK {
		t.Fatalf("invalidate status %d", code)
	}
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/cache/stats", &stats)
	if stats.Stats.Entries != 0 {
		t.Fatalf("entries after invalidate = %d", stats.Stats.Entries)
	}
}

func TestRebuildRejections(t *testing.T) {
	engine := indexer.NewEngine(indexer.EngineOptions{})
	qc := cache.New(engine, cache.Options{})
	ex, err := executor.New(engine, qc, executor.Options{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		handler *Handler
		want    int
		message string
	}{
		{"no source", New(ex, engine, nil, qc, 10), http.StatusNotImplemented, "no corpus source configured"},
		{"already running", func() *Handler {
			h := New(ex, engine, docs, qc, 10)
			h.rebuilding.Store(true)
			return h
		}(), http.StatusConflict, "rebuild already in progress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.Rebuild(rec, httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] != tt.message {
				t.Errorf("error = %q, want %q", body["error"], tt.message)
			}
			if engine.Snapshot() != nil {
				t.Error("rejected rebuild still built an index")
			}
		})
	}
}
