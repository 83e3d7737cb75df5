package shard

import (
	"fmt"
	"testing"
)

func TestRouteStable(t *testing.T) {
	r, err := NewRouter(8)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("doc-%d", i)
		s := r.Route(id)
		if s < 0 || s >= 8 {
			t.Fatalf("Route(%q) = %d out of range", id, s)
		}
		if again := r.Route(id); again != s {
			t.Fatalf("Route(%q) unstable: %d then %d", id, s, again)
		}
	}
}

func TestPartitionDisjointAndComplete(t *testing.T) {
	r, _ := NewRouter(4)
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = fmt.Sprintf("d%04d", i)
	}
	shards := Partition(r, ids, func(s string) string { return s })

	seen := make(map[string]int)
	nonEmpty := 0
	for si, shard := range shards {
		if len(shard) > 0 {
			nonEmpty++
		}
		for _, id := range shard {
			if prev, dup := seen[id]; dup {
				t.Fatalf("%s in shards %d and %d", id, prev, si)
			}
			seen[id] = si
			if r.Route(id) != si {
				t.Errorf("%s placed in %d, routes to %d", id, si, r.Route(id))
			}
		}
	}
	if len(seen) != len(ids) {
		t.Errorf("partitioned %d of %d ids", len(seen), len(ids))
	}
	if nonEmpty != 4 {
		t.Errorf("only %d of 4 shards used", nonEmpty)
	}
}

func TestNewRouterRejectsZero(t *testing.T) {
	if _, err := NewRouter(0); err == nil {
		t.Fatal("expected error")
	}
}
