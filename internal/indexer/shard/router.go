// Package shard assigns documents to build workers. Placement hashes the
// document id so a given id always lands in the same shard for a fixed shard
// count, and the shards are disjoint by construction.
package shard

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Router maps document ids onto numShards shards.
type Router struct {
	numShards int
}

// NewRouter returns a Router over numShards shards.
func NewRouter(numShards int) (*Router, error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("shard count must be positive, got %d", numShards)
	}
	return &Router{numShards: numShards}, nil
}

// Route returns the shard index for docID.
func (r *Router) Route(docID string) int {
	return int(xxhash.Sum64String(docID) % uint64(r.numShards))
}

// NumShards returns the number of shards.
func (r *Router) NumShards() int {
	return r.numShards
}

// Partition splits items into NumShards disjoint groups keyed by id,
// preserving input order within each group.
func Partition[T any](r *Router, items []T, id func(T) string) [][]T {
	shards := make([][]T, r.numShards)
	hint := len(items)/r.numShards + 1
	for i := range shards {
		shards[i] = make([]T, 0, hint)
	}
	for _, item := range items {
		s := r.Route(id(item))
		shards[s] = append(shards[s], item)
	}
	return shards
}
