package ranker

import "container/heap"

// TopK returns the k best docs in descending score order, ties broken by
// ascending DocID. It keeps a min-heap of size k, so it runs in
// O(n log k). docs is not modified. k <= 0 yields nil.
func TopK(docs []ScoredDoc, k int) []ScoredDoc {
	if k <= 0 {
		return nil
	}
	h := make(scoredDocHeap, 0, min(k, len(docs))+1)
	for _, doc := range docs {
		if h.Len() < k {
			heap.Push(&h, doc)
			continue
		}
		if worse(h[0], doc) {
			h[0] = doc
			heap.Fix(&h, 0)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredDoc)
	}
	return result
}

// worse reports whether a ranks below b.
func worse(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

// scoredDocHeap keeps the worst-ranked document at the root.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int           { return len(h) }
func (h scoredDocHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h scoredDocHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
