package cache

import (
	"container/list"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
)

const (
	entryOverhead = 96
	docOverhead   = 24
)

type entry struct {
	key       entryKey
	value     ranker.RankedResult
	size      int64
	createdAt time.Time
}

// lru is a size- and count-bounded least-recently-used map. It is not
// safe for concurrent use; QueryCache guards it with its mutex.
type lru struct {
	maxEntries int
	maxBytes   int64
	ll         *list.List
	items      map[entryKey]*list.Element
	bytes      int64
}

func newLRU(maxEntries int, maxBytes int64) *lru {
	return &lru{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ll:         list.New(),
		items:      make(map[entryKey]*list.Element),
	}
}

func (l *lru) get(k entryKey) (*entry, bool) {
	el, ok := l.items[k]
	if !ok {
		return nil, false
	}
	l.ll.MoveToFront(el)
	return el.Value.(*entry), true
}

// add inserts or replaces k and returns how many entries were evicted to
// respect the ceilings. An entry larger than maxBytes on its own is not
// kept.
func (l *lru) add(k entryKey, v ranker.RankedResult, now time.Time) int {
	size := estimateSize(k.key, v)
	if el, ok := l.items[k]; ok {
		old := el.Value.(*entry)
		l.bytes += size - old.size
		old.value, old.size, old.createdAt = v, size, now
		l.ll.MoveToFront(el)
	} else {
		l.items[k] = l.ll.PushFront(&entry{key: k, value: v, size: size, createdAt: now})
		l.bytes += size
	}
	evicted := 0
	for l.ll.Len() > 0 && l.overLimit() {
		l.removeElement(l.ll.Back())
		evicted++
	}
	return evicted
}

func (l *lru) overLimit() bool {
	return (l.maxEntries > 0 && l.ll.Len() > l.maxEntries) ||
		(l.maxBytes > 0 && l.bytes > l.maxBytes)
}

func (l *lru) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	l.ll.Remove(el)
	delete(l.items, e.key)
	l.bytes -= e.size
}

func (l *lru) purge() int {
	n := l.ll.Len()
	l.ll.Init()
	l.items = make(map[entryKey]*list.Element)
	l.bytes = 0
	return n
}

func (l *lru) len() int {
	return l.ll.Len()
}

func estimateSize(k Key, v ranker.RankedResult) int64 {
	size := int64(entryOverhead + len(k.Terms) + len(k.Scorer))
	for _, d := range v.Docs {
		size += int64(docOverhead + len(d.DocID))
	}
	return size
}
