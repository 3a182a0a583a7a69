package retriever

import (
	"container/list"
	"fmt"
	"sync"
)

// resultCache is a byte-budgeted LRU over whole retrieval responses. Entries
// are immutable once stored; callers must not mutate returned responses.
type resultCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key   string
	resp  *Response
	bytes int64
}

func newResultCache(maxBytes int64) *resultCache {
	return &resultCache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func cacheKey(query string, k int, useLinks bool, maxPerStatute int) string {
	return fmt.Sprintf("%s|%d|%t|%d", query, k, useLinks, maxPerStatute)
}

func (c *resultCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).resp, true
}

func (c *resultCache) put(key string, resp *Response) {
	size := responseBytes(resp)
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.curBytes -= el.Value.(*cacheEntry).bytes
		c.order.Remove(el)
		delete(c.entries, key)
	}

	for c.curBytes+size > c.maxBytes {
		back := c.order.Back()
		if back == nil {
			break
		}
		evicted := back.Value.(*cacheEntry)
		c.curBytes -= evicted.bytes
		c.order.Remove(back)
		delete(c.entries, evicted.key)
	}

	el := c.order.PushFront(&cacheEntry{key: key, resp: resp, bytes: size})
	c.entries[key] = el
	c.curBytes += size
}

// responseBytes approximates the retained size of a response by its string
// payloads plus a fixed per-result overhead.
func responseBytes(resp *Response) int64 {
	var total int64 = 64
	for _, r := range resp.Results {
		total += int64(len(r.UnitID) + len(r.Content) + len(r.Citation) + len(r.InterpretsStatute) + 96)
	}
	return total
}
