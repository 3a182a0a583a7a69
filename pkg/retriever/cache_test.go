package retriever

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedResponse(id string, contentLen int) *Response {
	content := make([]byte, contentLen)
	for i := range content {
		content[i] = 'x'
	}
	return &Response{Results: []Result{{UnitID: id, Content: string(content)}}}
}

func TestResultCacheHitAndMiss(t *testing.T) {
	cache := newResultCache(1 << 20)

	_, ok := cache.get("missing")
	assert.False(t, ok)

	resp := cachedResponse("a", 10)
	cache.put("k1", resp)

	got, ok := cache.get("k1")
	require.True(t, ok)
	assert.Equal(t, "a", got.Results[0].UnitID)
}

func TestResultCacheEvictsLRU(t *testing.T) {
	one := responseBytes(cachedResponse("u0", 1000))
	cache := newResultCache(3 * one)

	for i := 0; i < 3; i++ {
		cache.put(fmt.Sprintf("k%d", i), cachedResponse(fmt.Sprintf("u%d", i), 1000))
	}

	// Touch k0 so k1 becomes the eviction candidate.
	_, ok := cache.get("k0")
	require.True(t, ok)

	cache.put("k3", cachedResponse("u3", 1000))

	_, ok = cache.get("k1")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = cache.get("k0")
	assert.True(t, ok)
	_, ok = cache.get("k3")
	assert.True(t, ok)
}

func TestResultCacheRejectsOversized(t *testing.T) {
	cache := newResultCache(100)
	cache.put("big", cachedResponse("u", 10_000))
	_, ok := cache.get("big")
	assert.False(t, ok)
}
