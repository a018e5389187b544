// Package facecache memoizes face extraction by image content.
package facecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/kozaktomas/face-search/internal/facematch"
)

// DefaultMaxEntries bounds the cache when no size is given.
const DefaultMaxEntries = 10000

// Stats reports cache usage.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache wraps a DescriptorSource and remembers the faces of every image it has
// successfully processed, keyed by SHA-256 of the image bytes. Failed
// extractions are not cached. When full, the oldest entry is evicted.
type Cache struct {
	source     facematch.DescriptorSource
	maxEntries int

	mu      sync.Mutex
	entries *linkedhashmap.Map // key -> []facematch.FaceRecord, insertion ordered
	hits    uint64
	misses  uint64
}

// New creates a cache in front of source.
func New(source facematch.DescriptorSource, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		source:     source,
		maxEntries: maxEntries,
		entries:    linkedhashmap.New(),
	}
}

// contentKey returns the cache key for image bytes.
func contentKey(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// ExtractFaces returns cached faces for identical bytes, or extracts and stores them.
func (c *Cache) ExtractFaces(ctx context.Context, image []byte) ([]facematch.FaceRecord, error) {
	key := contentKey(image)

	c.mu.Lock()
	if v, ok := c.entries.Get(key); ok {
		c.hits++
		c.mu.Unlock()
		return v.([]facematch.FaceRecord), nil
	}
	c.misses++
	c.mu.Unlock()

	faces, err := c.source.ExtractFaces(ctx, image)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Put(key, faces)
	for c.entries.Size() > c.maxEntries {
		it := c.entries.Iterator()
		if !it.First() {
			break
		}
		c.entries.Remove(it.Key())
	}
	return faces, nil
}

// Purge drops every entry. Counters are kept. Entries are keyed by content,
// not file name, so a corpus change cannot be mapped to a single entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
}

// Stats returns a snapshot of cache usage.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: c.entries.Size(),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
