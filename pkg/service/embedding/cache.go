package embedding

import "sync"

// DefaultCacheCapacity bounds the in-process embedding cache.
const DefaultCacheCapacity = 500

// Cache is a fixed-capacity embedding cache keyed by input text. When
// full, the entry inserted earliest is evicted regardless of access
// pattern, so a burst of one-off inputs cannot pin stale entries forever.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]float32
	order    []string
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string][]float32, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Get returns a copy of the cached vector for text, if present.
func (c *Cache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	return copyVector(vec), true
}

// Put stores the vector under text, evicting the oldest entry when the
// cache is full. Re-putting an existing key overwrites the vector but
// keeps its original insertion position.
func (c *Cache) Put(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[text]; exists {
		c.entries[text] = copyVector(vec)
		return
	}

	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[text] = copyVector(vec)
	c.order = append(c.order, text)
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func copyVector(vec []float32) []float32 {
	copied := make([]float32, len(vec))
	copy(copied, vec)
	return copied
}
