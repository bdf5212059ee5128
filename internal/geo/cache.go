package geo

import (
	"sort"
	"sync"
)

// Cache：标识 -> 边界；会话内共享
// 约束：同一标识重复写入时后写覆盖
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Boundary
}

func NewCache() *Cache { return &Cache{items: make(map[string]*Boundary)} }

func (c *Cache) Put(b *Boundary) {
	if b == nil {
		return
	}
	c.mu.Lock()
	c.items[b.ID] = b
	c.mu.Unlock()
}

func (c *Cache) Get(id string) (*Boundary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.items[id]
	return b, ok
}

func (c *Cache) Delete(id string) {
	c.mu.Lock()
	delete(c.items, id)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// IDs：已缓存标识，升序
func (c *Cache) IDs() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.items))
	for id := range c.items {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Extent：全部缓存边界的外包矩形
func (c *Cache) Extent() Bounds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := EmptyBounds()
	for _, b := range c.items {
		out = out.Union(b.Bounds)
	}
	return out
}
