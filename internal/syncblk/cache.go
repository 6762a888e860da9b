// Package syncblk implements the process-global synchronization-object cache
// collaborator. The cache holds weak references to the objects owning a sync
// block; it is shared by every heap, so the scan layer only ever touches it
// from one designated worker per collection.
package syncblk

import (
	"sync"

	"github.com/mabhi256/gcscan/internal/scan"
)

// Cache is the process-global sync block table.
type Cache struct {
	mu    sync.Mutex
	slots []scan.ObjectRef

	promotionsGranted int
	demotions         int
	lastMaxGen        int
}

func NewCache() *Cache {
	return &Cache{}
}

// Add records a weak slot for obj and returns its index.
func (c *Cache) Add(obj scan.ObjectRef) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = append(c.slots, obj)
	return len(c.slots) - 1
}

// Get returns the current referent of slot i (zero once cleared).
func (c *Cache) Get(i int) scan.ObjectRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[i]
}

// WeakScan visits every slot; the visitor may null a slot through the
// pointer. Single-threaded by contract: the caller is the one designated
// scan worker.
func (c *Cache) WeakScan(visit func(ref *scan.ObjectRef)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		visit(&c.slots[i])
	}
}

// PromotionsGranted records that a collection promoted its survivors.
func (c *Cache) PromotionsGranted(maxGen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promotionsGranted++
	c.lastMaxGen = maxGen
}

// Demote records an aborted or partial collection.
func (c *Cache) Demote(maxGen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.demotions++
	c.lastMaxGen = maxGen
}

// Notifications returns how many promotion-granted and demote notifications
// the cache has received.
func (c *Cache) Notifications() (granted, demoted int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promotionsGranted, c.demotions
}

var _ scan.SyncBlockCache = (*Cache)(nil)
