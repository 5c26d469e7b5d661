// Package echo implements the command-echo cache: a short-lived, per-entity
// override of reported state that masks the platform's asynchronous command
// propagation. A freshly accepted command is reflected back to Hue clients
// immediately, and the override self-heals as soon as the platform's real
// on/off state is observed to match or diverge.
package echo

import (
	"sync"
	"time"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
)

// DefaultTTL is how long a non-persistent entry masks live state.
const DefaultTTL = 2 * time.Second

type entry struct {
	state      model.LightState
	storedAt   time.Time
	persistent bool
}

// Cache is safe for concurrent use. Writes for the same entity are
// last-write-wins; the platform's own command ordering per entity is no
// stronger.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given entry lifetime. A non-positive ttl
// falls back to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Record stores the state a command was expected to produce. Persistent
// entries never expire; they are used for categories whose platform state
// cannot report "off" at all, where the echoed state must hold until the
// next command overwrites it.
func (c *Cache) Record(entityKey string, state model.LightState, persistent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entityKey] = entry{
		state:      state.Copy(),
		storedAt:   c.now(),
		persistent: persistent,
	}
}

// Read returns the echoed state for the entity, or nil if the caller should
// fall back to live platform state. An entry survives only while it is
// unexpired and its on/off still matches the live on/off; otherwise it is
// evicted — the fresher source always wins. Persistent entries are exempt
// from both checks.
func (c *Cache) Read(entityKey string, liveOn bool) *model.LightState {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[entityKey]
	if !ok {
		return nil
	}
	if !e.persistent {
		if c.now().Sub(e.storedAt) >= c.ttl || e.state.On != liveOn {
			delete(c.entries, entityKey)
			return nil
		}
	}
	st := e.state.Copy()
	return &st
}

// Forget drops any entry for the entity.
func (c *Cache) Forget(entityKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, entityKey)
}
