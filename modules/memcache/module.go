// Package memcache implements the default in-process learn-result cache. It
// remembers which message digests were learned as which class, so repeated
// learns of the same message are skipped and a relearn as the opposite class
// is allowed through.
package memcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/statcore/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the cache with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCache("memory", &Cache{})
}

// Cache is the in-memory implementation of registry.Cache.
type Cache struct{}

// state maps a message digest to the class it was last learned as.
type state struct {
	mu      sync.Mutex
	learned map[string]bool
}

// Init prepares an empty cache. The cache options object carries no settings
// for this implementation beyond its name.
func (c *Cache) Init(ctx context.Context, opts cty.Value) (registry.CacheState, error) {
	return &state{learned: make(map[string]bool)}, nil
}

// Process reports true when the digest was already learned as the given
// class. Otherwise it records the digest and lets the learn proceed;
// relearning as the other class updates the record.
func (c *Cache) Process(ctx context.Context, cst registry.CacheState, digest string, spam bool) (bool, error) {
	st, ok := cst.(*state)
	if !ok {
		return false, fmt.Errorf("unexpected cache state type %T", cst)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if prev, seen := st.learned[digest]; seen && prev == spam {
		return true, nil
	}
	st.learned[digest] = spam
	return false, nil
}

// Close releases the cache's table.
func (c *Cache) Close(cst registry.CacheState) error {
	st, ok := cst.(*state)
	if !ok {
		return fmt.Errorf("unexpected cache state type %T", cst)
	}
	st.mu.Lock()
	st.learned = nil
	st.mu.Unlock()
	return nil
}
