package stat

import (
	"context"
	"sync"

	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
)

// The process-wide default context. Long-running hosts build exactly one
// pipeline at a time; Setup/Get/Close manage that single instance.
var (
	defaultMu  sync.Mutex
	defaultCtx *Context
)

// Setup builds a context with Init and publishes it as the process-wide
// default. On error nothing is published.
func Setup(ctx context.Context, cfg *config.Model, reg *registry.Registry) (*Context, error) {
	sc, err := Init(ctx, cfg, reg)
	if err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defaultCtx = sc
	defaultMu.Unlock()
	return sc, nil
}

// Get returns the process-wide default context, or nil when none has been
// published.
func Get() *Context {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultCtx
}

// Close tears down the process-wide default context and resets the handle.
// Calling Close without a published context is a programming error and
// panics.
func Close() error {
	defaultMu.Lock()
	sc := defaultCtx
	defaultCtx = nil
	defaultMu.Unlock()

	if sc == nil {
		panic("stat: Close called without a configured context")
	}
	return sc.Close()
}
