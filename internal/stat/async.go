package stat

// CleanupFunc is a deferred cleanup callback invoked with its stored user
// data during Close.
type CleanupFunc func(ud any)

// AsyncCleanupEntry is one deferred cleanup registration. The entry payload
// is owned by the registrant, not by the Context.
type AsyncCleanupEntry struct {
	Cleanup  CleanupFunc
	UserData any
}

// RegisterAsyncCleanup enqueues a cleanup callback to be invoked by Close.
// Entries are drained exactly once, in registration order. Enqueueing is safe
// from any goroutine, but callers must guarantee quiescence once Close
// starts draining.
func (sc *Context) RegisterAsyncCleanup(fn CleanupFunc, ud any) {
	sc.asyncMu.Lock()
	defer sc.asyncMu.Unlock()
	sc.async = append(sc.async, &AsyncCleanupEntry{Cleanup: fn, UserData: ud})
}
