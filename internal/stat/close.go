package stat

import (
	"errors"
	"fmt"
)

// Close tears down everything Init built. Every statfile's backend close
// callback runs exactly once, then each classifier's cache is closed, then
// the async-cleanup queue is drained in FIFO order. Failures do not stop the
// teardown; they are collected and returned joined. Closing a context twice
// is a programming error and panics.
func (sc *Context) Close() error {
	if sc.closed {
		panic("stat: context closed twice")
	}

	var errs []error

	for _, cl := range sc.classifiers {
		for _, id := range cl.StatfileIDs {
			st := sc.StatfileByID(id)
			if err := st.Backend.Close(st.State); err != nil {
				errs = append(errs, fmt.Errorf("failed to close statfile %q: %w", st.Cfg.Symbol, err))
			}
		}
		if err := cl.Cache.Close(cl.CacheState); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache %q: %w", cl.CacheName, err))
		}
	}

	// Entry payloads are owned by whoever enqueued them; only the queue
	// itself is released here.
	sc.asyncMu.Lock()
	entries := sc.async
	sc.async = nil
	sc.asyncMu.Unlock()
	for _, e := range entries {
		if e.Cleanup != nil {
			e.Cleanup(e.UserData)
		}
	}

	sc.classifiers = nil
	sc.statfiles = nil
	sc.cfg = nil
	sc.tokenizer = nil
	sc.tkcf = nil
	sc.closed = true

	return errors.Join(errs...)
}
