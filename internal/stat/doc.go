// Package stat owns the runtime object graph of the classification pipeline.
//
// Init walks the configuration in order and binds every declared classifier
// to its resolved backend, tokenizer, and cache implementations, producing a
// Context. The Context is append-only while Init runs and read-only
// afterwards, so steady-state readers (classify and learn operations from any
// goroutine) need no locking. Close releases everything Init built, in
// order, and drains the deferred-cleanup queue.
//
// A process-wide default Context can be published with Setup and retrieved
// with Get, mirroring how a long-running host holds exactly one pipeline at a
// time.
package stat
