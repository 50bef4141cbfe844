// Package registry provides the central "glue" for the pluggable-component
// system.
//
// The Registry stores mappings between the string identifiers used in
// configuration documents (e.g., backend = "mmap") and the compiled Go
// implementations of the four pluggable roles: classifier algorithms,
// tokenizer algorithms, storage backends, and learn-result caches.
//
// During application startup the registry is populated from the compiled-in
// module list; afterwards it is read-only and safe for unsynchronized
// concurrent lookups. Adding an implementation means registering a new entry
// under a fresh name, never editing orchestration code.
package registry
