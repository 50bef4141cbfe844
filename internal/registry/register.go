package registry

import (
	"fmt"
	"log/slog"
)

// RegisterClassifier registers a classifier algorithm under a unique name.
func (r *Registry) RegisterClassifier(name string, c Classifier) {
	if _, exists := r.classifiers[name]; exists {
		panic(fmt.Sprintf("classifier with name '%s' already registered", name))
	}
	slog.Debug("Registering classifier.", "name", name)
	r.classifiers[name] = c
}

// RegisterTokenizer registers a tokenizer algorithm under a unique name. The
// same implementation may be registered under several names.
func (r *Registry) RegisterTokenizer(name string, t Tokenizer) {
	if _, exists := r.tokenizers[name]; exists {
		panic(fmt.Sprintf("tokenizer with name '%s' already registered", name))
	}
	slog.Debug("Registering tokenizer.", "name", name)
	r.tokenizers[name] = t
}

// RegisterBackend registers a storage backend under a unique name.
func (r *Registry) RegisterBackend(name string, b Backend) {
	if _, exists := r.backends[name]; exists {
		panic(fmt.Sprintf("backend with name '%s' already registered", name))
	}
	slog.Debug("Registering backend.", "name", name)
	r.backends[name] = b
}

// RegisterCache registers a learn-result cache under a unique name.
func (r *Registry) RegisterCache(name string, c Cache) {
	if _, exists := r.caches[name]; exists {
		panic(fmt.Sprintf("cache with name '%s' already registered", name))
	}
	slog.Debug("Registering cache.", "name", name)
	r.caches[name] = c
}
