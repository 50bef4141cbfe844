package registry

import "sort"

// Classifier resolves a classifier algorithm by name. An empty name resolves
// to DefaultClassifier. The second return value is false when no
// implementation is registered under the name.
func (r *Registry) Classifier(name string) (Classifier, bool) {
	if name == "" {
		name = DefaultClassifier
	}
	c, ok := r.classifiers[name]
	return c, ok
}

// Tokenizer resolves a tokenizer algorithm by name. An empty name resolves
// to DefaultTokenizer.
func (r *Registry) Tokenizer(name string) (Tokenizer, bool) {
	if name == "" {
		name = DefaultTokenizer
	}
	t, ok := r.tokenizers[name]
	return t, ok
}

// Backend resolves a storage backend by name. An empty name resolves to
// DefaultBackend.
func (r *Registry) Backend(name string) (Backend, bool) {
	if name == "" {
		name = DefaultBackend
	}
	b, ok := r.backends[name]
	return b, ok
}

// Cache resolves a learn-result cache by name. An empty name resolves to
// DefaultCache.
func (r *Registry) Cache(name string) (Cache, bool) {
	if name == "" {
		name = DefaultCache
	}
	c, ok := r.caches[name]
	return c, ok
}

// BackendNames returns the registered backend names in sorted order. Used
// for startup logging and diagnostics.
func (r *Registry) BackendNames() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassifierNames returns the registered classifier names in sorted order.
func (r *Registry) ClassifierNames() []string {
	names := make([]string, 0, len(r.classifiers))
	for name := range r.classifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
