package registry

// Module is the interface that all compiled-in modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Default implementation names substituted when a configuration names no
// implementation for a role.
const (
	DefaultClassifier = "bayes"
	DefaultTokenizer  = "osb"
	DefaultBackend    = "mmap"
	DefaultCache      = "memory"
)

// Registry holds the four role catalogs for a single application instance.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	classifiers map[string]Classifier
	tokenizers  map[string]Tokenizer
	backends    map[string]Backend
	caches      map[string]Cache
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		classifiers: make(map[string]Classifier),
		tokenizers:  make(map[string]Tokenizer),
		backends:    make(map[string]Backend),
		caches:      make(map[string]Cache),
	}
}
