package stat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
)

// Classifier is one configured classifier bound to its resolved
// implementations. The descriptor references (Subrs, Backend, Cache) are
// borrowed from the registry; the Context never owns them.
type Classifier struct {
	Cfg         *config.ClassifierConfig
	Subrs       registry.Classifier
	State       registry.ClassifierState
	Backend     registry.Backend
	BackendName string
	Cache       registry.Cache
	CacheName   string
	CacheState  registry.CacheState

	// StatfileIDs addresses this classifier's statfiles inside the Context's
	// statfile collection. Ids, not pointers: the collection is the single
	// owner.
	StatfileIDs []int
}

// Statfile is one opened data partition. Its presence in the Context implies
// its backend init succeeded.
type Statfile struct {
	ID      int
	Cfg     *config.StatfileConfig
	Backend registry.Backend
	State   registry.BackendState
}

// Context owns the live object graph built by Init. Classifier and statfile
// collections are append-only during Init and read-only afterwards; the
// async-cleanup queue is the only structure that accepts mutation after Init
// returns.
type Context struct {
	id  uuid.UUID
	cfg *config.Model
	reg *registry.Registry

	// Exactly one tokenizer is frozen for the whole Context, taken from the
	// first classifier processed.
	tokenizer     registry.Tokenizer
	tokenizerName string
	tkcf          registry.TokenizerConfig

	classifiers []*Classifier
	statfiles   []*Statfile

	asyncMu sync.Mutex
	async   []*AsyncCleanupEntry

	closed bool
}

// ID returns the context's instance id, unique per Init call.
func (sc *Context) ID() uuid.UUID {
	return sc.id
}

// Config returns the configuration the context was built from. Nil after
// Close.
func (sc *Context) Config() *config.Model {
	return sc.cfg
}

// Classifiers returns the context's classifiers in configuration order.
func (sc *Context) Classifiers() []*Classifier {
	return sc.classifiers
}

// Statfiles returns all statfiles in id order.
func (sc *Context) Statfiles() []*Statfile {
	return sc.statfiles
}

// StatfileByID returns the statfile with the given id, or nil when the id is
// out of range. Ids are dense and zero-based, so this is an index lookup.
func (sc *Context) StatfileByID(id int) *Statfile {
	if id < 0 || id >= len(sc.statfiles) {
		return nil
	}
	return sc.statfiles[id]
}

// Tokenizer returns the frozen tokenizer and its parsed configuration.
func (sc *Context) Tokenizer() (registry.Tokenizer, registry.TokenizerConfig) {
	return sc.tokenizer, sc.tkcf
}

// TokenizerName returns the name the frozen tokenizer was resolved under.
func (sc *Context) TokenizerName() string {
	return sc.tokenizerName
}
