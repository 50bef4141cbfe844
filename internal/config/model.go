package config

import (
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of the entire
// pipeline configuration. Classifier order is preserved from the source
// document; the stat package depends on it.
type Model struct {
	Classifiers []*ClassifierConfig
}

// ClassifierConfig is the format-agnostic representation of a `classifier`
// block.
type ClassifierConfig struct {
	// Name is the classifier algorithm name, e.g. "bayes". Empty means the
	// registry default.
	Name string

	// Backend and Tokenizer name the storage and tokenization
	// implementations. Empty means the registry default.
	Backend   string
	Tokenizer string

	// Options carries arbitrary structured options for the classifier and
	// its collaborators (tokenizer settings, cache selection, thresholds).
	// cty.NilVal when the block has no options.
	Options cty.Value

	// Statfiles are the classifier's data partitions, in document order.
	Statfiles []*StatfileConfig
}

// StatfileConfig is the format-agnostic representation of a `statfile` block.
type StatfileConfig struct {
	// Symbol is the statfile's unique name, e.g. "BAYES_SPAM".
	Symbol string

	// Spam marks the class this partition accumulates.
	Spam bool

	// Settings holds backend-specific attributes (paths, sizes, ...) as an
	// object value. cty.NilVal when the block has none.
	Settings cty.Value
}
